/*
Copyright © 2026 the ecflux authors.
This file is part of ecflux.

ecflux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ecflux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ecflux.  If not, see <http://www.gnu.org/licenses/>.
*/

package tsio

import (
	"fmt"
	"io"

	"github.com/spatialmodel/ecflux"
	"github.com/tealeg/xlsx"
)

// maxSheetName is the maximum length of an Excel worksheet name.
const maxSheetName = 31

// WriteXLSX writes each series to its own worksheet of an Excel
// workbook, with columns for the window time, the value and the units.
// Missing values are left blank.
func WriteXLSX(w io.Writer, series ...*ecflux.Series) error {
	if len(series) == 0 {
		return fmt.Errorf("tsio: no series to write")
	}
	f := xlsx.NewFile()
	for _, s := range series {
		name := s.Name
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return fmt.Errorf("tsio: adding worksheet '%s': %v", name, err)
		}
		header := sheet.AddRow()
		for _, h := range []string{"time", s.Name, "units"} {
			header.AddCell().SetString(h)
		}
		units := s.Units.String()
		for i, v := range s.Values {
			row := sheet.AddRow()
			row.AddCell().SetDateTime(s.Time[i])
			c := row.AddCell()
			if isFinite(v) {
				c.SetFloat(v)
			}
			row.AddCell().SetString(units)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("tsio: writing xlsx: %v", err)
	}
	return nil
}
