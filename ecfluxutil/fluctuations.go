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

package ecfluxutil

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ecflux"
	"github.com/spatialmodel/ecflux/tsio"
)

// RunFluctuations calculates the fluctuations of the given columns
// (or all columns if none are given) of the input of j within
// windows of j.Window, and writes them as CSV to j.Output, or to w if
// no output file is specified.
func RunFluctuations(ctx context.Context, log logrus.FieldLogger, w io.Writer, j *Job, columns []string) error {
	if j.Input == "" {
		return fmt.Errorf("ecflux: no Input specified")
	}
	win, err := ecflux.ParseWindow(j.Window)
	if err != nil {
		return err
	}
	o, err := j.readOptions()
	if err != nil {
		return err
	}
	if len(columns) > 0 && len(j.Derive) == 0 {
		o.Columns = columns
	}
	tbl, err := tsio.ReadTable(ctx, j.Input, o)
	if err != nil {
		return err
	}
	if tbl, err = derive(tbl, j.Derive); err != nil {
		return err
	}
	f, err := ecflux.Fluctuations(tbl, win, columns...)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"input":   j.Input,
		"columns": f.Columns(),
		"window":  win,
	}).Info("calculated fluctuations")
	if j.Output == "" {
		return tsio.WriteTableCSV(w, f)
	}
	return tsio.WriteTable(ctx, j.Output, f)
}
