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
	"math"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/spatialmodel/ecflux"
)

// ReadParquet reads a time-series table from a Parquet file with a flat
// schema. Numeric columns (boolean, integer and floating point) are read
// as float64 and null values as NaN; other columns are skipped unless they
// are requested in o.Columns, which is an error. The time column may hold
// strings, parsed according to o.TimeFormat, or integers counted since the
// epoch in the unit given by o.TimeFormat ("unix", "unixms", "unixus",
// "unixns"), defaulting to milliseconds.
func ReadParquet(r io.ReaderAt, size int64, o ReadOptions) (*ecflux.Table, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("tsio: opening parquet file: %v", err)
	}
	schema := f.Schema()
	paths := schema.Columns()

	filter := newColumnFilter(o.Columns)
	found := make(map[string]bool)
	ti := -1
	var names []string
	colIndex := make(map[int]int) // parquet leaf index -> output column
	for i, p := range paths {
		name := strings.Join(p, ".")
		if name == o.TimeColumn {
			ti = i
			continue
		}
		if !filter.wants(name) {
			continue
		}
		leaf, ok := schema.Lookup(p...)
		if !ok {
			continue
		}
		if !isNumericKind(leaf.Node.Type().Kind()) {
			if filter.strict() {
				return nil, fmt.Errorf("tsio: parquet column '%s' is not numeric", name)
			}
			continue
		}
		found[name] = true
		colIndex[i] = len(names)
		names = append(names, name)
	}
	if ti < 0 {
		return nil, fmt.Errorf("tsio: time column '%s' not found in parquet schema", o.TimeColumn)
	}
	if err := filter.check(found); err != nil {
		return nil, err
	}

	n := f.NumRows()
	times := make([]time.Time, 0, n)
	values := make([][]float64, len(names))
	for i := range values {
		values[i] = make([]float64, 0, n)
	}
	row := make([]float64, len(names))

	buf := make([]parquet.Row, 1024)
	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			nr, err := rows.ReadRows(buf)
			for _, r := range buf[:nr] {
				for i := range row {
					row[i] = math.NaN()
				}
				var t time.Time
				var haveTime bool
				for _, v := range r {
					c := v.Column()
					if c == ti {
						var terr error
						if t, terr = o.parquetTime(v); terr != nil {
							rows.Close()
							return nil, terr
						}
						haveTime = true
						continue
					}
					if j, ok := colIndex[c]; ok {
						row[j] = parquetFloat(v)
					}
				}
				if !haveTime {
					rows.Close()
					return nil, fmt.Errorf("tsio: row %d has no timestamp", len(times))
				}
				times = append(times, t)
				for j, v := range row {
					values[j] = append(values[j], v)
				}
			}
			if err == io.EOF {
				break
			} else if err != nil {
				rows.Close()
				return nil, fmt.Errorf("tsio: reading parquet rows: %v", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("tsio: reading parquet rows: %v", err)
		}
	}

	tbl := ecflux.NewTable(times)
	for i, name := range names {
		if err := tbl.AddColumn(name, values[i]); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func isNumericKind(k parquet.Kind) bool {
	switch k {
	case parquet.Boolean, parquet.Int32, parquet.Int64, parquet.Float, parquet.Double:
		return true
	default:
		return false
	}
}

// parquetFloat converts a numeric parquet value to float64.
func parquetFloat(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1
		}
		return 0
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return math.NaN()
	}
}

// parquetTime converts a parquet time column value into a time.
func (o ReadOptions) parquetTime(v parquet.Value) (time.Time, error) {
	if v.IsNull() {
		return time.Time{}, fmt.Errorf("tsio: null timestamp")
	}
	u, ok := epochUnits[o.timeFormat()]
	if !ok {
		u = time.Millisecond
	}
	switch v.Kind() {
	case parquet.Int32:
		return epochTime(int64(v.Int32()), u), nil
	case parquet.Int64:
		return epochTime(v.Int64(), u), nil
	case parquet.ByteArray:
		s := string(v.ByteArray())
		t, err := o.parseTime(s)
		if err != nil {
			return t, fmt.Errorf("tsio: parsing time '%s': %v", s, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("tsio: unsupported parquet time type %v", v.Kind())
	}
}

// seriesRecord is the parquet schema for written series.
type seriesRecord struct {
	Series string  `parquet:"series"`
	Time   int64   `parquet:"time"` // milliseconds since the epoch
	Value  float64 `parquet:"value"`
	Units  string  `parquet:"units"`
}

// WriteParquet writes the series to w in Parquet format, one row per
// series and window.
func WriteParquet(w io.Writer, series ...*ecflux.Series) error {
	pw := parquet.NewGenericWriter[seriesRecord](w)
	for _, s := range series {
		recs := make([]seriesRecord, len(s.Values))
		units := s.Units.String()
		for i, v := range s.Values {
			recs[i] = seriesRecord{
				Series: s.Name,
				Time:   s.Time[i].UnixNano() / int64(time.Millisecond),
				Value:  v,
				Units:  units,
			}
		}
		if _, err := pw.Write(recs); err != nil {
			return fmt.Errorf("tsio: writing parquet: %v", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("tsio: writing parquet: %v", err)
	}
	return nil
}
