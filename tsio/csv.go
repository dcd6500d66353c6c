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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spatialmodel/ecflux"
)

// ReadCSV reads a time-series table from comma-separated values. The first
// record must be a header naming the columns.
func ReadCSV(r io.Reader, o ReadOptions) (*ecflux.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	h, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("tsio: reading CSV header: %v", err)
	}
	header := make([]string, len(h))
	ti := -1
	for i, name := range h {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if header[i] == o.TimeColumn {
			ti = i
		}
	}
	if ti < 0 {
		return nil, fmt.Errorf("tsio: time column '%s' not found in CSV header %v", o.TimeColumn, header)
	}

	type column struct {
		name    string
		index   int
		values  []float64
		numeric bool
	}
	filter := newColumnFilter(o.Columns)
	var cols []*column
	found := make(map[string]bool)
	for i, name := range header {
		if i == ti || !filter.wants(name) {
			continue
		}
		found[name] = true
		cols = append(cols, &column{name: name, index: i, numeric: true})
	}
	if err := filter.check(found); err != nil {
		return nil, err
	}

	var times []time.Time
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("tsio: reading CSV: %v", err)
		}
		line++
		t, err := o.parseTime(rec[ti])
		if err != nil {
			return nil, fmt.Errorf("tsio: line %d: parsing time '%s': %v", line, rec[ti], err)
		}
		times = append(times, t)
		for _, c := range cols {
			if !c.numeric {
				continue
			}
			v, err := parseValue(rec[c.index])
			if err != nil {
				if filter.strict() {
					return nil, fmt.Errorf("tsio: line %d: column '%s': %v", line, c.name, err)
				}
				c.numeric, c.values = false, nil
				continue
			}
			c.values = append(c.values, v)
		}
	}

	tbl := ecflux.NewTable(times)
	for _, c := range cols {
		if !c.numeric {
			continue
		}
		if err := tbl.AddColumn(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes one or more series that share the same window
// labels as comma-separated values with a "time" column followed
// by one column per series.
func WriteCSV(w io.Writer, series ...*ecflux.Series) error {
	times, err := sharedTimes(series)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{"time"}
	for _, s := range series {
		header = append(header, s.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("tsio: writing CSV: %v", err)
	}
	rec := make([]string, len(header))
	for i, t := range times {
		rec[0] = t.Format(time.RFC3339Nano)
		for j, s := range series {
			rec[j+1] = formatFloat(s.Values[i])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("tsio: writing CSV: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTableCSV writes a table as comma-separated values with a "time"
// column followed by the table's columns.
func WriteTableCSV(w io.Writer, tbl *ecflux.Table) error {
	names := tbl.Columns()
	cols := make([][]float64, len(names))
	for i, n := range names {
		c, err := tbl.Column(n)
		if err != nil {
			return err
		}
		cols[i] = c
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, names...)); err != nil {
		return fmt.Errorf("tsio: writing CSV: %v", err)
	}
	rec := make([]string, len(names)+1)
	for i, t := range tbl.Time() {
		rec[0] = t.Format(time.RFC3339Nano)
		for j, c := range cols {
			rec[j+1] = formatFloat(c[i])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("tsio: writing CSV: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// sharedTimes returns the window labels of series, checking that all
// series have the same labels.
func sharedTimes(series []*ecflux.Series) ([]time.Time, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("tsio: no series to write")
	}
	times := series[0].Time
	for _, s := range series {
		if len(s.Values) != len(s.Time) {
			return nil, fmt.Errorf("tsio: series '%s' has %d values but %d times", s.Name, len(s.Values), len(s.Time))
		}
		if len(s.Time) != len(times) {
			return nil, fmt.Errorf("tsio: series '%s' has %d windows but '%s' has %d",
				s.Name, len(s.Time), series[0].Name, len(times))
		}
		for i, t := range s.Time {
			if !t.Equal(times[i]) {
				return nil, fmt.Errorf("tsio: series '%s' and '%s' have different windows", s.Name, series[0].Name)
			}
		}
	}
	return times, nil
}
