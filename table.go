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

package ecflux

import (
	"fmt"
	"time"
)

// Table holds a time-indexed set of numeric channels. All columns have the
// same length as the time index. Missing samples are stored as NaN.
// The time index is expected to be sorted in ascending order; see Validate.
type Table struct {
	time  []time.Time
	names []string
	cols  map[string][]float64
}

// NewTable creates a new table with the given time index. The slice is
// not copied and should not be modified afterwards.
func NewTable(times []time.Time) *Table {
	return &Table{
		time: times,
		cols: make(map[string][]float64),
	}
}

// AddColumn adds a named column to the table. The number of values
// must match the length of the time index.
func (t *Table) AddColumn(name string, values []float64) error {
	if name == "" {
		return fmt.Errorf("ecflux: column name must not be empty")
	}
	if _, ok := t.cols[name]; ok {
		return fmt.Errorf("ecflux: column '%s' already exists", name)
	}
	if len(values) != len(t.time) {
		return fmt.Errorf("ecflux: column '%s' has %d values but the time index has %d",
			name, len(values), len(t.time))
	}
	t.names = append(t.names, name)
	t.cols[name] = values
	return nil
}

// Column returns the values of the named column. The returned slice
// belongs to the table and must not be modified.
func (t *Table) Column(name string) ([]float64, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("ecflux: column '%s' not found in table: %w", name, ErrMissingColumn)
	}
	return c, nil
}

// HasColumn returns whether the named column is present.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Columns returns the column names in the order they were added.
func (t *Table) Columns() []string {
	o := make([]string, len(t.names))
	copy(o, t.names)
	return o
}

// Time returns the time index. The returned slice belongs to the table and
// must not be modified.
func (t *Table) Time() []time.Time { return t.time }

// Len returns the number of samples in the table.
func (t *Table) Len() int { return len(t.time) }

// Validate checks that the time index is sorted in ascending order.
// The computations in this package assume a sorted index but do
// not check it themselves.
func (t *Table) Validate() error {
	for i := 1; i < len(t.time); i++ {
		if t.time[i].Before(t.time[i-1]) {
			return fmt.Errorf("ecflux: time index is not sorted: sample %d (%v) is before sample %d (%v)",
				i, t.time[i], i-1, t.time[i-1])
		}
	}
	return nil
}

// columns returns the named columns, checking that each is specified
// and present in the table.
func (t *Table) columns(names ...string) ([][]float64, error) {
	o := make([][]float64, len(names))
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("ecflux: column name not specified: %w", ErrMissingColumn)
		}
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		o[i] = c
	}
	return o, nil
}
