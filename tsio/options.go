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
	"math"
	"strconv"
	"strings"
	"time"
)

// ReadOptions specify how a time-series table is read.
type ReadOptions struct {
	// TimeColumn is the name of the column holding the timestamps.
	TimeColumn string

	// TimeFormat is either a Go time layout (e.g. time.RFC3339) or one of
	// "unix", "unixms", "unixus" and "unixns" for numeric timestamps in
	// seconds, milliseconds, microseconds or nanoseconds since the epoch.
	// The default is time.RFC3339Nano.
	TimeFormat string

	// Location is the time zone used for timestamps without zone
	// information. The default is UTC.
	Location *time.Location

	// Columns, if not empty, restricts reading to the named columns. It is
	// an error if any of them is missing or not numeric. Otherwise, all
	// numeric columns are read and non-numeric ones are skipped.
	Columns []string
}

func (o ReadOptions) timeFormat() string {
	if o.TimeFormat == "" {
		return time.RFC3339Nano
	}
	return o.TimeFormat
}

func (o ReadOptions) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// epochUnits maps numeric time formats to the duration of one unit.
var epochUnits = map[string]time.Duration{
	"unix":   time.Second,
	"unixms": time.Millisecond,
	"unixus": time.Microsecond,
	"unixns": time.Nanosecond,
}

// parseTime parses a timestamp string according to o.
func (o ReadOptions) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if u, ok := epochUnits[o.timeFormat()]; ok {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochTime(i, u), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, int64(f*float64(u))).UTC(), nil
	}
	return time.ParseInLocation(o.timeFormat(), s, o.location())
}

// epochTime converts i units since the epoch into a time.
func epochTime(i int64, u time.Duration) time.Time {
	return time.Unix(0, 0).Add(time.Duration(i) * u).UTC()
}

// isEpoch returns whether o specifies a numeric time format.
func (o ReadOptions) isEpoch() bool {
	_, ok := epochUnits[o.timeFormat()]
	return ok
}

// missingValues are the cell contents that are read as missing values.
var missingValues = map[string]bool{
	"":     true,
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"null": true,
}

// parseValue parses a numeric cell, returning NaN for missing values.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if missingValues[strings.ToLower(s)] {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// columnFilter tracks which columns should be read.
type columnFilter struct {
	requested map[string]bool
}

func newColumnFilter(cols []string) columnFilter {
	f := columnFilter{}
	if len(cols) > 0 {
		f.requested = make(map[string]bool)
		for _, c := range cols {
			f.requested[c] = true
		}
	}
	return f
}

// wants returns whether the named column should be read.
func (f columnFilter) wants(name string) bool {
	return f.requested == nil || f.requested[name]
}

// strict returns whether a non-numeric value in a column is an error
// rather than a reason to skip the column.
func (f columnFilter) strict() bool { return f.requested != nil }

// check returns an error if any requested column is not in found.
func (f columnFilter) check(found map[string]bool) error {
	for c := range f.requested {
		if !found[c] {
			return fmt.Errorf("tsio: column '%s' not found in input", c)
		}
	}
	return nil
}
