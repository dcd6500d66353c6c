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
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/ecflux"
)

// netcdfTimeUnits are the CF-convention units of the time variable of
// written NetCDF files.
const netcdfTimeUnits = "seconds since 1970-01-01 00:00:00 UTC"

// WriteNetCDF writes series that share the same window labels to a
// NetCDF (classic format) file with a "time" dimension, a "time"
// variable in seconds since the epoch and one variable per series.
func WriteNetCDF(rw cdf.ReaderWriterAt, series ...*ecflux.Series) error {
	times, err := sharedTimes(series)
	if err != nil {
		return err
	}
	if len(times) == 0 {
		return fmt.Errorf("tsio: NetCDF files can't have empty time dimensions")
	}
	h := cdf.NewHeader([]string{"time"}, []int{len(times)})
	h.AddAttribute("", "comment", "ecflux eddy-covariance flux output")
	h.AddAttribute("", "ecflux_version", ecflux.Version)
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", netcdfTimeUnits)
	for _, s := range series {
		if s.Name == "time" {
			return fmt.Errorf("tsio: series can't be named 'time' in NetCDF output")
		}
		h.AddVariable(s.Name, []string{"time"}, []float64{0})
		h.AddAttribute(s.Name, "units", s.Units.String())
	}
	h.Define()

	f, err := cdf.Create(rw, h) // writes the header to rw
	if err != nil {
		return fmt.Errorf("tsio: creating NetCDF file: %v", err)
	}
	t := make([]float64, len(times))
	for i, tt := range times {
		t[i] = float64(tt.UnixNano()) / float64(time.Second)
	}
	if err := writeNCF(f, "time", t); err != nil {
		return err
	}
	for _, s := range series {
		if err := writeNCF(f, s.Name, s.Values); err != nil {
			return err
		}
	}
	return nil
}

// writeNCF writes all of data to the named variable. The cdf writer
// reports io.EOF once it reaches the end of the variable, which is
// expected after a complete write.
func writeNCF(f *cdf.File, name string, data []float64) error {
	w := f.Writer(name, nil, nil)
	n, err := w.Write(data)
	if err == io.EOF && n == len(data) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("tsio: writing variable %s to NetCDF file: %v", name, err)
	}
	return nil
}

// ReadNetCDF reads a time-series table from a NetCDF (classic format)
// file. The time variable is o.TimeColumn; its "units" attribute is
// interpreted according to the CF conventions (e.g. "seconds since
// 2024-06-01 00:00:00"). Without a units attribute, times are read as
// numeric timestamps in the unit given by o.TimeFormat, defaulting to
// seconds. Every numeric variable with the same single dimension as the
// time variable becomes a column.
func ReadNetCDF(rw cdf.ReaderWriterAt, o ReadOptions) (*ecflux.Table, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("tsio: opening NetCDF file: %v", err)
	}
	h := f.Header
	tdims := h.Dimensions(o.TimeColumn)
	if len(tdims) != 1 {
		return nil, fmt.Errorf("tsio: NetCDF time variable '%s' not found or not one-dimensional", o.TimeColumn)
	}
	tv, err := readNCF(f, o.TimeColumn)
	if err != nil {
		return nil, err
	}
	times, err := o.netcdfTimes(h.GetAttribute(o.TimeColumn, "units"), tv)
	if err != nil {
		return nil, err
	}

	tbl := ecflux.NewTable(times)
	filter := newColumnFilter(o.Columns)
	found := make(map[string]bool)
	for _, v := range h.Variables() {
		if v == o.TimeColumn || !filter.wants(v) {
			continue
		}
		dims := h.Dimensions(v)
		if len(dims) != 1 || dims[0] != tdims[0] {
			if filter.strict() {
				return nil, fmt.Errorf("tsio: NetCDF variable '%s' does not have dimension '%s'", v, tdims[0])
			}
			continue
		}
		data, err := readNCF(f, v)
		if err != nil {
			if filter.strict() {
				return nil, err
			}
			continue
		}
		if fv, ok := fillValue(h.GetAttribute(v, "_FillValue")); ok {
			for i, d := range data {
				if d == fv {
					data[i] = math.NaN()
				}
			}
		}
		found[v] = true
		if err := tbl.AddColumn(v, data); err != nil {
			return nil, err
		}
	}
	if err := filter.check(found); err != nil {
		return nil, err
	}
	return tbl, nil
}

// readNCF reads the named variable, converting it to float64.
func readNCF(f *cdf.File, name string) ([]float64, error) {
	n := 1
	for _, l := range f.Header.Lengths(name) {
		n *= l
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("tsio: reading NetCDF variable %s: %v", name, err)
	}
	o := make([]float64, n)
	switch b := buf.(type) {
	case []float64:
		copy(o, b)
	case []float32:
		for i, v := range b {
			o[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			o[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			o[i] = float64(v)
		}
	case []uint8:
		for i, v := range b {
			o[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("tsio: NetCDF variable %s is not numeric", name)
	}
	return o, nil
}

// fillValue returns the value of a _FillValue attribute.
func fillValue(a interface{}) (float64, bool) {
	switch v := a.(type) {
	case []float64:
		if len(v) == 1 {
			return v[0], true
		}
	case []float32:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	case []int32:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	case []int16:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

var cfTimeUnits = regexp.MustCompile(`^\s*(\w+)\s+since\s+(.+?)\s*$`)

var cfUnitDurations = map[string]time.Duration{
	"days":         24 * time.Hour,
	"day":          24 * time.Hour,
	"d":            24 * time.Hour,
	"hours":        time.Hour,
	"hour":         time.Hour,
	"h":            time.Hour,
	"minutes":      time.Minute,
	"minute":       time.Minute,
	"min":          time.Minute,
	"seconds":      time.Second,
	"second":       time.Second,
	"s":            time.Second,
	"milliseconds": time.Millisecond,
	"millisecond":  time.Millisecond,
	"ms":           time.Millisecond,
	"microseconds": time.Microsecond,
	"microsecond":  time.Microsecond,
	"us":           time.Microsecond,
}

var cfReferenceLayouts = []string{
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// netcdfTimes converts the values of a NetCDF time variable to times.
func (o ReadOptions) netcdfTimes(units interface{}, values []float64) ([]time.Time, error) {
	step := time.Second
	origin := time.Unix(0, 0).UTC()
	if s, ok := units.(string); ok && s != "" {
		m := cfTimeUnits.FindStringSubmatch(s)
		if m == nil {
			return nil, fmt.Errorf("tsio: can't parse NetCDF time units '%s'", s)
		}
		if step, ok = cfUnitDurations[strings.ToLower(m[1])]; !ok {
			return nil, fmt.Errorf("tsio: unsupported NetCDF time unit '%s'", m[1])
		}
		var err error
		if origin, err = o.cfReference(m[2]); err != nil {
			return nil, err
		}
	} else if u, ok := epochUnits[o.timeFormat()]; ok {
		step = u
	}
	times := make([]time.Time, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("tsio: invalid NetCDF time value at index %d", i)
		}
		times[i] = origin.Add(time.Duration(math.Round(v * float64(step))))
	}
	return times, nil
}

// cfReference parses the reference time of CF time units.
func (o ReadOptions) cfReference(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, " UTC")
	for _, layout := range cfReferenceLayouts {
		if t, err := time.ParseInLocation(layout, s, o.location()); err == nil {
			return t, nil
		}
	}
	// Some files use a non-padded date, e.g. "1970-1-1".
	parts := strings.SplitN(s, "-", 3)
	if len(parts) == 3 && len(strings.Fields(parts[2])) > 0 {
		y, e1 := strconv.Atoi(parts[0])
		m, e2 := strconv.Atoi(parts[1])
		d, e3 := strconv.Atoi(strings.Fields(parts[2])[0])
		if e1 == nil && e2 == nil && e3 == nil {
			return time.Date(y, time.Month(m), d, 0, 0, 0, 0, o.location()), nil
		}
	}
	return time.Time{}, fmt.Errorf("tsio: can't parse NetCDF reference time '%s'", s)
}
