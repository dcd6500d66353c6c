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
	"math"
	"time"

	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/floats"
)

// TKE calculates the turbulent kinetic energy
//
//	TKE = 0.5 * (var(u') + var(v') + var(w'))  [m2 s-2]
//
// in consecutive, non-overlapping blocks of size samples, where u, v and w are
// the names of the wind component columns. Each variance is the mean of the
// squared fluctuations about the block mean. If the number of samples is not a
// multiple of size, the final block holds the remaining samples.
//
// It returns one value per block and the timestamp of the middle sample of
// each block. A block where any component has no valid samples yields NaN.
func TKE(tbl *Table, size int, u, v, w string) ([]float64, []time.Time, error) {
	s, err := TKESeries(tbl, size, u, v, w)
	if err != nil {
		return nil, nil, err
	}
	return s.Values, s.Time, nil
}

// TKESeries is like TKE but returns the result as a Series.
func TKESeries(tbl *Table, size int, u, v, w string) (*Series, error) {
	cols, err := tbl.columns(u, v, w)
	if err != nil {
		return nil, err
	}
	g, err := CountWindow{Size: size}.Group(tbl.Time())
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(g.Windows))
	for _, c := range cols {
		floats.Add(values, variance(fluctuate(c, g), g))
	}
	floats.Scale(0.5, values)
	return newSeries("TKE_m2_per_s2", g, values,
		unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -2}), nil
}

// variance returns the mean of the squared finite values of
// x in each window.
func variance(x []float64, g *Grouping) []float64 {
	o := make([]float64, len(g.Windows))
	var buf []float64
	for k, w := range g.Windows {
		buf = buf[:0]
		for _, v := range x[w.Start:w.End] {
			if isFinite(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			o[k] = math.NaN()
			continue
		}
		o[k] = floats.Dot(buf, buf) / float64(len(buf))
	}
	return o
}
