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
)

// PrimeSuffix is appended to a column name to name its fluctuation series,
// e.g. "w" becomes "w_prime".
const PrimeSuffix = "_prime"

// Fluctuations computes the turbulent fluctuation of each of the given
// columns: the deviation of every sample from the mean of its window, where
// windows are determined by w. If no columns are given, fluctuations are
// computed for every column in the table.
//
// The returned table shares the time index of tbl and holds one column per
// source column, named by appending PrimeSuffix. Window means are
// computed over finite samples only; NaN samples remain NaN in the output.
func Fluctuations(tbl *Table, w Windower, columns ...string) (*Table, error) {
	if len(columns) == 0 {
		columns = tbl.Columns()
	}
	cols, err := tbl.columns(columns...)
	if err != nil {
		return nil, err
	}
	g, err := w.Group(tbl.Time())
	if err != nil {
		return nil, err
	}
	o := NewTable(tbl.Time())
	for i, c := range cols {
		if err := o.AddColumn(columns[i]+PrimeSuffix, fluctuate(c, g)); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// windowMeans returns the mean of the finite values in each window of g.
// Windows without finite values have a NaN mean.
func windowMeans(values []float64, g *Grouping) []float64 {
	sum := make([]float64, len(g.Windows))
	n := make([]int, len(g.Windows))
	for i, v := range values {
		if !isFinite(v) {
			continue
		}
		k := g.Key[i]
		sum[k] += v
		n[k]++
	}
	for k := range sum {
		if n[k] == 0 {
			sum[k] = math.NaN()
			continue
		}
		sum[k] /= float64(n[k])
	}
	return sum
}

// fluctuate returns values minus the mean of their window.
func fluctuate(values []float64, g *Grouping) []float64 {
	means := windowMeans(values, g)
	o := make([]float64, len(values))
	for i, v := range values {
		if !isFinite(v) {
			o[i] = math.NaN()
			continue
		}
		o[i] = v - means[g.Key[i]]
	}
	return o
}

// maskRows returns copies of cols where every row in which any of the
// columns is non-finite is set to NaN in all of them.
func maskRows(cols ...[]float64) [][]float64 {
	o := make([][]float64, len(cols))
	for j, c := range cols {
		o[j] = make([]float64, len(c))
		copy(o[j], c)
	}
	if len(cols) == 0 {
		return o
	}
	for i := range cols[0] {
		valid := true
		for _, c := range cols {
			if !isFinite(c[i]) {
				valid = false
				break
			}
		}
		if !valid {
			for _, c := range o {
				c[i] = math.NaN()
			}
		}
	}
	return o
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
