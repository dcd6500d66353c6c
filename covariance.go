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

	"gonum.org/v1/gonum/floats"
)

// Covariance returns, for each window in g, the mean of a[i]*b[i] over the
// samples i in that window for which both a[i] and b[i] are finite. a and b
// are typically fluctuation series aligned on the same time index. Windows
// without any valid pair result in NaN.
func Covariance(a, b []float64, g *Grouping) []float64 {
	o := make([]float64, len(g.Windows))
	var aa, bb []float64
	for k, w := range g.Windows {
		aa, bb = aa[:0], bb[:0]
		for i := w.Start; i < w.End; i++ {
			if isFinite(a[i]) && isFinite(b[i]) {
				aa = append(aa, a[i])
				bb = append(bb, b[i])
			}
		}
		if len(aa) == 0 {
			o[k] = math.NaN()
			continue
		}
		o[k] = floats.Dot(aa, bb) / float64(len(aa))
	}
	return o
}

// CovarianceFlux computes the turbulent flux of the scalar column as the
// covariance <w'c'> between the fluctuations of the vertical column and the
// scalar column within each window determined by w, multiplied by scale.
// Samples where either column is missing are dropped before window means are
// calculated. A scale of 1 returns the raw kinematic covariance; physical
// scaling (e.g. rho*cp) is otherwise the caller's responsibility, and the
// returned series is therefore dimensionless.
func CovarianceFlux(tbl *Table, vertical, scalar string, w Windower, scale float64) (*Series, error) {
	cols, err := tbl.columns(vertical, scalar)
	if err != nil {
		return nil, err
	}
	g, err := w.Group(tbl.Time())
	if err != nil {
		return nil, err
	}
	values := windowCovariance(g, cols[0], cols[1])
	floats.Scale(scale, values)
	return newSeries(scalar+"_flux", g, values, nil), nil
}

// windowCovariance masks rows where either input is missing, computes the
// fluctuations of both inputs and returns their covariance in each window.
func windowCovariance(g *Grouping, a, b []float64) []float64 {
	m := maskRows(a, b)
	return Covariance(fluctuate(m[0], g), fluctuate(m[1], g), g)
}
