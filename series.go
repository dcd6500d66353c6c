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
	"time"

	"github.com/ctessum/unit"
)

// Series holds one value per window, labeled by the representative
// timestamp of the window.
type Series struct {
	Name   string
	Time   []time.Time
	Values []float64

	// Units are the physical dimensions of Values.
	Units unit.Dimensions
}

// Len returns the number of windows in the series.
func (s *Series) Len() int { return len(s.Values) }

// Unit returns the i'th value together with its dimensions.
func (s *Series) Unit(i int) *unit.Unit {
	return unit.New(s.Values[i], s.Units)
}

func newSeries(name string, g *Grouping, values []float64, dims unit.Dimensions) *Series {
	if dims == nil {
		dims = unit.Dimensions{}
	}
	t := make([]time.Time, len(g.Windows))
	for i, w := range g.Windows {
		t[i] = w.Label
	}
	return &Series{Name: name, Time: t, Values: values, Units: dims}
}
