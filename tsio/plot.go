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
	"strings"

	"github.com/spatialmodel/ecflux"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PlotSeries creates a line plot of the given series against time and
// saves it to path. The image format is determined by the file
// extension (e.g. ".png", ".svg", ".pdf"). Missing values are not drawn.
func PlotSeries(path string, series ...*ecflux.Series) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("tsio: creating plot: %v", err)
	}
	p.X.Label.Text = "Time (UTC)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04"}
	var names []string
	for i, s := range series {
		xy := make(plotter.XYs, 0, len(s.Values))
		for j, v := range s.Values {
			if !isFinite(v) {
				continue
			}
			xy = append(xy, struct{ X, Y float64 }{
				X: float64(s.Time[j].Unix()),
				Y: v,
			})
		}
		if len(xy) == 0 {
			continue
		}
		l, err := plotter.NewLine(xy)
		if err != nil {
			return fmt.Errorf("tsio: plotting '%s': %v", s.Name, err)
		}
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(s.Name, l)
		names = append(names, s.Name)
	}
	if len(names) == 0 {
		return fmt.Errorf("tsio: no valid values to plot")
	}
	p.Title.Text = strings.Join(names, ", ")
	if len(series) == 1 {
		p.Y.Label.Text = fmt.Sprintf("%s [%v]", series[0].Name, series[0].Units)
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("tsio: saving plot: %v", err)
	}
	return nil
}
