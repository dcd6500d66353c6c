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
	"errors"
	"math"
	"testing"
	"time"
)

func TestFluctuationsMeanZero(t *testing.T) {
	tbl := randomWind(t, 5000, 1)
	w := CalendarWindow{Period: 45 * time.Second}
	prime, err := Fluctuations(tbl, w, "u", "w", "T")
	if err != nil {
		t.Fatal(err)
	}
	if have, want := prime.Columns(), []string{"u_prime", "w_prime", "T_prime"}; len(have) != len(want) {
		t.Fatalf("have columns %v, want %v", have, want)
	}
	g, err := w.Group(tbl.Time())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range prime.Columns() {
		c, err := prime.Column(name)
		if err != nil {
			t.Fatal(err)
		}
		if len(c) != tbl.Len() {
			t.Fatalf("%s: have length %d, want %d", name, len(c), tbl.Len())
		}
		for k, win := range g.Windows {
			var sum float64
			for _, v := range c[win.Start:win.End] {
				sum += v
			}
			if win.Len() > 0 && math.Abs(sum/float64(win.Len())) > 1e-9 {
				t.Errorf("%s window %d: mean fluctuation is %g", name, k, sum/float64(win.Len()))
			}
		}
	}
}

func TestFluctuationsDefaultColumns(t *testing.T) {
	tbl := testTable(t, time.Second, map[string][]float64{
		"a": {1, 2, 3},
		"b": {4, 4, 4},
	}, "a", "b")
	prime, err := Fluctuations(tbl, CountWindow{Size: 3})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := prime.Column("a_prime")
	b, _ := prime.Column("b_prime")
	for i, want := range []float64{-1, 0, 1} {
		if a[i] != want {
			t.Errorf("a_prime[%d]: have %g, want %g", i, a[i], want)
		}
		if b[i] != 0 {
			t.Errorf("b_prime[%d]: have %g, want 0", i, b[i])
		}
	}
	if !prime.Time()[2].Equal(tbl.Time()[2]) {
		t.Error("fluctuations should share the input time index")
	}
}

func TestFluctuationsSingleSample(t *testing.T) {
	tbl := testTable(t, time.Second, map[string][]float64{
		"x": {3.7, -12.1, 1e6},
	}, "x")
	prime, err := Fluctuations(tbl, CountWindow{Size: 1}, "x")
	if err != nil {
		t.Fatal(err)
	}
	x, _ := prime.Column("x_prime")
	for i, v := range x {
		if v != 0 {
			t.Errorf("x_prime[%d]: have %g, want exactly 0", i, v)
		}
	}
}

func TestFluctuationsMissing(t *testing.T) {
	nan := math.NaN()
	tbl := testTable(t, time.Second, map[string][]float64{
		"x": {1, nan, 3, nan, nan, 5},
	}, "x")
	prime, err := Fluctuations(tbl, CountWindow{Size: 3}, "x")
	if err != nil {
		t.Fatal(err)
	}
	x, _ := prime.Column("x_prime")
	// Window 1 mean is 2 (NaN ignored), window 2 mean is 5.
	want := []float64{-1, nan, 1, nan, nan, 0}
	for i := range want {
		if math.IsNaN(want[i]) != math.IsNaN(x[i]) || (!math.IsNaN(want[i]) && x[i] != want[i]) {
			t.Errorf("x_prime[%d]: have %g, want %g", i, x[i], want[i])
		}
	}
}

func TestFluctuationsMissingColumn(t *testing.T) {
	tbl := randomWind(t, 10, 1)
	if _, err := Fluctuations(tbl, CountWindow{Size: 3}, "w", "CO2"); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("have error %v, want ErrMissingColumn", err)
	}
}

func TestFluctuationsDoesNotModifyInput(t *testing.T) {
	tbl := testTable(t, time.Second, map[string][]float64{
		"x": {1, 2, 3, 4},
	}, "x")
	if _, err := Fluctuations(tbl, CountWindow{Size: 2}, "x"); err != nil {
		t.Fatal(err)
	}
	x, _ := tbl.Column("x")
	for i, want := range []float64{1, 2, 3, 4} {
		if x[i] != want {
			t.Errorf("input modified: x[%d] = %g, want %g", i, x[i], want)
		}
	}
}
