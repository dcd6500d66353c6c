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
	"reflect"
	"testing"
	"time"
)

func TestCalendarWindow(t *testing.T) {
	times := []time.Time{
		testStart.Add(5 * time.Minute),
		testStart.Add(20 * time.Minute),
		testStart.Add(25 * time.Minute),
		testStart.Add(100 * time.Minute),
	}
	g, err := CalendarWindow{Period: 30 * time.Minute}.Group(times)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 0, 0, 3}; !reflect.DeepEqual(g.Key, want) {
		t.Errorf("keys: have %v, want %v", g.Key, want)
	}
	want := []Window{
		{Start: 0, End: 3, Label: testStart},
		{Start: 3, End: 3, Label: testStart.Add(30 * time.Minute)},
		{Start: 3, End: 3, Label: testStart.Add(60 * time.Minute)},
		{Start: 3, End: 4, Label: testStart.Add(90 * time.Minute)},
	}
	if !reflect.DeepEqual(g.Windows, want) {
		t.Errorf("windows: have %+v, want %+v", g.Windows, want)
	}
}

func TestCalendarWindowAlignment(t *testing.T) {
	// Windows are aligned to midnight, not to the first sample.
	start := time.Date(2024, time.June, 1, 0, 7, 0, 0, time.UTC)
	g, err := CalendarWindow{Period: 30 * time.Minute}.Group([]time.Time{start, start.Add(30 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Windows) != 2 {
		t.Fatalf("have %d windows, want 2", len(g.Windows))
	}
	if have, want := g.Windows[0].Label, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC); !have.Equal(want) {
		t.Errorf("label: have %v, want %v", have, want)
	}
	if have, want := g.Windows[1].Label, time.Date(2024, time.June, 1, 0, 30, 0, 0, time.UTC); !have.Equal(want) {
		t.Errorf("label: have %v, want %v", have, want)
	}
}

// Every sample must belong to exactly one window, including the samples
// in the final partial window.
func TestWindowPartition(t *testing.T) {
	times := testTimes(1003, 100*time.Millisecond)
	for _, w := range []Windower{
		CalendarWindow{Period: 7 * time.Second},
		CalendarWindow{Period: time.Hour},
		CountWindow{Size: 64},
		CountWindow{Size: 1},
		CountWindow{Size: 5000},
	} {
		t.Run(fmtWindower(w), func(t *testing.T) {
			g, err := w.Group(times)
			if err != nil {
				t.Fatal(err)
			}
			seen := make([]int, len(times))
			total := 0
			for k, win := range g.Windows {
				total += win.Len()
				for i := win.Start; i < win.End; i++ {
					seen[i]++
					if g.Key[i] != k {
						t.Errorf("sample %d is in window %d but has key %d", i, k, g.Key[i])
					}
				}
			}
			if total != len(times) {
				t.Errorf("windows hold %d samples, want %d", total, len(times))
			}
			for i, s := range seen {
				if s != 1 {
					t.Errorf("sample %d is in %d windows", i, s)
				}
			}
		})
	}
}

func fmtWindower(w Windower) string {
	switch ww := w.(type) {
	case CalendarWindow:
		return "calendar_" + ww.String()
	case CountWindow:
		return "count_" + ww.String()
	}
	return "unknown"
}

func TestCountWindow(t *testing.T) {
	times := testTimes(10, time.Second)
	g, err := CountWindow{Size: 4}.Group(times)
	if err != nil {
		t.Fatal(err)
	}
	want := []Window{
		{Start: 0, End: 4, Label: times[2]},
		{Start: 4, End: 8, Label: times[6]},
		{Start: 8, End: 10, Label: times[9]},
	}
	if !reflect.DeepEqual(g.Windows, want) {
		t.Errorf("have %+v, want %+v", g.Windows, want)
	}
	if want := []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2}; !reflect.DeepEqual(g.Key, want) {
		t.Errorf("keys: have %v, want %v", g.Key, want)
	}
}

func TestInvalidWindow(t *testing.T) {
	times := testTimes(3, time.Second)
	for _, w := range []Windower{CountWindow{}, CountWindow{Size: -1}, CalendarWindow{}} {
		if _, err := w.Group(times); !errors.Is(err, ErrWindow) {
			t.Errorf("%#v: have error %v, want ErrWindow", w, err)
		}
	}
}

func TestCalendarWindowTooManyEmpty(t *testing.T) {
	times := []time.Time{testStart, testStart.AddDate(1, 0, 0)}
	if _, err := (CalendarWindow{Period: time.Millisecond}).Group(times); !errors.Is(err, ErrWindow) {
		t.Errorf("have error %v, want ErrWindow", err)
	}
	// Gaps below the limit are still filled with empty windows.
	times = []time.Time{testStart, testStart.Add(time.Duration(MaxEmptyWindows) * time.Second)}
	g, err := CalendarWindow{Period: time.Second}.Group(times)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := len(g.Windows), MaxEmptyWindows+1; have != want {
		t.Errorf("have %d windows, want %d", have, want)
	}
}

func TestEmptyIndex(t *testing.T) {
	for _, w := range []Windower{CountWindow{Size: 3}, CalendarWindow{Period: time.Minute}} {
		g, err := w.Group(nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(g.Windows) != 0 {
			t.Errorf("%#v: have %d windows, want 0", w, len(g.Windows))
		}
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{in: "30T", want: 30 * time.Minute},
		{in: "30min", want: 30 * time.Minute},
		{in: "30m", want: 30 * time.Minute},
		{in: "1H", want: time.Hour},
		{in: "H", want: time.Hour},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "1.5H", want: 90 * time.Minute},
		{in: "10S", want: 10 * time.Second},
		{in: "500L", want: 500 * time.Millisecond},
		{in: "100U", want: 100 * time.Microsecond},
		{in: "1D", want: 24 * time.Hour},
		{in: " 5min ", want: 5 * time.Minute},
		{in: "", err: true},
		{in: "0T", err: true},
		{in: "-5m", err: true},
		{in: "30X", err: true},
		{in: "abc", err: true},
		{in: "3..0T", err: true},
		{in: "99999999999D", err: true},
		{in: "99999999999h", err: true},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			have, err := ParsePeriod(test.in)
			if test.err {
				if !errors.Is(err, ErrWindow) {
					t.Errorf("have error %v, want ErrWindow", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if have != test.want {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}
}
