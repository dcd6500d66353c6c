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
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Window is a contiguous span of samples [Start, End) with a
// representative timestamp.
type Window struct {
	Start, End int
	Label      time.Time
}

// Len returns the number of samples in the window.
func (w Window) Len() int { return w.End - w.Start }

// Grouping assigns each sample of a time index to a window.
// Key[i] is the index into Windows of the window that sample i belongs to.
// Windows do not overlap and together cover every sample exactly once.
type Grouping struct {
	Key     []int
	Windows []Window
}

// A Windower partitions a time index into non-overlapping windows.
type Windower interface {
	Group(times []time.Time) (*Grouping, error)
}

// MaxEmptyWindows is the largest number of windows without samples that
// CalendarWindow.Group will create. Groupings that need more are
// rejected with ErrWindow.
const MaxEmptyWindows = 1 << 20

// CalendarWindow groups samples into windows of a fixed wall-clock duration.
// Windows are aligned to midnight of the day of the first sample and are
// labeled by their start time. Every window between the first and the last
// sample is returned, including windows that contain no samples.
type CalendarWindow struct {
	Period time.Duration
}

// Group implements Windower.
func (c CalendarWindow) Group(times []time.Time) (*Grouping, error) {
	if c.Period <= 0 {
		return nil, fmt.Errorf("ecflux: calendar window period must be positive but is %v: %w", c.Period, ErrWindow)
	}
	g := &Grouping{Key: make([]int, len(times))}
	if len(times) == 0 {
		return g, nil
	}
	t0 := times[0]
	origin := time.Date(t0.Year(), t0.Month(), t0.Day(), 0, 0, 0, 0, t0.Location())

	bins := make([]int64, len(times))
	minBin, maxBin := int64(0), int64(0)
	for i, t := range times {
		b := floorDiv(int64(t.Sub(origin)), int64(c.Period))
		bins[i] = b
		if i == 0 || b < minBin {
			minBin = b
		}
		if i == 0 || b > maxBin {
			maxBin = b
		}
	}
	if nw := maxBin - minBin + 1; nw > int64(len(times))+MaxEmptyWindows {
		return nil, fmt.Errorf("ecflux: %v windows over %v would be mostly empty (%d windows for %d samples): %w",
			c.Period, times[len(times)-1].Sub(t0), nw, len(times), ErrWindow)
	}
	g.Windows = make([]Window, maxBin-minBin+1)
	for k := range g.Windows {
		g.Windows[k].Label = origin.Add(time.Duration(minBin+int64(k)) * c.Period)
		g.Windows[k].Start = -1
	}
	for i, b := range bins {
		k := int(b - minBin)
		g.Key[i] = k
		if g.Windows[k].Start < 0 {
			g.Windows[k].Start = i
		}
		g.Windows[k].End = i + 1
	}
	// Empty windows get a zero-length span at the position where they
	// would have started.
	next := len(times)
	for k := len(g.Windows) - 1; k >= 0; k-- {
		if g.Windows[k].Start < 0 {
			g.Windows[k].Start, g.Windows[k].End = next, next
		}
		next = g.Windows[k].Start
	}
	return g, nil
}

func (c CalendarWindow) String() string { return c.Period.String() }

// floorDiv returns a/b rounded towards negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// CountWindow groups samples into consecutive blocks of Size samples.
// If the number of samples is not a multiple of Size, the final block
// holds the remaining samples. Each block is labeled with the timestamp
// of its middle sample.
type CountWindow struct {
	Size int
}

// Group implements Windower.
func (c CountWindow) Group(times []time.Time) (*Grouping, error) {
	if c.Size <= 0 {
		return nil, fmt.Errorf("ecflux: window size must be positive but is %d: %w", c.Size, ErrWindow)
	}
	g := &Grouping{Key: make([]int, len(times))}
	for start := 0; start < len(times); start += c.Size {
		end := start + c.Size
		if end > len(times) {
			end = len(times)
		}
		k := len(g.Windows)
		for i := start; i < end; i++ {
			g.Key[i] = k
		}
		g.Windows = append(g.Windows, Window{
			Start: start,
			End:   end,
			Label: times[start+(end-start)/2],
		})
	}
	return g, nil
}

func (c CountWindow) String() string { return strconv.Itoa(c.Size) + " samples" }

var periodAlias = regexp.MustCompile(`^([0-9]*\.?[0-9]*)\s*([A-Za-z]+)$`)

// periodUnits maps pandas offset aliases to durations.
var periodUnits = map[string]time.Duration{
	"D":   24 * time.Hour,
	"d":   24 * time.Hour,
	"H":   time.Hour,
	"h":   time.Hour,
	"T":   time.Minute,
	"min": time.Minute,
	"S":   time.Second,
	"s":   time.Second,
	"L":   time.Millisecond,
	"ms":  time.Millisecond,
	"U":   time.Microsecond,
	"us":  time.Microsecond,
	"N":   time.Nanosecond,
	"ns":  time.Nanosecond,
}

// ParsePeriod parses a window duration. It accepts Go duration strings
// such as "30m" or "1h30m" as well as pandas-style offset aliases such as
// "30T", "30min", "1H" or "500L". A missing multiplier means 1 ("H" is one
// hour). The period must be positive.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("ecflux: window period not specified: %w", ErrWindow)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		m := periodAlias.FindStringSubmatch(s)
		if m == nil {
			return 0, fmt.Errorf("ecflux: can't parse window period '%s': %w", s, ErrWindow)
		}
		u, ok := periodUnits[m[2]]
		if !ok {
			return 0, fmt.Errorf("ecflux: unsupported unit '%s' in window period '%s': %w", m[2], s, ErrWindow)
		}
		n := 1.
		if m[1] != "" {
			n, err = strconv.ParseFloat(m[1], 64)
			if err != nil {
				return 0, fmt.Errorf("ecflux: can't parse window period '%s': %w", s, ErrWindow)
			}
		}
		f := n * float64(u)
		if f >= math.MaxInt64 {
			return 0, fmt.Errorf("ecflux: window period '%s' is too long: %w", s, ErrWindow)
		}
		d = time.Duration(f)
	}
	if d <= 0 {
		return 0, fmt.Errorf("ecflux: window period '%s' must be positive: %w", s, ErrWindow)
	}
	return d, nil
}

// ParseWindow returns a CalendarWindow for the period given in s.
// See ParsePeriod for the accepted formats.
func ParseWindow(s string) (CalendarWindow, error) {
	d, err := ParsePeriod(s)
	if err != nil {
		return CalendarWindow{}, err
	}
	return CalendarWindow{Period: d}, nil
}
