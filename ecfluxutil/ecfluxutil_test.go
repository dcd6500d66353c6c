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

package ecfluxutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ecflux"
	"github.com/spatialmodel/ecflux/tsio"
)

const testTolerance = 1e-9

var testStart = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func different(a, b, tolerance float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return !(math.IsNaN(a) && math.IsNaN(b))
	}
	return math.Abs(a-b) > tolerance*math.Max(1, math.Abs(b))
}

// writeInput writes two minutes of samples every 10 seconds where the
// vertical wind alternates between 1 and -1 m/s and every other
// variable is perfectly correlated with it, so that within one-minute
// windows <w'T'> = <u'w'> = 1, <v'w'> = -1 and <w'q'> = 0.001.
func writeInput(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,u,v,w,T,q\n")
	for i := 0; i < 12; i++ {
		w := 1.0
		if i%2 == 1 {
			w = -1
		}
		fmt.Fprintf(&b, "%s,%g,%g,%g,%g,%g\n", testStart.Add(time.Duration(i)*10*time.Second).Format(time.RFC3339),
			3+w, -1-w, w, 20+w, 0.008+0.001*w)
	}
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// resetConfig sets the configuration variables used by the tests.
func resetConfig(input string) {
	for k, v := range map[string]interface{}{
		"config":          "",
		"LogLevel":        "error",
		"LogFile":         "",
		"Input":           input,
		"TimeColumn":      "time",
		"TimeFormat":      "",
		"TimeZone":        "",
		"Output":          "",
		"Plot":            "",
		"Flux":            "H",
		"W":               "w",
		"Scalar":          "T",
		"U":               "u",
		"V":               "v",
		"Window":          "1min",
		"WindowSize":      6,
		"Rho":             1.2,
		"Cp":              1005.0,
		"Lv":              2.5e6,
		"Columns":         []string{},
		"Derive":          map[string]string{},
		"Jobs":            "",
		"Workers":         2,
		"ClickHouse.Addr": "",
	} {
		Cfg.Set(k, v)
	}
}

// readSeries reads a series written by the flux or tke commands.
func readSeries(t *testing.T, path, name string) ([]time.Time, []float64) {
	t.Helper()
	tbl, err := tsio.ReadTable(context.Background(), path, tsio.ReadOptions{TimeColumn: "time"})
	if err != nil {
		t.Fatal(err)
	}
	v, err := tbl.Column(name)
	if err != nil {
		t.Fatal(err)
	}
	return tbl.Time(), v
}

func TestVersion(t *testing.T) {
	resetConfig("")
	var out bytes.Buffer
	Root.SetOutput(&out)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "ecflux v" + ecflux.Version; !strings.Contains(out.String(), want) {
		t.Errorf("have %q, want %q", out.String(), want)
	}
}

func TestFlux(t *testing.T) {
	input := writeInput(t)
	dir := t.TempDir()
	for _, test := range []struct {
		kind, scalar, name string
		want               float64
	}{
		{kind: "H", scalar: "T", name: "H_W_per_m2", want: 1.2 * 1005},
		{kind: "LE", scalar: "q", name: "LE_W_per_m2", want: 1.2 * 2.5e6 * 0.001},
		{kind: "Tau", name: "tau_N_per_m2", want: 1.2 * math.Sqrt2},
	} {
		t.Run(test.kind, func(t *testing.T) {
			resetConfig(input)
			output := filepath.Join(dir, test.kind+".csv")
			Cfg.Set("Flux", test.kind)
			Cfg.Set("Scalar", test.scalar)
			Cfg.Set("Output", output)
			Root.SetOutput(&bytes.Buffer{})
			Root.SetArgs([]string{"flux"})
			if err := Root.Execute(); err != nil {
				t.Fatal(err)
			}
			times, values := readSeries(t, output, test.name)
			if len(values) != 2 {
				t.Fatalf("windows: have %d, want 2", len(values))
			}
			for i, v := range values {
				if different(v, test.want, testTolerance) {
					t.Errorf("window %d: have %g, want %g", i, v, test.want)
				}
				if want := testStart.Add(time.Duration(i) * time.Minute); !times[i].Equal(want) {
					t.Errorf("window %d: have label %v, want %v", i, times[i], want)
				}
			}
		})
	}
}

func TestFlux_stdout(t *testing.T) {
	resetConfig(writeInput(t))
	Cfg.Set("Rho", 1.0)
	Cfg.Set("Cp", 1.0)
	var out bytes.Buffer
	Root.SetOutput(&out)
	Root.SetArgs([]string{"flux"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	want := "time,H_W_per_m2\n2024-06-01T12:00:00Z,1\n2024-06-01T12:01:00Z,1\n"
	if out.String() != want {
		t.Errorf("have\n%s\nwant\n%s", out.String(), want)
	}
}

func TestFlux_errors(t *testing.T) {
	input := writeInput(t)
	for _, test := range []struct {
		name, key string
		value     interface{}
		want      error
	}{
		{name: "kind", key: "Flux", value: "CO2", want: ecflux.ErrUnknownKind},
		{name: "scalar", key: "Scalar", value: "", want: ecflux.ErrMissingColumn},
		{name: "window", key: "Window", value: "-5min", want: ecflux.ErrWindow},
		{name: "column", key: "Scalar", value: "CO2", want: ecflux.ErrMissingColumn},
		{name: "constant", key: "Rho", value: -1.0, want: ecflux.ErrConstant},
	} {
		t.Run(test.name, func(t *testing.T) {
			resetConfig(input)
			Cfg.Set(test.key, test.value)
			Root.SetOutput(&bytes.Buffer{})
			Root.SetArgs([]string{"flux"})
			if err := Root.Execute(); !errors.Is(err, test.want) {
				t.Errorf("have %v, want %v", err, test.want)
			}
		})
	}
}

func TestTKE(t *testing.T) {
	resetConfig(writeInput(t))
	output := filepath.Join(t.TempDir(), "tke.parquet")
	Cfg.Set("Output", output)
	Cfg.Set("WindowSize", 5)
	Root.SetOutput(&bytes.Buffer{})
	Root.SetArgs([]string{"tke"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	_, values := readSeries(t, output, "value")
	// Blocks of 5, 5 and 2 samples.
	want := []float64{1.5 * (1 - 1.0/25), 1.5 * (1 - 1.0/25), 1.5}
	if len(values) != len(want) {
		t.Fatalf("windows: have %d, want %d", len(values), len(want))
	}
	for i, v := range values {
		if different(v, want[i], testTolerance) {
			t.Errorf("window %d: have %g, want %g", i, v, want[i])
		}
	}
}

func TestFluctuations(t *testing.T) {
	resetConfig(writeInput(t))
	output := filepath.Join(t.TempDir(), "prime.csv")
	Cfg.Set("Output", output)
	Cfg.Set("Columns", []string{"w", "T"})
	Root.SetOutput(&bytes.Buffer{})
	Root.SetArgs([]string{"fluctuations"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	tbl, err := tsio.ReadTable(context.Background(), output, tsio.ReadOptions{TimeColumn: "time"})
	if err != nil {
		t.Fatal(err)
	}
	if have, want := strings.Join(tbl.Columns(), ","), "w_prime,T_prime"; have != want {
		t.Fatalf("columns: have %s, want %s", have, want)
	}
	w, _ := tbl.Column("w_prime")
	T, _ := tbl.Column("T_prime")
	for i := range w {
		if different(w[i], T[i], testTolerance) {
			t.Errorf("sample %d: w' = %g but T' = %g", i, w[i], T[i])
		}
		if math.Abs(w[i]) != 1 {
			t.Errorf("sample %d: have w' = %g, want ±1", i, w[i])
		}
	}
}

func TestFlux_derive(t *testing.T) {
	resetConfig(writeInput(t))
	output := filepath.Join(t.TempDir(), "H.csv")
	Cfg.Set("Output", output)
	Cfg.Set("Scalar", "T_K")
	Cfg.Set("Derive", `{"T_K": "T + 273.15"}`)
	Root.SetOutput(&bytes.Buffer{})
	Root.SetArgs([]string{"flux"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	_, values := readSeries(t, output, "H_W_per_m2")
	for i, v := range values {
		if different(v, 1.2*1005, testTolerance) {
			t.Errorf("window %d: have %g, want %g", i, v, 1.2*1005)
		}
	}
}

const testJobs = `
[[Job]]
Name = "H"
Input = "%[1]s"
Scalar = "T"
Output = "%[2]s/H.xlsx"

[[Job]]
Name = "Tau"
Input = "%[1]s"
Flux = "Tau"
Output = "%[2]s/tau.csv"

[[Job]]
Input = "%[1]s"
Flux = "TKE"
WindowSize = 6
Output = "%[2]s/tke.csv"
`

func writeJobs(t *testing.T, input, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "jobs.toml")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(testJobs, input, dir)), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadJobs(t *testing.T) {
	dir := t.TempDir()
	path := writeJobs(t, writeInput(t), dir)
	defaults := Job{TimeColumn: "time", Flux: "H", W: "w", Scalar: "T", U: "u", V: "v", Window: "1min", Rho: 1.1}
	jobs, err := ReadJobs(context.Background(), path, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("jobs: have %d, want 3", len(jobs))
	}
	for i, want := range []struct {
		name, flux string
	}{{"H", "H"}, {"Tau", "Tau"}, {"job3", "TKE"}} {
		if jobs[i].Name != want.name || jobs[i].Flux != want.flux {
			t.Errorf("job %d: have %s %s, want %s %s", i, jobs[i].Name, jobs[i].Flux, want.name, want.flux)
		}
		if jobs[i].W != "w" || jobs[i].Rho != 1.1 || jobs[i].Window != "1min" {
			t.Errorf("job %d: defaults not applied: %+v", i, jobs[i])
		}
	}

	t.Run("config defaults", func(t *testing.T) {
		resetConfig("")
		Cfg.Set("Flux", "LE")
		d, err := jobFromConfig(Cfg)
		if err != nil {
			t.Fatal(err)
		}
		jobs, err := ReadJobs(context.Background(), path, *d)
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range []string{"LE", "Tau", "TKE"} {
			if jobs[i].Flux != want {
				t.Errorf("job %d: have flux %q, want %q", i, jobs[i].Flux, want)
			}
		}
	})
	t.Run("no default flux", func(t *testing.T) {
		resetConfig("")
		Cfg.Set("Flux", "")
		d, err := jobFromConfig(Cfg)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ReadJobs(context.Background(), path, *d); !errors.Is(err, ecflux.ErrUnknownKind) {
			t.Errorf("have %v, want %v", err, ecflux.ErrUnknownKind)
		}
	})
	t.Run("duplicate", func(t *testing.T) {
		p := filepath.Join(dir, "dup.toml")
		os.WriteFile(p, []byte("[[Job]]\nName=\"a\"\nInput=\"x.csv\"\n[[Job]]\nName=\"a\"\nInput=\"x.csv\"\n"), 0644)
		if _, err := ReadJobs(context.Background(), p, defaults); err == nil {
			t.Error("duplicate job names should be an error")
		}
	})
	t.Run("unknown field", func(t *testing.T) {
		p := filepath.Join(dir, "unknown.toml")
		os.WriteFile(p, []byte("[[Job]]\nInput=\"x.csv\"\nScaler=\"T\"\n"), 0644)
		if _, err := ReadJobs(context.Background(), p, defaults); err == nil {
			t.Error("unknown fields should be an error")
		}
	})
}

func TestBatch(t *testing.T) {
	input := writeInput(t)
	dir := t.TempDir()
	resetConfig(input)
	Root.SetOutput(&bytes.Buffer{})
	Root.SetArgs([]string{"batch", writeJobs(t, input, dir)})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "H.xlsx")); err != nil {
		t.Error(err)
	}
	_, tau := readSeries(t, filepath.Join(dir, "tau.csv"), "tau_N_per_m2")
	for i, v := range tau {
		if different(v, 1.2*math.Sqrt2, testTolerance) {
			t.Errorf("tau %d: have %g, want %g", i, v, 1.2*math.Sqrt2)
		}
	}
	_, tke := readSeries(t, filepath.Join(dir, "tke.csv"), "TKE_m2_per_s2")
	for i, v := range tke {
		if different(v, 1.5, testTolerance) {
			t.Errorf("tke %d: have %g, want 1.5", i, v)
		}
	}
}

func TestBatch_defaultFlux(t *testing.T) {
	input := writeInput(t)
	dir := t.TempDir()
	jobs := filepath.Join(dir, "jobs.toml")
	output := filepath.Join(dir, "le.csv")
	job := fmt.Sprintf("[[Job]]\nName = \"latent\"\nInput = %q\nOutput = %q\n", input, output)
	if err := os.WriteFile(jobs, []byte(job), 0644); err != nil {
		t.Fatal(err)
	}
	resetConfig(input)
	Cfg.Set("Flux", "LE")
	Cfg.Set("Scalar", "q")
	Root.SetOutput(&bytes.Buffer{})
	Root.SetArgs([]string{"batch", jobs})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	_, le := readSeries(t, output, "LE_W_per_m2")
	if len(le) != 2 {
		t.Fatalf("windows: have %d, want 2", len(le))
	}
	want := 1.2 * 2.5e6 * 0.001
	for i, v := range le {
		if different(v, want, testTolerance) {
			t.Errorf("window %d: have %g, want %g", i, v, want)
		}
	}
}

func TestBatch_error(t *testing.T) {
	log := logrus.New()
	log.Out = &bytes.Buffer{}
	r := newRunner(log, &bytes.Buffer{}, 2)
	jobs := []*Job{
		{Name: "missing", Input: filepath.Join(t.TempDir(), "missing.csv"), TimeColumn: "time",
			Flux: "H", W: "w", Scalar: "T", Window: "30min"},
	}
	err := r.runBatch(context.Background(), jobs, 2)
	if err == nil || !strings.Contains(err.Error(), "job 'missing'") {
		t.Errorf("have %v, want an error naming the job", err)
	}
}

func TestLoader(t *testing.T) {
	input := writeInput(t)
	l := newLoader(2, 4)
	o := tsio.ReadOptions{TimeColumn: "time"}
	a, err := l.load(context.Background(), input, o)
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.load(context.Background(), input, o)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("repeated loads should share the table")
	}
	if a.Len() != 12 {
		t.Errorf("samples: have %d, want 12", a.Len())
	}
}

func TestJobCheck(t *testing.T) {
	valid := Job{Name: "j", Input: "in.csv", TimeColumn: "time", Flux: "H", W: "w", Scalar: "T", Window: "30T"}
	if err := valid.check(); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name   string
		modify func(*Job)
	}{
		{name: "input", modify: func(j *Job) { j.Input = "" }},
		{name: "time column", modify: func(j *Job) { j.TimeColumn = "" }},
		{name: "kind", modify: func(j *Job) { j.Flux = "X" }},
		{name: "tau columns", modify: func(j *Job) { j.Flux = "Tau" }},
		{name: "window", modify: func(j *Job) { j.Window = "soon" }},
		{name: "tke size", modify: func(j *Job) { j.Flux = "tke"; j.WindowSize = 0 }},
		{name: "remote plot", modify: func(j *Job) { j.Plot = "gs://bucket/plot.png" }},
	} {
		t.Run(test.name, func(t *testing.T) {
			j := valid
			test.modify(&j)
			if err := j.check(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestConfigConversion(t *testing.T) {
	cfg := viper.New()
	cfg.Set("Rho", "1.15")
	cfg.Set("Cp", 1004)
	cfg.Set("Columns", "u,v,w")
	if v, err := getFloat64(cfg, "Rho"); err != nil || v != 1.15 {
		t.Errorf("Rho: have %g (%v), want 1.15", v, err)
	}
	if v, err := getFloat64(cfg, "Cp"); err != nil || v != 1004 {
		t.Errorf("Cp: have %g (%v), want 1004", v, err)
	}
	if v, err := getFloat64(cfg, "Lv"); err != nil || v != 0 {
		t.Errorf("Lv: have %g (%v), want 0", v, err)
	}
	cols, err := stringSlice(cfg, "Columns")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cols, "|") != "u|v|w" {
		t.Errorf("Columns: have %v, want [u v w]", cols)
	}
	cfg.Set("Rho", "dense")
	if _, err := getFloat64(cfg, "Rho"); err == nil {
		t.Error("invalid constant should be an error")
	}
}

func TestNewLogger(t *testing.T) {
	var b bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "ecflux.log")
	log, closeLog, err := newLogger(&b, "debug", logFile)
	if err != nil {
		t.Fatal(err)
	}
	log.WithField("job", "test").Debug("hello")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}
	f, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{b.String(), string(f)} {
		if !strings.Contains(s, "hello") || !strings.Contains(s, "job=test") {
			t.Errorf("unexpected log output %q", s)
		}
	}
	if _, _, err := newLogger(&b, "loud", ""); err == nil {
		t.Error("invalid level should be an error")
	}
}
