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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ecflux/tsio"
	"github.com/spf13/cast"
)

// jobFromConfig creates a job from the configuration variables shared
// by the flux, tke and fluctuations commands. It also provides the
// defaults for batch jobs.
func jobFromConfig(cfg *viper.Viper) (*Job, error) {
	j := &Job{
		Input:      os.ExpandEnv(cfg.GetString("Input")),
		TimeColumn: cfg.GetString("TimeColumn"),
		TimeFormat: cfg.GetString("TimeFormat"),
		TimeZone:   cfg.GetString("TimeZone"),
		Flux:       cfg.GetString("Flux"),
		W:          cfg.GetString("W"),
		Scalar:     cfg.GetString("Scalar"),
		U:          cfg.GetString("U"),
		V:          cfg.GetString("V"),
		Window:     cfg.GetString("Window"),
		WindowSize: cfg.GetInt("WindowSize"),
		Plot:       os.ExpandEnv(cfg.GetString("Plot")),
	}
	var err error
	if j.Output, err = checkOutputFile(cfg.GetString("Output")); err != nil {
		return nil, err
	}
	if j.Derive, err = stringMap(cfg, "Derive"); err != nil {
		return nil, err
	}
	for _, c := range []struct {
		name string
		v    *float64
	}{
		{name: "Rho", v: &j.Rho},
		{name: "Cp", v: &j.Cp},
		{name: "Lv", v: &j.Lv},
	} {
		if *c.v, err = getFloat64(cfg, c.name); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// getFloat64 returns the named configuration variable as a float64.
// Values set in configuration files can be integers or strings.
func getFloat64(cfg *viper.Viper, name string) (float64, error) {
	i := cfg.Get(name)
	if i == nil {
		return 0, nil
	}
	v, err := cast.ToFloat64E(i)
	if err != nil {
		return 0, fmt.Errorf("ecflux: invalid value for %s: %v", name, err)
	}
	return v, nil
}

// stringSlice returns the named configuration variable as a slice of
// strings, accounting for the fact that it might be a comma-separated
// string if it was set from an environment variable.
func stringSlice(cfg *viper.Viper, name string) ([]string, error) {
	i := cfg.Get(name)
	if s, ok := i.(string); ok {
		if s == "" {
			return nil, nil
		}
		return strings.Split(s, ","), nil
	}
	o, err := cast.ToStringSliceE(i)
	if err != nil {
		return nil, fmt.Errorf("ecflux: invalid value for %s: %v", name, err)
	}
	return o, nil
}

// stringMap returns the named configuration variable as a map,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func stringMap(cfg *viper.Viper, name string) (map[string]string, error) {
	switch v := cfg.Get(name).(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		o := make(map[string]string)
		if err := json.NewDecoder(strings.NewReader(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("ecflux: invalid value for %s: %v", name, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("ecflux: invalid type for %s: %#v", name, v)
	}
}

// workers returns n, or the number of processors if n is not positive.
func workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(-1)
	}
	return n
}

// checkOutputFile expands any environment variables in the output
// file and makes sure that its directory or bucket exists.
// An empty output file is allowed.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", nil
	}
	f = os.ExpandEnv(f)
	if tsio.IsBlob(f) {
		i := strings.Index(f, "://")
		bucket := f
		if j := strings.Index(f[i+3:], "/"); j >= 0 {
			bucket = f[:i+3+j]
		}
		b, err := tsio.OpenBucket(context.TODO(), bucket)
		if err != nil {
			return f, fmt.Errorf("ecflux: error when checking Output location: %v", err)
		}
		b.Close()
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("ecflux: the Output directory doesn't exist: %v", err)
	}
	return f, nil
}

// clickHouseConfig returns the ClickHouse configuration, or nil if
// no server is configured.
func clickHouseConfig(cfg *viper.Viper) *tsio.ClickHouseConfig {
	addr := os.ExpandEnv(cfg.GetString("ClickHouse.Addr"))
	if addr == "" {
		return nil
	}
	return &tsio.ClickHouseConfig{
		Addr:     addr,
		Database: cfg.GetString("ClickHouse.Database"),
		Table:    cfg.GetString("ClickHouse.Table"),
		User:     cfg.GetString("ClickHouse.User"),
		Password: os.ExpandEnv(cfg.GetString("ClickHouse.Password")),
	}
}

// newConfiguredRunner creates a runner, connecting to ClickHouse if
// it is configured.
func newConfiguredRunner(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger, out io.Writer, n int) (*runner, error) {
	r := newRunner(log, out, n)
	if c := clickHouseConfig(cfg); c != nil {
		sink, err := tsio.NewClickHouseSink(ctx, *c, log)
		if err != nil {
			return nil, err
		}
		r.sink = sink
	}
	return r, nil
}
