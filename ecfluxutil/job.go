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
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ecflux"
	"github.com/spatialmodel/ecflux/tsio"
)

// TKE is the Job.Flux value that requests turbulent kinetic energy
// instead of a covariance flux.
const TKE = "TKE"

// Job holds the information needed to calculate one flux (or TKE)
// series from one input file.
type Job struct {
	// Name identifies the job in log messages.
	Name string

	// Input is the path or URL of the input time series.
	Input string

	// TimeColumn, TimeFormat and TimeZone specify how timestamps
	// are read from Input.
	TimeColumn, TimeFormat, TimeZone string

	// Flux is the kind of flux: H, L, LE, Tau or TKE.
	Flux string

	// W, Scalar, U and V are the input column names.
	W, Scalar, U, V string

	// Window is the averaging period for fluxes, e.g. "30min".
	Window string

	// WindowSize is the number of samples per TKE window.
	WindowSize int

	// Output is the output file (.csv, .parquet or .xlsx). If Output,
	// Plot and the ClickHouse sink are all unset, CSV is written to
	// standard output.
	Output string

	// Plot is an optional image file to plot the results to.
	Plot string

	// Rho, Cp and Lv override the default physical constants if non-zero.
	Rho, Cp, Lv float64

	// Derive defines additional input columns as expressions of
	// existing ones, e.g. {"T_K": "T_C + 273.15"}.
	Derive map[string]string
}

// withDefaults returns a copy of j with unset fields filled in from d.
func (j Job) withDefaults(d Job) *Job {
	str := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	str(&j.TimeColumn, d.TimeColumn)
	str(&j.TimeFormat, d.TimeFormat)
	str(&j.TimeZone, d.TimeZone)
	str(&j.Flux, d.Flux)
	str(&j.W, d.W)
	str(&j.Scalar, d.Scalar)
	str(&j.U, d.U)
	str(&j.V, d.V)
	str(&j.Window, d.Window)
	if j.WindowSize == 0 {
		j.WindowSize = d.WindowSize
	}
	if j.Rho == 0 {
		j.Rho = d.Rho
	}
	if j.Cp == 0 {
		j.Cp = d.Cp
	}
	if j.Lv == 0 {
		j.Lv = d.Lv
	}
	if j.Derive == nil {
		j.Derive = d.Derive
	}
	return &j
}

func (j *Job) isTKE() bool { return strings.EqualFold(j.Flux, TKE) }

func (j *Job) readOptions() (tsio.ReadOptions, error) {
	o := tsio.ReadOptions{
		TimeColumn: j.TimeColumn,
		TimeFormat: j.TimeFormat,
	}
	if j.TimeZone != "" {
		loc, err := time.LoadLocation(j.TimeZone)
		if err != nil {
			return o, fmt.Errorf("ecflux: invalid TimeZone '%s': %v", j.TimeZone, err)
		}
		o.Location = loc
	}
	return o, nil
}

func (j *Job) columns() ecflux.Columns {
	return ecflux.Columns{W: j.W, Scalar: j.Scalar, U: j.U, V: j.V}
}

// constants returns the options overriding the default constants.
func (j *Job) constants() []ecflux.Option {
	var opts []ecflux.Option
	if j.Rho != 0 {
		opts = append(opts, ecflux.WithRho(j.Rho))
	}
	if j.Cp != 0 {
		opts = append(opts, ecflux.WithCp(j.Cp))
	}
	if j.Lv != 0 {
		opts = append(opts, ecflux.WithLv(j.Lv))
	}
	return opts
}

// check makes sure the job is complete enough to run.
func (j *Job) check() error {
	if j.Input == "" {
		return fmt.Errorf("ecflux: job '%s': no Input specified", j.Name)
	}
	if j.TimeColumn == "" {
		return fmt.Errorf("ecflux: job '%s': no TimeColumn specified", j.Name)
	}
	if j.isTKE() {
		if j.WindowSize <= 0 {
			return fmt.Errorf("ecflux: job '%s': WindowSize must be positive: %w", j.Name, ecflux.ErrWindow)
		}
		return nil
	}
	k, err := ecflux.ParseKind(j.Flux)
	if err != nil {
		return fmt.Errorf("ecflux: job '%s': %w", j.Name, err)
	}
	if err := k.Validate(j.columns()); err != nil {
		return fmt.Errorf("ecflux: job '%s': %w", j.Name, err)
	}
	if _, err := ecflux.ParsePeriod(j.Window); err != nil {
		return fmt.Errorf("ecflux: job '%s': %w", j.Name, err)
	}
	if j.Plot != "" && (tsio.IsBlob(j.Plot) || tsio.IsURL(j.Plot)) {
		return fmt.Errorf("ecflux: job '%s': Plot must be a local file", j.Name)
	}
	return nil
}

// loader reads input tables, sharing the result between concurrent
// requests for the same file.
type loader struct {
	cache *requestcache.Cache
}

type loadRequest struct {
	path string
	o    tsio.ReadOptions
}

func newLoader(workers, cacheSize int) *loader {
	return &loader{
		cache: requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			r := request.(loadRequest)
			return tsio.ReadTable(ctx, r.path, r.o)
		}, workers, requestcache.Deduplicate(), requestcache.Memory(cacheSize)),
	}
}

// load returns the table at path. The returned table is shared and
// must not be modified.
func (l *loader) load(ctx context.Context, path string, o tsio.ReadOptions) (*ecflux.Table, error) {
	key := fmt.Sprintf("%s|%s|%s|%v", path, o.TimeColumn, o.TimeFormat, o.Location)
	req := l.cache.NewRequest(ctx, loadRequest{path: path, o: o}, key)
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*ecflux.Table), nil
}

// runner runs jobs.
type runner struct {
	log  logrus.FieldLogger
	load *loader
	sink *tsio.ClickHouseSink

	outMu sync.Mutex
	out   io.Writer
}

func newRunner(log logrus.FieldLogger, out io.Writer, workers int) *runner {
	return &runner{
		log:  log,
		load: newLoader(workers, 8),
		out:  out,
	}
}

// run calculates and writes the result of j.
func (r *runner) run(ctx context.Context, j *Job) error {
	if err := j.check(); err != nil {
		return err
	}
	log := r.log.WithFields(logrus.Fields{
		"job":   j.Name,
		"input": j.Input,
		"kind":  j.Flux,
	})
	o, err := j.readOptions()
	if err != nil {
		return err
	}
	start := time.Now()
	tbl, err := r.load.load(ctx, j.Input, o)
	if err != nil {
		return err
	}
	log.WithField("samples", tbl.Len()).Debug("loaded input")
	if tbl, err = derive(tbl, j.Derive); err != nil {
		return err
	}

	var s *ecflux.Series
	if j.isTKE() {
		s, err = ecflux.TKESeries(tbl, j.WindowSize, j.U, j.V, j.W)
	} else {
		s, err = ecflux.ComputeFlux(tbl, j.Flux, j.columns(), j.Window, j.constants()...)
	}
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"windows":  s.Len(),
		"duration": time.Since(start),
	}).Info("calculated flux")
	return r.write(ctx, log, j, s)
}

// write sends s to the destinations specified by j.
func (r *runner) write(ctx context.Context, log logrus.FieldLogger, j *Job, s *ecflux.Series) error {
	if j.Output != "" {
		if err := tsio.WriteSeries(ctx, j.Output, s); err != nil {
			return err
		}
		log.WithField("output", j.Output).Info("wrote output")
	}
	if j.Plot != "" {
		if err := tsio.PlotSeries(j.Plot, s); err != nil {
			return err
		}
		log.WithField("plot", j.Plot).Info("wrote plot")
	}
	if r.sink != nil {
		if err := r.sink.Insert(ctx, s); err != nil {
			return err
		}
	}
	if j.Output == "" && j.Plot == "" && r.sink == nil {
		var b bytes.Buffer
		if err := tsio.WriteCSV(&b, s); err != nil {
			return err
		}
		return r.print(b.Bytes())
	}
	return nil
}

// close closes the ClickHouse connection, if there is one.
func (r *runner) close() error {
	if r.sink == nil {
		return nil
	}
	return r.sink.Close()
}

func (r *runner) print(b []byte) error {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	_, err := r.out.Write(b)
	return err
}
