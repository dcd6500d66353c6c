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
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/ecflux/tsio"
	"golang.org/x/sync/errgroup"
)

// jobFile is the structure of a batch job file.
type jobFile struct {
	Job []Job
}

// ReadJobs reads the [[Job]] tables from the TOML file at path, which
// may be a local file, URL or blob. Fields that are not set in a job
// are taken from defaults, and jobs without a name are named after
// their position in the file.
func ReadJobs(ctx context.Context, path string, defaults Job) ([]*Job, error) {
	r, err := tsio.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var f jobFile
	md, err := toml.DecodeReader(r, &f)
	if err != nil {
		return nil, fmt.Errorf("ecflux: reading job file %s: %v", path, err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		return nil, fmt.Errorf("ecflux: unknown fields in job file %s: %v", path, u)
	}
	if len(f.Job) == 0 {
		return nil, fmt.Errorf("ecflux: no jobs in job file %s", path)
	}
	jobs := make([]*Job, len(f.Job))
	names := make(map[string]bool)
	for i, j := range f.Job {
		jobs[i] = j.withDefaults(defaults)
		if jobs[i].Name == "" {
			jobs[i].Name = fmt.Sprintf("job%d", i+1)
		}
		if names[jobs[i].Name] {
			return nil, fmt.Errorf("ecflux: duplicate job name '%s' in %s", jobs[i].Name, path)
		}
		names[jobs[i].Name] = true
		if err := jobs[i].check(); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// runBatch runs jobs concurrently, at most n at a time. The first
// error cancels the jobs that have not finished.
func (r *runner) runBatch(ctx context.Context, jobs []*Job, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.run(ctx, j); err != nil {
				return fmt.Errorf("ecflux: job '%s': %w", j.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.log.WithField("jobs", len(jobs)).Info("batch finished")
	return nil
}
