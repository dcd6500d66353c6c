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
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/spatialmodel/ecflux"
)

// ReadTable reads a time-series table from path, choosing the format
// from the file extension: ".csv" (or ".txt" and ".dat"), ".parquet"
// or ".nc" (NetCDF).
// The timestamps of the returned table are checked to be ascending.
func ReadTable(ctx context.Context, path string, o ReadOptions) (*ecflux.Table, error) {
	var tbl *ecflux.Table
	switch f := format(path); f {
	case "csv", "txt", "dat":
		r, err := Open(ctx, path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		if tbl, err = ReadCSV(r, o); err != nil {
			return nil, fmt.Errorf("%v (file %s)", err, path)
		}
	case "parquet":
		ra, size, closer, err := openReaderAt(ctx, path)
		if err != nil {
			return nil, err
		}
		defer closer.Close()
		if tbl, err = ReadParquet(ra, size, o); err != nil {
			return nil, fmt.Errorf("%v (file %s)", err, path)
		}
	case "nc":
		nc, cleanup, err := localFile(ctx, path)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		if tbl, err = ReadNetCDF(nc, o); err != nil {
			return nil, fmt.Errorf("%v (file %s)", err, path)
		}
	default:
		return nil, fmt.Errorf("tsio: unsupported input format '%s' for file %s", f, path)
	}
	if err := tbl.Validate(); err != nil {
		return nil, fmt.Errorf("tsio: %s: %v", path, err)
	}
	return tbl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openReaderAt opens path for random access. Uncompressed local files
// are read in place; everything else is first read into memory.
func openReaderAt(ctx context.Context, path string) (io.ReaderAt, int64, io.Closer, error) {
	if !IsURL(path) && !IsBlob(path) && !isGzip(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("tsio: %v", err)
		}
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, nil, fmt.Errorf("tsio: %v", err)
		}
		return f, fi.Size(), f, nil
	}
	r, err := Open(ctx, path)
	if err != nil {
		return nil, 0, nil, err
	}
	defer r.Close()
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("tsio: reading %s: %v", path, err)
	}
	return bytes.NewReader(b), int64(len(b)), nopCloser{}, nil
}

// localFile returns path as a local file. Remote or compressed files
// are first copied to a temporary file, which is removed by cleanup.
func localFile(ctx context.Context, path string) (f *os.File, cleanup func(), err error) {
	if !IsURL(path) && !IsBlob(path) && !isGzip(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("tsio: %v", err)
		}
		return f, func() { f.Close() }, nil
	}
	r, err := Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	tmp, err := ioutil.TempFile("", "ecflux")
	if err != nil {
		return nil, nil, fmt.Errorf("tsio: %v", err)
	}
	cleanup = func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("tsio: reading %s: %v", path, err)
	}
	return tmp, cleanup, nil
}

// writeNetCDFFile writes series to a NetCDF file at path. The NetCDF
// writer needs random access, so files other than uncompressed local
// files are written to a temporary file first.
func writeNetCDFFile(ctx context.Context, path string, series ...*ecflux.Series) error {
	if !IsBlob(path) && !isGzip(path) {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("tsio: %v", err)
		}
		if err := WriteNetCDF(f, series...); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	tmp, err := ioutil.TempFile("", "ecflux")
	if err != nil {
		return fmt.Errorf("tsio: %v", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if err := WriteNetCDF(tmp, series...); err != nil {
		return err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("tsio: %v", err)
	}
	w, err := Create(ctx, path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, tmp); err != nil {
		w.Close()
		return fmt.Errorf("tsio: writing %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("tsio: closing %s: %v", path, err)
	}
	return nil
}

// WriteSeries writes series to path, choosing the format from the file
// extension: ".csv", ".parquet", ".xlsx" or ".nc" (NetCDF).
func WriteSeries(ctx context.Context, path string, series ...*ecflux.Series) error {
	var write func(io.Writer, ...*ecflux.Series) error
	switch f := format(path); f {
	case "csv":
		write = WriteCSV
	case "parquet":
		write = WriteParquet
	case "xlsx":
		write = WriteXLSX
	case "nc":
		return writeNetCDFFile(ctx, path, series...)
	default:
		return fmt.Errorf("tsio: unsupported output format '%s' for file %s", f, path)
	}
	w, err := Create(ctx, path)
	if err != nil {
		return err
	}
	if err := write(w, series...); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("tsio: closing %s: %v", path, err)
	}
	return nil
}

// WriteTable writes a table to path as comma-separated values.
func WriteTable(ctx context.Context, path string, tbl *ecflux.Table) error {
	if f := format(path); f != "csv" {
		return fmt.Errorf("tsio: unsupported table output format '%s' for file %s", f, path)
	}
	w, err := Create(ctx, path)
	if err != nil {
		return err
	}
	if err := WriteTableCSV(w, tbl); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("tsio: closing %s: %v", path, err)
	}
	return nil
}
