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

// Package tsio reads time-series tables for flux calculations and writes
// the resulting series. Inputs and outputs can be local files, http(s) URLs
// (inputs only) or blob storage locations (file://, gs://, s3://). Files
// ending in ".gz" are transparently compressed and decompressed.
package tsio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/klauspost/pgzip"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// IsBlob returns whether path is a blob storage location, i.e. whether
// it starts with gs://, s3:// or file://.
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// IsURL returns whether path is an http or https URL.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// OpenBucket opens the bucket that holds time-series inputs or flux
// outputs. bucketName is "gs://name" for Google Cloud Storage, "s3://name"
// for AWS S3 or "file://dir" for a local directory.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("tsio: opening bucket: %v", err)
	}
	var b *blob.Bucket
	switch u.Scheme {
	case "file":
		b, err = fileblob.OpenBucket(u.Hostname(), nil)
	case "gs":
		b, err = gsBucket(ctx, u.Hostname())
	case "s3":
		b, err = s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("tsio: unsupported storage location '%s'; use gs://, s3:// or file://", bucketName)
	}
	if err != nil {
		return nil, fmt.Errorf("tsio: opening bucket %s: %v", bucketName, err)
	}
	return b, nil
}

// gsBucket uses the application default credentials.
func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket takes its credentials from AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY. The region is AWS_REGION, or us-east-2 if that
// is unset.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	s, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}

// splitBlob splits a blob path into the bucket name and the key.
func splitBlob(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("tsio: parsing blob path '%s': %v", path, err)
	}
	return u.Scheme + "://" + u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// closers closes a stack of closers in order, returning the first error.
type closers []io.Closer

func (c closers) Close() error {
	var err error
	for _, cc := range c {
		if e := cc.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

type readCloser struct {
	io.Reader
	closers
}

type writeCloser struct {
	io.Writer
	closers
}

// Open opens the file at path for reading. Path may be a local file,
// an http(s) URL or a blob storage location. If path ends in ".gz",
// the contents are decompressed.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	var r io.ReadCloser
	switch {
	case IsURL(path):
		body, err := download(ctx, path)
		if err != nil {
			return nil, err
		}
		r = body
	case IsBlob(path):
		bucketName, key, err := splitBlob(path)
		if err != nil {
			return nil, err
		}
		bucket, err := OpenBucket(ctx, bucketName)
		if err != nil {
			return nil, err
		}
		br, err := bucket.NewReader(ctx, key, nil)
		if err != nil {
			bucket.Close()
			return nil, fmt.Errorf("tsio: opening blob '%s': %v", path, err)
		}
		r = readCloser{Reader: br, closers: closers{br, bucket}}
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("tsio: %v", err)
		}
		r = f
	}
	if !isGzip(path) {
		return r, nil
	}
	gz, err := pgzip.NewReader(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("tsio: decompressing '%s': %v", path, err)
	}
	return readCloser{Reader: gz, closers: closers{gz, r}}, nil
}

// Create creates the file at path for writing. Path may be a local
// file or a blob storage location. If path ends in ".gz", the contents
// are compressed. The file is only guaranteed to be written after
// Close returns without error.
func Create(ctx context.Context, path string) (io.WriteCloser, error) {
	var w io.WriteCloser
	if IsBlob(path) {
		bucketName, key, err := splitBlob(path)
		if err != nil {
			return nil, err
		}
		bucket, err := OpenBucket(ctx, bucketName)
		if err != nil {
			return nil, err
		}
		bw, err := bucket.NewWriter(ctx, key, nil)
		if err != nil {
			bucket.Close()
			return nil, fmt.Errorf("tsio: opening writer for blob '%s': %v", path, err)
		}
		w = writeCloser{Writer: bw, closers: closers{bw, bucket}}
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("tsio: %v", err)
		}
		w = f
	}
	if !isGzip(path) {
		return w, nil
	}
	gz := pgzip.NewWriter(w)
	return writeCloser{Writer: gz, closers: closers{gz, w}}, nil
}

// newBackOff returns the retry policy for downloads.
var newBackOff = func() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
}

// download starts downloading the given URL, retrying on network
// errors and server-side (5xx and 429) failures.
func download(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("tsio: %v", err)
	}
	req = req.WithContext(ctx)
	var body io.ReadCloser
	err = backoff.Retry(func() error {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("tsio: downloading '%s': %v", path, err)
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			body = resp.Body
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			return fmt.Errorf("tsio: downloading '%s': %s", path, resp.Status)
		default:
			resp.Body.Close()
			return backoff.Permanent(fmt.Errorf("tsio: downloading '%s': %s", path, resp.Status))
		}
	}, backoff.WithContext(newBackOff(), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// format returns the lower-case file extension of path, without
// any ".gz" suffix, e.g. "csv" for "data.CSV.gz".
func format(path string) string {
	p := strings.ToLower(path)
	p = strings.TrimSuffix(p, ".gz")
	return strings.TrimPrefix(filepath.Ext(p), ".")
}
