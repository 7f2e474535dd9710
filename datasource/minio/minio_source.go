// Package minio serves gesel database files from MinIO or any S3-compatible
// object storage, for deployments that host the static files in a bucket
// instead of behind a plain HTTP server.
package minio

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/LTLA/gesel-manuscript/datasource"
)

// Source implements datasource.Source on top of a MinIO client.
// GetObject range options play the role of HTTP Range headers, so the
// bucket only needs the canonical uncompressed files, no gzip twins.
type Source struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewSource creates a Source reading from bucket. prefix is prepended to
// every object key (e.g. "9606/").
func NewSource(client *minio.Client, bucket, prefix string) *Source {
	return &Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *Source) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Source) FetchWhole(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datasource.ErrNetwork, err)
	}
	defer obj.Close() //nolint:errcheck

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateError(name, err)
	}
	return data, nil
}

func (s *Source) FetchRange(ctx context.Context, name string, start, length int64) ([]byte, error) {
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("%w: %s [%d,+%d)", datasource.ErrOutOfBounds, name, start, length)
	}
	if length == 0 {
		return []byte{}, nil
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, start+length-1); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", datasource.ErrOutOfBounds, name, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datasource.ErrNetwork, err)
	}
	defer obj.Close() //nolint:errcheck

	buf := make([]byte, length)
	n, err := io.ReadFull(obj, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, fmt.Errorf("%w: %s [%d,+%d): object has only %d bytes",
				datasource.ErrOutOfBounds, name, start, length, start+int64(n))
		}
		return nil, translateError(name, err)
	}
	return buf, nil
}

func translateError(name string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code != "" {
		return fmt.Errorf("%w: %s: %s", datasource.ErrNetwork, name, resp.Code)
	}
	return fmt.Errorf("%w: %s: %w", datasource.ErrNetwork, name, err)
}
