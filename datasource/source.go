// Package datasource abstracts access to the static database files.
//
// A Source serves two kinds of reads: whole files and byte ranges. The two
// built-in HTTP strategies are BulkSource (download everything once, serve
// ranges from memory) and RangeSource (one HTTP range request per distinct
// range). CachingSource layers an exact-match response cache with request
// de-duplication over any Source, so the engines above never see the
// difference. Network activity is observable only through this package.
package datasource

import (
	"context"
	"errors"
)

var (
	// ErrNetwork is a transport-level failure, including non-success HTTP
	// statuses. Fetches are not retried internally; retry policy belongs to
	// the caller.
	ErrNetwork = errors.New("datasource: network failure")

	// ErrCorrupt indicates that a payload could not be decompressed.
	ErrCorrupt = errors.New("datasource: corrupt payload")

	// ErrRangeUnsupported is returned when a byte-range request comes back
	// as a full-body 200, i.e. the server does not support range requests.
	ErrRangeUnsupported = errors.New("datasource: server does not support range requests")

	// ErrOutOfBounds is returned for a range that extends past the end of
	// the file, which only the in-memory strategies can detect locally.
	ErrOutOfBounds = errors.New("datasource: range out of bounds")
)

// Source is a read-only handle on one species' database files.
// Returned slices must be treated as read-only.
type Source interface {
	// FetchWhole returns the complete canonical (uncompressed) content of
	// the named file.
	FetchWhole(ctx context.Context, name string) ([]byte, error)

	// FetchRange returns length bytes starting at start within the named
	// file's canonical content.
	FetchRange(ctx context.Context, name string, start, length int64) ([]byte, error)
}

// Prefetcher is implemented by sources that can warm themselves up front.
// BulkSource downloads all named files concurrently; other sources are free
// not to implement it.
type Prefetcher interface {
	Prefetch(ctx context.Context, names ...string) error
}
