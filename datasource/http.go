package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// CompressedSuffix is appended to a file name to address its gzip twin.
// Bulk downloads always go through the twin; range requests address the
// canonical bytes, since offsets are meaningless inside a DEFLATE stream.
const CompressedSuffix = ".gz"

// FetchFunc issues one HTTP request. Hosts inject it to add proxying,
// authentication or their own caching at the transport layer.
type FetchFunc func(req *http.Request) (*http.Response, error)

// HTTPOption configures the HTTP-backed sources.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	fetch   FetchFunc
	limiter *rate.Limiter
	logger  *slog.Logger
}

// WithHTTPClient sets the http.Client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *httpConfig) {
		if client != nil {
			c.fetch = client.Do
		}
	}
}

// WithFetchFunc replaces the transport entirely.
func WithFetchFunc(fetch FetchFunc) HTTPOption {
	return func(c *httpConfig) {
		if fetch != nil {
			c.fetch = fetch
		}
	}
}

// WithRateLimit throttles outgoing requests. Useful in range mode, where a
// large query can fan out into many small requests against shared static
// hosting.
func WithRateLimit(limiter *rate.Limiter) HTTPOption {
	return func(c *httpConfig) {
		c.limiter = limiter
	}
}

// WithHTTPLogger enables debug logging of individual fetches.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(c *httpConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newHTTPConfig(opts []HTTPOption) httpConfig {
	c := httpConfig{
		fetch:  http.DefaultClient.Do,
		logger: slog.New(discardHandler{}),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// discardHandler drops all records. slog.DiscardHandler exists upstream but
// a local copy keeps the minimum Go version modest.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

// get issues one GET and returns the body. rangeHeader is empty for whole
// files. wantPartial requires a 206 response.
func (c *httpConfig) get(ctx context.Context, url, rangeHeader string, wantPartial bool) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.fetch(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case wantPartial && resp.StatusCode == http.StatusOK:
		return nil, fmt.Errorf("%w: GET %s returned 200 to a range request", ErrRangeUnsupported, url)
	case wantPartial && resp.StatusCode != http.StatusPartialContent:
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrNetwork, url, resp.StatusCode)
	case !wantPartial && resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrNetwork, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrNetwork, url, err)
	}

	c.logger.Debug("fetched", "url", url, "range", rangeHeader, "bytes", len(body))
	return body, nil
}

// getCompressed fetches the gzip twin of name and inflates it.
func (c *httpConfig) getCompressed(ctx context.Context, baseURL, name string) ([]byte, error) {
	body, err := c.get(ctx, joinURL(baseURL, name+CompressedSuffix), "", false)
	if err != nil {
		return nil, err
	}
	return inflate(name, body)
}

func inflate(name string, body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	}
	return out, nil
}

func joinURL(base, name string) string {
	return strings.TrimSuffix(base, "/") + "/" + name
}

// BulkSource downloads each file once, in its entirety, and serves every
// later read from the in-memory copy. First choice when the host expects to
// issue many queries per session.
type BulkSource struct {
	baseURL string
	http    httpConfig

	mu     sync.RWMutex
	files  map[string][]byte
	flight singleflight.Group
}

// NewBulkSource creates a bulk source rooted at the species' base URL.
func NewBulkSource(baseURL string, opts ...HTTPOption) *BulkSource {
	return &BulkSource{
		baseURL: baseURL,
		http:    newHTTPConfig(opts),
		files:   make(map[string][]byte),
	}
}

// Prefetch downloads the named files concurrently. Subsequent reads incur
// no network activity.
func (s *BulkSource) Prefetch(ctx context.Context, names ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			_, err := s.FetchWhole(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// FetchWhole returns the canonical content of name, downloading and
// inflating its gzip twin on first use. Concurrent first uses collapse into
// one download.
func (s *BulkSource) FetchWhole(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, _ := s.flight.Do(name, func() (any, error) {
		data, err := s.http.getCompressed(ctx, s.baseURL, name)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.files[name] = data
		s.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// FetchRange slices the retained whole-file copy.
func (s *BulkSource) FetchRange(ctx context.Context, name string, start, length int64) ([]byte, error) {
	data, err := s.FetchWhole(ctx, name)
	if err != nil {
		return nil, err
	}
	if start < 0 || length < 0 || start+length > int64(len(data)) {
		return nil, fmt.Errorf("%w: %s [%d,+%d) of %d", ErrOutOfBounds, name, start, length, len(data))
	}
	return data[start : start+length], nil
}

// RangeSource issues one HTTP range request per distinct byte range and
// keeps nothing in memory itself; wrap it in a CachingSource. Whole-file
// reads (catalog, offset tables) still go through the gzip twins.
type RangeSource struct {
	baseURL string
	http    httpConfig
}

// NewRangeSource creates a range source rooted at the species' base URL.
// The server must answer Range requests with 206 Partial Content.
func NewRangeSource(baseURL string, opts ...HTTPOption) *RangeSource {
	return &RangeSource{baseURL: baseURL, http: newHTTPConfig(opts)}
}

func (s *RangeSource) FetchWhole(ctx context.Context, name string) ([]byte, error) {
	return s.http.getCompressed(ctx, s.baseURL, name)
}

func (s *RangeSource) FetchRange(ctx context.Context, name string, start, length int64) ([]byte, error) {
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("%w: %s [%d,+%d)", ErrOutOfBounds, name, start, length)
	}
	if length == 0 {
		return []byte{}, nil
	}

	header := fmt.Sprintf("bytes=%d-%d", start, start+length-1)
	body, err := s.http.get(ctx, joinURL(s.baseURL, name), header, true)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) != length {
		return nil, fmt.Errorf("%w: %s: range %s returned %d bytes", ErrNetwork, name, header, len(body))
	}
	return body, nil
}
