package gesel

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/LTLA/gesel-manuscript/cache"
	"github.com/LTLA/gesel-manuscript/datasource"
)

// Mode selects the data-access strategy for a species' database files.
type Mode int

const (
	// ModeBulk downloads every database file once, up front, and serves all
	// reads from memory. Best when many queries are expected per session.
	ModeBulk Mode = iota

	// ModeRange fetches byte ranges on demand via HTTP Range requests,
	// caching each response. Best for one-off queries against large
	// databases; requires a server that answers 206 Partial Content.
	ModeRange
)

// SourceFactory builds the data source for one species. Inject it to read
// databases from somewhere other than plain HTTP, e.g. a local directory
// (datasource.DirSource) or object storage (datasource/minio).
type SourceFactory func(species string) datasource.Source

type options struct {
	baseURL       string
	mode          Mode
	sourceFactory SourceFactory
	store         cache.Store
	fetch         datasource.FetchFunc
	client        *http.Client
	limiter       *rate.Limiter
	logger        *Logger
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL sets the URL under which the database files are hosted; the
// files for a species live under "<baseURL>/<species>/".
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithMode selects bulk or range access. Default: ModeBulk.
func WithMode(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithSourceFactory overrides how per-species sources are built. BaseURL
// and mode are ignored for species served by the factory.
func WithSourceFactory(factory SourceFactory) Option {
	return func(o *options) {
		o.sourceFactory = factory
	}
}

// WithCache sets the response cache shared by all species. Default: an
// unbounded cache.MapStore, retained for the client's lifetime.
func WithCache(store cache.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithFetchFunc replaces the HTTP transport, letting hosts inject proxying
// or their own caching layer.
func WithFetchFunc(fetch datasource.FetchFunc) Option {
	return func(o *options) {
		o.fetch = fetch
	}
}

// WithHTTPClient sets the http.Client used for downloads. Ignored when a
// fetch func is set.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithRateLimit throttles outgoing HTTP requests.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
