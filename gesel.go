package gesel

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/LTLA/gesel-manuscript/datasource"
	"github.com/LTLA/gesel-manuscript/internal/db"
	"github.com/LTLA/gesel-manuscript/model"
)

// Client answers gene set queries against per-species databases of static
// files. It is safe for concurrent use; per-species state is loaded once on
// first use and retained for the client's lifetime.
type Client struct {
	opts options

	mu      sync.RWMutex
	species map[string]*db.DB
	loads   singleflight.Group
}

// New creates a Client. At least a base URL or a source factory must be
// configured.
func New(opts ...Option) (*Client, error) {
	o := options{logger: NoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" && o.sourceFactory == nil {
		return nil, ErrNoSource
	}
	return &Client{opts: o, species: make(map[string]*db.DB)}, nil
}

// ResolveGenes maps external gene identifiers (symbols, Ensembl, Entrez)
// to internal gene IDs: one result slice per input, in input order. An
// unknown identifier yields an empty slice, not an error; an ambiguous one
// yields all matches ascending.
func (c *Client) ResolveGenes(ctx context.Context, species string, externalIDs []string) ([][]uint32, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return nil, err
	}
	return d.Resolve(externalIDs), nil
}

// FindOverlaps returns every set sharing at least one gene with the query
// list, each with its overlap count, size and hypergeometric p-value. The
// order is unspecified and p-value ties are not broken; callers sort.
func (c *Client) FindOverlaps(ctx context.Context, species string, geneIDs []uint32) ([]model.Overlap, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return nil, err
	}
	overlaps, err := d.FindOverlaps(ctx, geneIDs)
	return overlaps, translateError(err)
}

// SearchText returns the IDs of sets whose metadata matches every
// whitespace-separated term of the query; terms may use the ? and *
// wildcards. Callers typically intersect the result with FindOverlaps
// candidates.
func (c *Client) SearchText(ctx context.Context, species, query string) ([]uint32, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return nil, err
	}
	ids, err := d.SearchText(ctx, query)
	return ids, translateError(err)
}

// SetDetails returns the metadata of one set.
func (c *Client) SetDetails(ctx context.Context, species string, id uint32) (model.Set, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return model.Set{}, err
	}
	s, err := d.SetDetails(id)
	return s, translateError(err)
}

// SetMembers returns the member gene IDs of one set, decoded on demand.
func (c *Client) SetMembers(ctx context.Context, species string, id uint32) ([]uint32, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return nil, err
	}
	members, err := d.SetMembers(ctx, id)
	return members, translateError(err)
}

// CollectionDetails returns the metadata of one collection.
func (c *Client) CollectionDetails(ctx context.Context, species string, id uint32) (model.Collection, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return model.Collection{}, err
	}
	col, err := d.CollectionDetails(id)
	return col, translateError(err)
}

// Genes returns the species' full gene table.
func (c *Client) Genes(ctx context.Context, species string) ([]model.Gene, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return nil, err
	}
	return d.Genes(), nil
}

// GeneCount returns the size of the species' gene population.
func (c *Client) GeneCount(ctx context.Context, species string) (int, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return 0, err
	}
	return d.GeneCount(), nil
}

// SetCount returns the number of reference sets for the species.
func (c *Client) SetCount(ctx context.Context, species string) (int, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return 0, err
	}
	return d.SetCount(), nil
}

// CollectionCount returns the number of collections for the species.
func (c *Client) CollectionCount(ctx context.Context, species string) (int, error) {
	d, err := c.db(ctx, species)
	if err != nil {
		return 0, err
	}
	return d.CollectionCount(), nil
}

// db returns the loaded state for a species, loading it on first use.
// Concurrent first uses collapse into one load; a failed load is not
// retained, so the next call starts a fresh one.
func (c *Client) db(ctx context.Context, species string) (*db.DB, error) {
	c.mu.RLock()
	d, ok := c.species[species]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	v, err, _ := c.loads.Do(species, func() (any, error) {
		c.mu.RLock()
		d, ok := c.species[species]
		c.mu.RUnlock()
		if ok {
			return d, nil
		}

		loaded, err := db.Load(ctx, c.source(species), c.opts.logger.Logger)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.species[species] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return v.(*db.DB), nil
}

// source assembles the caching data source for one species.
func (c *Client) source(species string) datasource.Source {
	var inner datasource.Source
	if c.opts.sourceFactory != nil {
		inner = c.opts.sourceFactory(species)
	} else {
		url := strings.TrimSuffix(c.opts.baseURL, "/") + "/" + species
		httpOpts := []datasource.HTTPOption{
			datasource.WithHTTPLogger(c.opts.logger.Logger),
		}
		if c.opts.client != nil {
			httpOpts = append(httpOpts, datasource.WithHTTPClient(c.opts.client))
		}
		if c.opts.fetch != nil {
			httpOpts = append(httpOpts, datasource.WithFetchFunc(c.opts.fetch))
		}
		if c.opts.limiter != nil {
			httpOpts = append(httpOpts, datasource.WithRateLimit(c.opts.limiter))
		}
		if c.opts.mode == ModeRange {
			inner = datasource.NewRangeSource(url, httpOpts...)
		} else {
			inner = datasource.NewBulkSource(url, httpOpts...)
		}
	}
	return datasource.NewCachingSource(inner, c.opts.store, c.opts.logger.Logger,
		datasource.WithKeyPrefix(species+"/"))
}
