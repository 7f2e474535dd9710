// Package db holds the loaded per-species state and implements the query
// engines on top of it. A DB is immutable after Load; all network traffic
// flows through the datasource.Source it was given.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/LTLA/gesel-manuscript/codec"
	"github.com/LTLA/gesel-manuscript/datasource"
	"github.com/LTLA/gesel-manuscript/internal/layout"
	"github.com/LTLA/gesel-manuscript/model"
)

// ErrOutOfRange is returned for a gene, set or collection ID outside the
// valid bounds of the loaded database.
var ErrOutOfRange = errors.New("db: id out of range")

// DB is one species' loaded database. Metadata and offset tables live in
// memory for the process lifetime; posting payloads are decoded on demand
// through the source.
type DB struct {
	src    datasource.Source
	logger *slog.Logger

	collections []model.Collection
	sets        []model.Set
	genes       [][]string

	// synonyms maps each case-sensitive external identifier to the internal
	// gene IDs carrying it, ascending.
	synonyms map[string][]uint32

	// Prefix-summed byte offsets into the three posting files. Entry i's
	// posting occupies [offs[i], offs[i+1]).
	geneOffsets  []int64
	setOffsets   []int64
	tokenOffsets []int64

	tokens     []string
	tokenIndex map[string]uint32
}

// Load fetches and parses the species' metadata files through src. The
// bulk strategy additionally prefetches the posting payloads so that no
// later call touches the network.
func Load(ctx context.Context, src datasource.Source, logger *slog.Logger) (*DB, error) {
	if p, ok := src.(datasource.Prefetcher); ok {
		if err := p.Prefetch(ctx, layout.AllFiles()...); err != nil {
			return nil, err
		}
	}

	d := &DB{src: src, logger: logger}
	if err := d.loadCatalog(ctx); err != nil {
		return nil, err
	}
	if err := d.loadTokens(ctx); err != nil {
		return nil, err
	}

	var err error
	if d.geneOffsets, err = d.loadRanges(ctx, layout.GeneToSetRangesFile, len(d.genes)); err != nil {
		return nil, err
	}
	if d.setOffsets, err = d.loadRanges(ctx, layout.SetToGeneRangesFile, len(d.sets)); err != nil {
		return nil, err
	}

	logger.Debug("database loaded",
		"genes", len(d.genes), "sets", len(d.sets),
		"collections", len(d.collections), "tokens", len(d.tokens))
	return d, nil
}

func (d *DB) loadCatalog(ctx context.Context) error {
	raw, err := d.src.FetchWhole(ctx, layout.CatalogFile)
	if err != nil {
		return err
	}
	r := layout.NewReader(layout.CatalogFile, raw)
	if err := r.Header(); err != nil {
		return err
	}

	ncols, err := r.Count()
	if err != nil {
		return err
	}
	d.collections = make([]model.Collection, ncols)
	for i := range d.collections {
		c := &d.collections[i]
		c.ID = uint32(i)
		for _, field := range []*string{&c.Title, &c.Description, &c.Species, &c.Maintainer, &c.Source} {
			if *field, err = r.String(); err != nil {
				return err
			}
		}
		size, err := r.Uvarint()
		if err != nil {
			return err
		}
		c.Size = int(size)
	}

	nsets, err := r.Count()
	if err != nil {
		return err
	}
	d.sets = make([]model.Set, nsets)

	// Collections own contiguous runs of set IDs; starts follow from the
	// stored sizes, which makes the coverage invariant checkable from the
	// sizes alone.
	next := uint32(0)
	for i := range d.collections {
		d.collections[i].Start = next
		next += uint32(d.collections[i].Size)
	}
	if int(next) != nsets {
		return fmt.Errorf("%w: %s: collection sizes cover %d sets, catalog has %d",
			layout.ErrCorrupt, layout.CatalogFile, next, nsets)
	}

	col := uint32(0)
	for i := range d.sets {
		s := &d.sets[i]
		s.ID = uint32(i)
		if s.Name, err = r.String(); err != nil {
			return err
		}
		if s.Description, err = r.String(); err != nil {
			return err
		}
		size, err := r.Uvarint()
		if err != nil {
			return err
		}
		s.Size = int(size)
		for int(col) < len(d.collections)-1 && uint32(i) >= d.collections[col].Start+uint32(d.collections[col].Size) {
			col++
		}
		s.Collection = col
	}

	ngenes, err := r.Count()
	if err != nil {
		return err
	}
	d.genes = make([][]string, ngenes)
	d.synonyms = make(map[string][]uint32)
	for i := range d.genes {
		nsyn, err := r.Count()
		if err != nil {
			return err
		}
		syns := make([]string, nsyn)
		for j := range syns {
			if syns[j], err = r.String(); err != nil {
				return err
			}
			d.synonyms[syns[j]] = append(d.synonyms[syns[j]], uint32(i))
		}
		d.genes[i] = syns
	}

	return r.Done()
}

func (d *DB) loadTokens(ctx context.Context) error {
	raw, err := d.src.FetchWhole(ctx, layout.TokensFile)
	if err != nil {
		return err
	}
	r := layout.NewReader(layout.TokensFile, raw)

	n, err := r.Count()
	if err != nil {
		return err
	}
	d.tokens = make([]string, n)
	d.tokenIndex = make(map[string]uint32, n)
	d.tokenOffsets = make([]int64, n+1)
	for i := range d.tokens {
		if d.tokens[i], err = r.String(); err != nil {
			return err
		}
		length, err := r.Uvarint()
		if err != nil {
			return err
		}
		d.tokenIndex[d.tokens[i]] = uint32(i)
		d.tokenOffsets[i+1] = d.tokenOffsets[i] + int64(length)
	}
	return r.Done()
}

// loadRanges reads an offset table: a varint stream of per-entry byte
// lengths, prefix-summed into absolute offsets.
func (d *DB) loadRanges(ctx context.Context, name string, want int) ([]int64, error) {
	raw, err := d.src.FetchWhole(ctx, name)
	if err != nil {
		return nil, err
	}
	lengths, err := codec.DecodeLengths(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", layout.ErrCorrupt, name, err)
	}
	if len(lengths) != want {
		return nil, fmt.Errorf("%w: %s: %d entries, catalog has %d", layout.ErrCorrupt, name, len(lengths), want)
	}
	offs := make([]int64, len(lengths)+1)
	for i, l := range lengths {
		offs[i+1] = offs[i] + int64(l)
	}
	return offs, nil
}

// GeneCount returns the number of genes in the population.
func (d *DB) GeneCount() int { return len(d.genes) }

// SetCount returns the number of reference sets.
func (d *DB) SetCount() int { return len(d.sets) }

// CollectionCount returns the number of collections.
func (d *DB) CollectionCount() int { return len(d.collections) }

// SetDetails returns the metadata of one set.
func (d *DB) SetDetails(id uint32) (model.Set, error) {
	if int(id) >= len(d.sets) {
		return model.Set{}, fmt.Errorf("%w: set %d of %d", ErrOutOfRange, id, len(d.sets))
	}
	return d.sets[id], nil
}

// CollectionDetails returns the metadata of one collection.
func (d *DB) CollectionDetails(id uint32) (model.Collection, error) {
	if int(id) >= len(d.collections) {
		return model.Collection{}, fmt.Errorf("%w: collection %d of %d", ErrOutOfRange, id, len(d.collections))
	}
	return d.collections[id], nil
}

// Genes returns the full gene table.
func (d *DB) Genes() []model.Gene {
	out := make([]model.Gene, len(d.genes))
	for i, syns := range d.genes {
		out[i] = model.Gene{ID: uint32(i), Synonyms: syns}
	}
	return out
}

// SetMembers decodes the member gene IDs of one set.
func (d *DB) SetMembers(ctx context.Context, id uint32) ([]uint32, error) {
	if int(id) >= len(d.sets) {
		return nil, fmt.Errorf("%w: set %d of %d", ErrOutOfRange, id, len(d.sets))
	}
	return d.posting(ctx, layout.SetToGeneFile, d.setOffsets, id)
}

// geneSets decodes the set IDs a gene belongs to.
func (d *DB) geneSets(ctx context.Context, id uint32) ([]uint32, error) {
	return d.posting(ctx, layout.GeneToSetFile, d.geneOffsets, id)
}

// tokenSets decodes the set IDs containing a token.
func (d *DB) tokenSets(ctx context.Context, id uint32) ([]uint32, error) {
	return d.posting(ctx, layout.TokenToSetFile, d.tokenOffsets, id)
}

// posting fetches and decodes one entry of a posting file. The source's
// cache makes repeated decodes of the same entry cheap.
func (d *DB) posting(ctx context.Context, file string, offs []int64, id uint32) ([]uint32, error) {
	start := offs[id]
	length := offs[id+1] - start
	raw, err := d.src.FetchRange(ctx, file, start, length)
	if err != nil {
		return nil, err
	}
	ids, err := codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s entry %d: %w", file, id, err)
	}
	return ids, nil
}

func sortedUnique(ids []uint32) []uint32 {
	out := make([]uint32, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
