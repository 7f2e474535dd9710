package db

import (
	"context"
	"fmt"

	"github.com/LTLA/gesel-manuscript/internal/stats"
	"github.com/LTLA/gesel-manuscript/model"
)

// FindOverlaps returns every set sharing at least one gene with the query
// list, with its overlap count and hypergeometric enrichment p-value. The
// result order is unspecified; callers sort. An empty query yields an
// empty result.
func (d *DB) FindOverlaps(ctx context.Context, geneIDs []uint32) ([]model.Overlap, error) {
	for _, id := range geneIDs {
		if int(id) >= len(d.genes) {
			return nil, fmt.Errorf("%w: gene %d of %d", ErrOutOfRange, id, len(d.genes))
		}
	}

	query := sortedUnique(geneIDs)
	if len(query) == 0 {
		return []model.Overlap{}, nil
	}

	counts := make(map[uint32]int)
	for _, gene := range query {
		sets, err := d.geneSets(ctx, gene)
		if err != nil {
			return nil, err
		}
		for _, set := range sets {
			if int(set) >= len(d.sets) {
				return nil, fmt.Errorf("gene2set entry %d: set %d of %d: %w", gene, set, len(d.sets), ErrOutOfRange)
			}
			counts[set]++
		}
	}

	population := len(d.genes)
	draws := len(query)
	out := make([]model.Overlap, 0, len(counts))
	for set, count := range counts {
		size := d.sets[set].Size
		out = append(out, model.Overlap{
			ID:     set,
			Count:  count,
			Size:   size,
			PValue: stats.HypergeometricTail(population, size, draws, count),
		})
	}
	return out, nil
}
