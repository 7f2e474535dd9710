package db

import (
	"context"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/LTLA/gesel-manuscript/internal/glob"
)

// SearchText returns the IDs of sets whose name or description matches
// every whitespace-separated term of the query. A term may use the ?
// (exactly one character) and * (any run of characters) wildcards, expanded
// over the token vocabulary; sets matching any expansion of a term satisfy
// that term. Matching is case-insensitive. An empty or whitespace-only
// query yields an empty result, not an error.
func (d *DB) SearchText(ctx context.Context, query string) ([]uint32, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []uint32{}, nil
	}

	var acc *roaring.Bitmap
	for _, term := range terms {
		matched, err := d.termSets(ctx, term)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = matched
		} else {
			acc.And(matched)
		}
		if acc.IsEmpty() {
			// A term with no matches forces an empty intersection.
			return []uint32{}, nil
		}
	}
	return acc.ToArray(), nil
}

// termSets unions the posting lists of every vocabulary token matching the
// term.
func (d *DB) termSets(ctx context.Context, term string) (*roaring.Bitmap, error) {
	acc := roaring.New()

	if !glob.HasWildcard(term) {
		id, ok := d.tokenIndex[term]
		if !ok {
			return acc, nil
		}
		sets, err := d.tokenSets(ctx, id)
		if err != nil {
			return nil, err
		}
		acc.AddMany(sets)
		return acc, nil
	}

	pattern := glob.Compile(term)
	for id, token := range d.tokens {
		if !pattern.Match(token) {
			continue
		}
		sets, err := d.tokenSets(ctx, uint32(id))
		if err != nil {
			return nil, err
		}
		acc.AddMany(sets)
	}
	return acc, nil
}
