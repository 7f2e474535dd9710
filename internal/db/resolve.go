package db

// Resolve maps external gene identifiers to internal gene IDs, one result
// slice per input in input order. An unknown identifier yields an empty
// slice; an ambiguous one yields every matching ID ascending. Input is
// taken as-is: no deduplication, no case folding.
func (d *DB) Resolve(externalIDs []string) [][]uint32 {
	out := make([][]uint32, len(externalIDs))
	for i, id := range externalIDs {
		out[i] = d.synonyms[id]
		if out[i] == nil {
			out[i] = []uint32{}
		}
	}
	return out
}
