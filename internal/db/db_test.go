package db_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTLA/gesel-manuscript/datasource"
	"github.com/LTLA/gesel-manuscript/dbbuild"
	"github.com/LTLA/gesel-manuscript/internal/db"
	"github.com/LTLA/gesel-manuscript/internal/layout"
	"github.com/LTLA/gesel-manuscript/model"
)

// mapSource serves prebuilt file contents from memory.
type mapSource map[string][]byte

func (m mapSource) FetchWhole(_ context.Context, name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", datasource.ErrNetwork, name)
	}
	return data, nil
}

func (m mapSource) FetchRange(ctx context.Context, name string, start, length int64) ([]byte, error) {
	data, err := m.FetchWhole(ctx, name)
	if err != nil {
		return nil, err
	}
	if start < 0 || start+length > int64(len(data)) {
		return nil, fmt.Errorf("%w: %s", datasource.ErrOutOfBounds, name)
	}
	return data[start : start+length], nil
}

func noop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// toyDatabase is the 3-gene/2-set database: genes A, B, C; set 0 holds
// {A, B}, set 1 holds {B, C}.
func toyDatabase(t *testing.T) mapSource {
	t.Helper()
	b := dbbuild.New()
	b.AddGene("A", "ENSG00000000001")
	b.AddGene("B", "ENSG00000000002")
	b.AddGene("C", "ENSG00000000003", "ENSG00000000004")

	b.AddCollection(model.Collection{Title: "toy", Species: "9606"})
	_, err := b.AddSet("first set", "genes A and B", []uint32{0, 1})
	require.NoError(t, err)
	_, err = b.AddSet("second set", "genes B and C", []uint32{1, 2})
	require.NoError(t, err)

	files, err := b.Build()
	require.NoError(t, err)
	return mapSource(files)
}

func load(t *testing.T, src datasource.Source) *db.DB {
	t.Helper()
	d, err := db.Load(context.Background(), src, noop())
	require.NoError(t, err)
	return d
}

func TestLoad_Counts(t *testing.T) {
	d := load(t, toyDatabase(t))
	assert.Equal(t, 3, d.GeneCount())
	assert.Equal(t, 2, d.SetCount())
	assert.Equal(t, 1, d.CollectionCount())
}

func TestSetDetails(t *testing.T) {
	d := load(t, toyDatabase(t))

	s, err := d.SetDetails(0)
	require.NoError(t, err)
	assert.Equal(t, "first set", s.Name)
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, uint32(0), s.Collection)

	_, err = d.SetDetails(2)
	require.ErrorIs(t, err, db.ErrOutOfRange)
}

func TestCollectionDetails(t *testing.T) {
	d := load(t, toyDatabase(t))

	c, err := d.CollectionDetails(0)
	require.NoError(t, err)
	assert.Equal(t, "toy", c.Title)
	assert.Equal(t, uint32(0), c.Start)
	assert.Equal(t, 2, c.Size)

	_, err = d.CollectionDetails(1)
	require.ErrorIs(t, err, db.ErrOutOfRange)
}

func TestGenes(t *testing.T) {
	d := load(t, toyDatabase(t))
	genes := d.Genes()
	require.Len(t, genes, 3)
	assert.Equal(t, []string{"A", "ENSG00000000001"}, genes[0].Synonyms)
}

func TestSetMembers(t *testing.T) {
	ctx := context.Background()
	d := load(t, toyDatabase(t))

	members, err := d.SetMembers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, members)

	_, err = d.SetMembers(ctx, 99)
	require.ErrorIs(t, err, db.ErrOutOfRange)
}

func TestResolve(t *testing.T) {
	d := load(t, toyDatabase(t))

	got := d.Resolve([]string{"B", "unknown_symbol", "ENSG00000000004", "A"})
	require.Len(t, got, 4)
	assert.Equal(t, []uint32{1}, got[0])
	assert.Equal(t, []uint32{}, got[1])
	assert.Equal(t, []uint32{2}, got[2])
	assert.Equal(t, []uint32{0}, got[3])

	// Case-sensitive lookup.
	assert.Equal(t, []uint32{}, d.Resolve([]string{"a"})[0])
}

func TestFindOverlaps_ToyScenario(t *testing.T) {
	ctx := context.Background()
	d := load(t, toyDatabase(t))

	overlaps, err := d.FindOverlaps(ctx, []uint32{0, 1})
	require.NoError(t, err)
	require.Len(t, overlaps, 2)

	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].ID < overlaps[j].ID })

	// Set 0: both query genes are members; P(X >= 2) for
	// Hypergeometric(N=3, K=2, n=2) is 1/3.
	assert.Equal(t, 2, overlaps[0].Count)
	assert.Equal(t, 2, overlaps[0].Size)
	assert.InDelta(t, 1.0/3.0, overlaps[0].PValue, 1e-12)

	// Set 1: only gene B; an overlap of at least 1 is certain there.
	assert.Equal(t, 1, overlaps[1].Count)
	assert.Equal(t, 2, overlaps[1].Size)
	assert.InDelta(t, 1.0, overlaps[1].PValue, 1e-12)
}

func TestFindOverlaps_EdgeCases(t *testing.T) {
	ctx := context.Background()
	d := load(t, toyDatabase(t))

	empty, err := d.FindOverlaps(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Duplicates collapse to one query gene.
	dup, err := d.FindOverlaps(ctx, []uint32{1, 1, 1})
	require.NoError(t, err)
	require.Len(t, dup, 2)
	for _, o := range dup {
		assert.Equal(t, 1, o.Count)
	}

	_, err = d.FindOverlaps(ctx, []uint32{3})
	require.ErrorIs(t, err, db.ErrOutOfRange)
}

func TestFindOverlaps_Monotonicity(t *testing.T) {
	ctx := context.Background()
	d := load(t, toyDatabase(t))

	small, err := d.FindOverlaps(ctx, []uint32{0})
	require.NoError(t, err)
	big, err := d.FindOverlaps(ctx, []uint32{0, 2})
	require.NoError(t, err)

	byID := func(os []model.Overlap) map[uint32]model.Overlap {
		m := make(map[uint32]model.Overlap)
		for _, o := range os {
			m[o.ID] = o
		}
		return m
	}
	before, after := byID(small), byID(big)
	for id, o := range before {
		grown, ok := after[id]
		require.True(t, ok, "set %d vanished after adding a query gene", id)
		assert.GreaterOrEqual(t, grown.Count, o.Count)
	}
}

func TestSearchText(t *testing.T) {
	ctx := context.Background()
	d := load(t, toyDatabase(t))

	ids, err := d.SearchText(ctx, "genes")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{0, 1}, ids)

	ids, err = d.SearchText(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, ids)

	// AND across terms.
	ids, err = d.SearchText(ctx, "genes second")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, ids)

	// Case-insensitive.
	ids, err = d.SearchText(ctx, "FIRST")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, ids)

	// Unknown term forces an empty intersection.
	ids, err = d.SearchText(ctx, "genes nonexistent")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Empty and whitespace-only queries return empty results, not errors.
	for _, q := range []string{"", "   \t  "} {
		ids, err = d.SearchText(ctx, q)
		require.NoError(t, err)
		assert.Empty(t, ids)
	}
}

func TestSearchText_Wildcards(t *testing.T) {
	ctx := context.Background()
	d := load(t, toyDatabase(t))

	ids, err := d.SearchText(ctx, "f?rst")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, ids)

	// "se*" expands to both "set" (all sets) and "second".
	ids, err = d.SearchText(ctx, "se*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{0, 1}, ids)

	ids, err = d.SearchText(ctx, "se* c")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, ids)
}

func TestSearchText_ExactTermANDEquality(t *testing.T) {
	ctx := context.Background()
	d := load(t, toyDatabase(t))

	joint, err := d.SearchText(ctx, "genes b")
	require.NoError(t, err)
	left, err := d.SearchText(ctx, "genes")
	require.NoError(t, err)
	right, err := d.SearchText(ctx, "b")
	require.NoError(t, err)

	inter := intersect(left, right)
	assert.ElementsMatch(t, inter, joint)
}

func intersect(a, b []uint32) []uint32 {
	in := make(map[uint32]bool, len(a))
	for _, v := range a {
		in[v] = true
	}
	out := []uint32{}
	for _, v := range b {
		if in[v] {
			out = append(out, v)
		}
	}
	return out
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	src := toyDatabase(t)
	catalog := append([]byte(nil), src[layout.CatalogFile]...)
	catalog[len(layout.Magic)] = 99 // version byte
	src[layout.CatalogFile] = catalog

	_, err := db.Load(context.Background(), src, noop())
	require.ErrorIs(t, err, layout.ErrVersion)
}

func TestLoad_CorruptCatalog(t *testing.T) {
	src := toyDatabase(t)

	bad := mapSource{}
	for k, v := range src {
		bad[k] = v
	}
	bad[layout.CatalogFile] = src[layout.CatalogFile][:6]

	_, err := db.Load(context.Background(), bad, noop())
	require.ErrorIs(t, err, layout.ErrCorrupt)
}

func TestLoad_OffsetTableMismatch(t *testing.T) {
	src := toyDatabase(t)

	bad := mapSource{}
	for k, v := range src {
		bad[k] = v
	}
	// Drop one entry from the gene offset table.
	table := src[layout.GeneToSetRangesFile]
	require.NotEmpty(t, table)
	bad[layout.GeneToSetRangesFile] = table[:len(table)-1]

	_, err := db.Load(context.Background(), bad, noop())
	require.ErrorIs(t, err, layout.ErrCorrupt)
}
