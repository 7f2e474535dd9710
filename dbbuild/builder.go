// Package dbbuild assembles the binary database files consumed by the
// client. It is the offline half of the file layout contract: a Builder
// collects genes, collections and sets in memory, then emits the versioned
// files, optionally alongside their gzip twins for bulk download.
package dbbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/klauspost/compress/gzip"

	"github.com/LTLA/gesel-manuscript/codec"
	"github.com/LTLA/gesel-manuscript/internal/layout"
	"github.com/LTLA/gesel-manuscript/model"
)

// ErrNoCollection is returned when a set is added before any collection.
var ErrNoCollection = errors.New("dbbuild: set added before any collection")

// CompressedSuffix mirrors the client's twin-file convention.
const CompressedSuffix = ".gz"

// Builder accumulates one species' database. Collections own contiguous
// runs of set IDs, so sets must be added collection by collection.
type Builder struct {
	genes       [][]string
	collections []model.Collection
	sets        []model.Set
	members     [][]uint32
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{}
}

// AddGene registers a gene with its external identifier synonyms and
// returns its internal ID.
func (b *Builder) AddGene(synonyms ...string) uint32 {
	id := uint32(len(b.genes))
	b.genes = append(b.genes, append([]string(nil), synonyms...))
	return id
}

// AddCollection opens a new collection; subsequent AddSet calls attach to
// it. Start and Size are derived, any values in c are ignored.
func (b *Builder) AddCollection(c model.Collection) uint32 {
	id := uint32(len(b.collections))
	c.ID = id
	c.Start = uint32(len(b.sets))
	c.Size = 0
	b.collections = append(b.collections, c)
	return id
}

// AddSet appends a set to the most recently added collection. Member gene
// IDs may arrive in any order and with duplicates; they are stored sorted
// and unique. Unknown gene IDs are an error.
func (b *Builder) AddSet(name, description string, members []uint32) (uint32, error) {
	if len(b.collections) == 0 {
		return 0, ErrNoCollection
	}
	for _, g := range members {
		if int(g) >= len(b.genes) {
			return 0, fmt.Errorf("dbbuild: set %q: unknown gene %d", name, g)
		}
	}

	unique := append([]uint32(nil), members...)
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	n := 0
	for i, v := range unique {
		if i == 0 || v != unique[n-1] {
			unique[n] = v
			n++
		}
	}
	unique = unique[:n]

	id := uint32(len(b.sets))
	b.sets = append(b.sets, model.Set{
		ID:          id,
		Name:        name,
		Description: description,
		Size:        len(unique),
		Collection:  uint32(len(b.collections) - 1),
	})
	b.members = append(b.members, unique)
	b.collections[len(b.collections)-1].Size++
	return id, nil
}

// Tokenize normalizes free text into vocabulary tokens: lower-cased
// maximal runs of letters and digits. The query engine relies on the same
// normalization, so exact terms hit tokens directly.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Build produces the canonical (uncompressed) content of every database
// file, keyed by file name.
func (b *Builder) Build() (map[string][]byte, error) {
	files := make(map[string][]byte)

	files[layout.CatalogFile] = b.buildCatalog()

	payload, lengths, err := buildPostings(b.members)
	if err != nil {
		return nil, err
	}
	files[layout.SetToGeneFile] = payload
	files[layout.SetToGeneRangesFile] = codec.AppendLengths(nil, lengths)

	payload, lengths, err = buildPostings(invert(b.members, len(b.genes)))
	if err != nil {
		return nil, err
	}
	files[layout.GeneToSetFile] = payload
	files[layout.GeneToSetRangesFile] = codec.AppendLengths(nil, lengths)

	tokens, tokenSets := b.buildVocabulary()
	payload, lengths, err = buildPostings(tokenSets)
	if err != nil {
		return nil, err
	}
	files[layout.TokenToSetFile] = payload

	tokensFile := binary.AppendUvarint(nil, uint64(len(tokens)))
	for i, tok := range tokens {
		tokensFile = layout.AppendString(tokensFile, tok)
		tokensFile = binary.AppendUvarint(tokensFile, uint64(lengths[i]))
	}
	files[layout.TokensFile] = tokensFile

	return files, nil
}

// WriteDir writes every file plus its gzip twin under dir.
func (b *Builder) WriteDir(dir string) error {
	files, err := b.Build()
	if err != nil {
		return err
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name+CompressedSuffix), buf.Bytes(), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildCatalog() []byte {
	out := layout.AppendHeader(nil)

	out = binary.AppendUvarint(out, uint64(len(b.collections)))
	for _, c := range b.collections {
		for _, field := range []string{c.Title, c.Description, c.Species, c.Maintainer, c.Source} {
			out = layout.AppendString(out, field)
		}
		out = binary.AppendUvarint(out, uint64(c.Size))
	}

	out = binary.AppendUvarint(out, uint64(len(b.sets)))
	for i, s := range b.sets {
		out = layout.AppendString(out, s.Name)
		out = layout.AppendString(out, s.Description)
		out = binary.AppendUvarint(out, uint64(len(b.members[i])))
	}

	out = binary.AppendUvarint(out, uint64(len(b.genes)))
	for _, syns := range b.genes {
		out = binary.AppendUvarint(out, uint64(len(syns)))
		for _, s := range syns {
			out = layout.AppendString(out, s)
		}
	}
	return out
}

// buildVocabulary derives the sorted token vocabulary and, per token, the
// sorted set IDs whose name or description contains it.
func (b *Builder) buildVocabulary() ([]string, [][]uint32) {
	byToken := make(map[string]map[uint32]struct{})
	for i, s := range b.sets {
		for _, tok := range Tokenize(s.Name + " " + s.Description) {
			if byToken[tok] == nil {
				byToken[tok] = make(map[uint32]struct{})
			}
			byToken[tok][uint32(i)] = struct{}{}
		}
	}

	tokens := make([]string, 0, len(byToken))
	for tok := range byToken {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	postings := make([][]uint32, len(tokens))
	for i, tok := range tokens {
		ids := make([]uint32, 0, len(byToken[tok]))
		for id := range byToken[tok] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(x, y int) bool { return ids[x] < ids[y] })
		postings[i] = ids
	}
	return tokens, postings
}

// buildPostings concatenates the delta-encoded postings and returns the
// payload plus the per-entry byte lengths.
func buildPostings(postings [][]uint32) (payload []byte, lengths []uint32, err error) {
	lengths = make([]uint32, 0, len(postings))
	for _, ids := range postings {
		before := len(payload)
		if payload, err = codec.AppendEncode(payload, ids); err != nil {
			return nil, nil, err
		}
		lengths = append(lengths, uint32(len(payload)-before))
	}
	return payload, lengths, nil
}

// invert turns set→gene memberships into gene→set postings.
func invert(members [][]uint32, geneCount int) [][]uint32 {
	out := make([][]uint32, geneCount)
	for set, genes := range members {
		for _, g := range genes {
			out[g] = append(out[g], uint32(set))
		}
	}
	// Set IDs arrive ascending per gene by construction.
	return out
}
