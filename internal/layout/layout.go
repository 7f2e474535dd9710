// Package layout pins down the versioned binary file contract shared by the
// database builder and the client. The byte layout is part of a release's
// identity: readers must reject unknown versions outright instead of
// attempting best-effort parsing.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic opens catalog.bin; Version is the only layout revision this code
// reads or writes.
const (
	Magic   = "GSEL"
	Version = 1
)

// File names within a species' base URL. Every file also has a gzip twin
// (same name plus ".gz") for whole-file downloads.
const (
	CatalogFile         = "catalog.bin"
	TokensFile          = "tokens.bin"
	GeneToSetRangesFile = "gene2set.ranges"
	SetToGeneRangesFile = "set2gene.ranges"
	GeneToSetFile       = "gene2set.bin"
	SetToGeneFile       = "set2gene.bin"
	TokenToSetFile      = "token2set.bin"
)

// MetadataFiles lists the files every access mode fetches whole at catalog
// load; they are small by construction.
func MetadataFiles() []string {
	return []string{CatalogFile, TokensFile, GeneToSetRangesFile, SetToGeneRangesFile}
}

// AllFiles lists every database file, in the order the bulk strategy
// prefetches them.
func AllFiles() []string {
	return []string{
		CatalogFile, TokensFile,
		GeneToSetRangesFile, SetToGeneRangesFile,
		GeneToSetFile, SetToGeneFile, TokenToSetFile,
	}
}

var (
	// ErrCorrupt indicates a structural mismatch in a database file.
	ErrCorrupt = errors.New("layout: corrupt database file")

	// ErrVersion indicates a layout version this client does not speak.
	ErrVersion = errors.New("layout: unsupported database version")
)

// Reader is a cursor over one database file's bytes. All multi-byte
// integers are uvarints; strings are length-prefixed UTF-8.
type Reader struct {
	name string
	b    []byte
	off  int
}

// NewReader wraps the content of the named file.
func NewReader(name string, b []byte) *Reader {
	return &Reader{name: name, b: b}
}

// Header consumes the magic and version prefix, failing fast on either.
func (r *Reader) Header() error {
	if len(r.b) < len(Magic) || string(r.b[:len(Magic)]) != Magic {
		return fmt.Errorf("%w: %s: bad magic", ErrCorrupt, r.name)
	}
	r.off = len(Magic)
	v, err := r.Uvarint()
	if err != nil {
		return err
	}
	if v != Version {
		return fmt.Errorf("%w: %s: version %d, want %d", ErrVersion, r.name, v, Version)
	}
	return nil
}

// Uvarint reads one varint.
func (r *Reader) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s: truncated varint at offset %d", ErrCorrupt, r.name, r.off)
	}
	r.off += n
	return v, nil
}

// Count reads a varint bounded by the remaining bytes, for use as an
// element count before allocating.
func (r *Reader) Count() (int, error) {
	v, err := r.Uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(r.b)-r.off) {
		return 0, fmt.Errorf("%w: %s: count %d exceeds remaining %d bytes", ErrCorrupt, r.name, v, len(r.b)-r.off)
	}
	return int(v), nil
}

// String reads one length-prefixed string.
func (r *Reader) String() (string, error) {
	n, err := r.Count()
	if err != nil {
		return "", err
	}
	s := string(r.b[r.off : r.off+n])
	r.off += n
	return s, nil
}

// Done verifies that the whole file was consumed.
func (r *Reader) Done() error {
	if r.off != len(r.b) {
		return fmt.Errorf("%w: %s: %d trailing bytes", ErrCorrupt, r.name, len(r.b)-r.off)
	}
	return nil
}

// AppendHeader appends the magic and current version.
func AppendHeader(dst []byte) []byte {
	dst = append(dst, Magic...)
	return binary.AppendUvarint(dst, Version)
}

// AppendString appends one length-prefixed string.
func AppendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}
