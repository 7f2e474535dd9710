// Package codec implements the delta varint encoding used by the gesel
// database files.
//
// A posting is a sorted sequence of uint32 IDs stored as successive
// differences, each difference written as a variable-length integer with a
// continuation bit (low 7 bits of each byte carry payload, the high bit
// marks "more bytes follow"). Decoding is pure and performs no I/O.
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed indicates a corrupt varint stream, e.g. a value whose
	// continuation bytes are truncated at the end of the buffer.
	ErrMalformed = errors.New("codec: malformed varint stream")

	// ErrNotIncreasing is returned by Encode when the input sequence is not
	// strictly increasing. Duplicate IDs are never encoded.
	ErrNotIncreasing = errors.New("codec: sequence not strictly increasing")
)

const maxVarintLen32 = 5

// Decode decodes a delta-encoded varint stream into the cumulative ID
// sequence. An empty input yields an empty (non-nil) slice.
func Decode(b []byte) ([]uint32, error) {
	out := make([]uint32, 0, len(b))

	var acc uint32
	var delta uint64
	var shift uint
	var nbytes int

	for _, c := range b {
		nbytes++
		if nbytes > maxVarintLen32 {
			return nil, fmt.Errorf("%w: value exceeds 32 bits", ErrMalformed)
		}
		delta |= uint64(c&0x7f) << shift
		if c&0x80 != 0 {
			shift += 7
			continue
		}
		if delta > 0xffffffff || uint64(acc)+delta > 0xffffffff {
			return nil, fmt.Errorf("%w: cumulative value exceeds 32 bits", ErrMalformed)
		}
		acc += uint32(delta)
		out = append(out, acc)
		delta, shift, nbytes = 0, 0, 0
	}
	if shift != 0 || nbytes != 0 {
		return nil, fmt.Errorf("%w: truncated continuation at offset %d", ErrMalformed, len(b))
	}
	return out, nil
}

// Encode encodes a strictly increasing ID sequence as delta varints.
// The inverse of Decode: Decode(Encode(ids)) == ids.
func Encode(ids []uint32) ([]byte, error) {
	return AppendEncode(nil, ids)
}

// AppendEncode appends the encoding of ids to dst and returns the extended
// buffer.
func AppendEncode(dst []byte, ids []uint32) ([]byte, error) {
	prev := uint32(0)
	for i, id := range ids {
		delta := id - prev
		if i > 0 && id <= prev {
			return nil, fmt.Errorf("%w: ids[%d]=%d after %d", ErrNotIncreasing, i, id, prev)
		}
		for delta >= 0x80 {
			dst = append(dst, byte(delta)|0x80)
			delta >>= 7
		}
		dst = append(dst, byte(delta))
		prev = id
	}
	return dst, nil
}

// DecodeLengths decodes a varint stream of raw (non-delta) values. It is
// used for the .ranges offset tables, whose entries are per-posting byte
// lengths and may legitimately be zero.
func DecodeLengths(b []byte) ([]uint32, error) {
	out := make([]uint32, 0, len(b))

	var v uint64
	var shift uint
	var nbytes int

	for _, c := range b {
		nbytes++
		if nbytes > maxVarintLen32 {
			return nil, fmt.Errorf("%w: value exceeds 32 bits", ErrMalformed)
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 != 0 {
			shift += 7
			continue
		}
		if v > 0xffffffff {
			return nil, fmt.Errorf("%w: value exceeds 32 bits", ErrMalformed)
		}
		out = append(out, uint32(v))
		v, shift, nbytes = 0, 0, 0
	}
	if nbytes != 0 {
		return nil, fmt.Errorf("%w: truncated continuation at offset %d", ErrMalformed, len(b))
	}
	return out, nil
}

// AppendLengths appends raw varint values (no delta transform) to dst.
func AppendLengths(dst []byte, vals []uint32) []byte {
	for _, v := range vals {
		for v >= 0x80 {
			dst = append(dst, byte(v)|0x80)
			v >>= 7
		}
		dst = append(dst, byte(v))
	}
	return dst
}
