// Package ebml implements the EBML element codec: variable-length integer
// and identifier encoding/decoding, typed element readers, and a symmetric
// master-element writer. It operates on byte slices handed to it by a
// buffered reader one step at a time; it owns no I/O itself.
package ebml

import (
	"errors"
	"math/bits"

	"github.com/Azunyan1111/mkvengine/internal/stepio"
)

// ErrUnsupportedVintWidth is returned when a VINT's leading-zero-bit count
// exceeds what this codec supports: more than 3 for an ID (max 4-byte IDs)
// or more than 7 for a length (max 8-byte lengths).
var ErrUnsupportedVintWidth = errors.New("ebml: unsupported vint width")

// decodeVint reads a variable-length integer from buf whose width is
// encoded in the leading zero bits of its first byte, capped at maxWidth
// bytes. It returns the raw decoded value (marker bit included), the number
// of bytes consumed, and an error. Decoding is all-or-nothing: either it
// consumes exactly the declared width, or it consumes nothing and reports
// *stepio.NeedMore.
func decodeVint(buf []byte, maxWidth int) (value uint64, width int, err error) {
	if len(buf) == 0 {
		return 0, 0, &stepio.NeedMore{N: 1}
	}

	leadingZeros := bits.LeadingZeros8(buf[0])
	width = leadingZeros + 1

	if width > maxWidth {
		return 0, 0, ErrUnsupportedVintWidth
	}
	if len(buf) < width {
		return 0, 0, &stepio.NeedMore{N: width - len(buf)}
	}

	value = uint64(buf[0])
	for i := 1; i < width; i++ {
		value = value<<8 | uint64(buf[i])
	}
	return value, width, nil
}

// vintWidth returns the minimum number of bytes needed to hold v in a VINT,
// i.e. the minimum b such that v fits in 7*b bits. Zero needs one byte.
func vintWidth(v uint64) int {
	bitlen := bits.Len64(v)
	if bitlen == 0 {
		return 1
	}
	return (bitlen + 6) / 7
}

// encodeVint writes v as a VINT into the returned byte slice, marking the
// width with the standard unary leading-one-bit-position convention: the
// marker bit sits at position (8-width) of the first byte.
func encodeVint(v uint64, width int) []byte {
	out := make([]byte, width)
	marker := uint64(1) << uint(8*width-width)
	v |= marker
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// ID is an EBML element identifier. Unlike a length VINT, an ID's leading
// marker bit is part of its canonical value: 0x1A45DFA3 (the EBML header
// ID) already carries the bit pattern that identifies it as a 4-byte ID.
type ID uint32

// DecodeID reads one ID from buf. The returned ID retains its marker bit so
// canonical IDs round-trip bit-exactly.
func DecodeID(buf []byte) (id ID, consumed int, err error) {
	v, w, err := decodeVint(buf, 4)
	if err != nil {
		return 0, 0, err
	}
	return ID(v), w, nil
}

// Size returns the number of bytes id encodes to.
func (id ID) Size() int {
	w := (bits.Len32(uint32(id)) + 7) / 8
	if w == 0 {
		w = 1
	}
	return w
}

// Encode returns id's canonical big-endian byte encoding, exactly Size()
// bytes long. Because the marker bit already lives in id's value, encoding
// is a plain big-endian write at the width the value's own bits imply.
func (id ID) Encode() []byte {
	w := id.Size()
	out := make([]byte, w)
	v := uint32(id)
	for i := w - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// Length is an EBML element length: either a known byte count, or an
// "unknown" sentinel of a given encoded width (used for the Segment and
// each Cluster when the writer does not know their total size up front).
type Length struct {
	known bool
	value uint64
	width int
}

// KnownLength builds a Length with a known byte count.
func KnownLength(v uint64) Length {
	return Length{known: true, value: v}
}

// UnknownLength builds an unknown-length sentinel encoded in width bytes.
func UnknownLength(width int) Length {
	return Length{known: false, width: width}
}

// IsUnknown reports whether l represents an unknown length.
func (l Length) IsUnknown() bool {
	return !l.known
}

// Value returns l's known byte count. It panics if l is unknown; callers
// must check IsUnknown first.
func (l Length) Value() uint64 {
	if !l.known {
		panic("ebml: Value called on an unknown Length")
	}
	return l.value
}

// Size returns the number of bytes l encodes to. A known value whose
// minimal-width payload would be all ones (127, 16383, ...) takes one more
// byte, since that payload is reserved for an unknown length.
func (l Length) Size() int {
	if l.known {
		w := vintWidth(l.value)
		if l.value == (uint64(1)<<uint(7*w))-1 {
			w++
		}
		return w
	}
	return l.width
}

// Encode returns l's VINT encoding. An unknown length encodes as the
// width's marker bit followed by an all-ones payload (0xFF for width 1,
// 0x01 then seven 0xFF bytes for width 8).
func (l Length) Encode() []byte {
	if !l.known {
		out := make([]byte, l.width)
		for i := range out {
			out[i] = 0xFF
		}
		out[0] = 0xFF >> uint(l.width-1)
		return out
	}
	return encodeVint(l.value, l.Size())
}

// DecodeLength reads one length VINT from buf. The marker bit is stripped
// from the returned value; an all-ones payload of the declared width
// decodes to an unknown-length sentinel of that width.
func DecodeLength(buf []byte) (length Length, consumed int, err error) {
	if len(buf) == 0 {
		return Length{}, 0, &stepio.NeedMore{N: 1}
	}

	leadingZeros := bits.LeadingZeros8(buf[0])
	width := leadingZeros + 1
	if width > 8 {
		return Length{}, 0, ErrUnsupportedVintWidth
	}
	if len(buf) < width {
		return Length{}, 0, &stepio.NeedMore{N: width - len(buf)}
	}

	markerBit := uint64(1) << uint(7*width)
	raw := uint64(buf[0])
	for i := 1; i < width; i++ {
		raw = raw<<8 | uint64(buf[i])
	}
	value := raw &^ markerBit

	maxValue := (uint64(1) << uint(7*width)) - 1
	if value == maxValue {
		return UnknownLength(width), width, nil
	}
	return KnownLength(value), width, nil
}
