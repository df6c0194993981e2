// Package nal reframes H.264 Annex-B and length-prefixed bitstreams into
// individual NAL unit spans, and back. It never copies a NAL unit's payload
// bytes: every unit it hands back is a zero-copy slice of the input span.
package nal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Azunyan1111/mkvengine/internal/pool"
)

// Framing describes how NAL units are delimited in a bitstream.
type Framing int

const (
	// TwoByteLength prefixes each NAL unit with a 2-byte big-endian length.
	TwoByteLength Framing = iota
	// FourByteLength prefixes each NAL unit with a 4-byte big-endian
	// length, as used by the avcC/hvcC box in MP4 and by Matroska's
	// CodecPrivate-negotiated length-delimited framing.
	FourByteLength
	// FourByteStartCode prefixes each NAL unit with the Annex B start
	// code 00 00 00 01.
	FourByteStartCode
)

// IsStartCode reports whether f delimits NAL units with a start code
// rather than a length prefix.
func (f Framing) IsStartCode() bool {
	return f == FourByteStartCode
}

var fourByteStartCode = []byte{0, 0, 0, 1}

// ErrTruncatedNALUnit is returned when a length prefix names more bytes
// than remain in the bitstream.
var ErrTruncatedNALUnit = errors.New("nal: length-prefixed NAL unit overruns bitstream")

// ErrMissingStartCode is returned when Annex-B parsing finds no start code
// at all. Bytes before the first start code are ignored.
var ErrMissingStartCode = errors.New("nal: bitstream does not begin with a start code")

// ParseBitstream splits bitstream into individual NAL unit spans per the
// given framing. Each returned span aliases the corresponding range of
// bitstream; none of the framing prefixes are included.
func ParseBitstream(bitstream pool.Span, framing Framing) ([]pool.Span, error) {
	switch framing {
	case TwoByteLength:
		return parseLengthField(bitstream, 2)
	case FourByteLength:
		return parseLengthField(bitstream, 4)
	case FourByteStartCode:
		return parseStartCodes(bitstream)
	default:
		return nil, fmt.Errorf("nal: unknown framing %d", framing)
	}
}

func parseLengthField(bitstream pool.Span, n int) ([]pool.Span, error) {
	var units []pool.Span
	total := bitstream.Len()

	i := 0
	for i+n <= total {
		lenBytes := bitstream.Slice(i, i+n).ToContiguous()
		var nalLen int
		if n == 2 {
			nalLen = int(binary.BigEndian.Uint16(lenBytes))
		} else {
			nalLen = int(binary.BigEndian.Uint32(lenBytes))
		}
		i += n

		if i+nalLen > total {
			return nil, ErrTruncatedNALUnit
		}
		units = append(units, bitstream.Slice(i, i+nalLen))
		i += nalLen
	}
	return units, nil
}

// parseStartCodes scans for Annex-B start codes (00 00 01, with an
// optional leading zero byte for the common 4-byte form) and slices out
// the bytes between consecutive start codes as NAL units. It strips any run
// of zero bytes before each start code (trailing_zero_8bits) and at the end
// of the stream, and does not require the stream to end with a start code.
func parseStartCodes(bitstream pool.Span) ([]pool.Span, error) {
	flat := bitstream.ToContiguous()

	starts := findStartCodes(flat)
	if len(starts) == 0 {
		return nil, ErrMissingStartCode
	}

	var units []pool.Span
	for idx, sc := range starts {
		unitStart := sc.end
		unitEnd := len(flat)
		if idx+1 < len(starts) {
			unitEnd = starts[idx+1].start
		}
		// Trim the trailing zero bytes some encoders leave before the next
		// start code.
		for unitEnd > unitStart && flat[unitEnd-1] == 0 {
			unitEnd--
		}
		if unitEnd > unitStart {
			units = append(units, bitstream.Slice(unitStart, unitEnd))
		}
	}
	return units, nil
}

type startCodeRange struct{ start, end int }

func findStartCodes(flat []byte) []startCodeRange {
	var out []startCodeRange
	for i := 0; i+3 <= len(flat); i++ {
		if flat[i] == 0 && flat[i+1] == 0 && flat[i+2] == 1 {
			out = append(out, startCodeRange{start: i, end: i + 3})
			i += 2
		}
	}
	return out
}

// FrameNALUnits prefixes each of nalUnits with target's framing and
// concatenates the result into a single span, in order.
func FrameNALUnits(nalUnits []pool.Span, target Framing) pool.Span {
	frags := make([]pool.Span, 0, len(nalUnits)*2)
	for _, unit := range nalUnits {
		switch target {
		case TwoByteLength:
			frags = append(frags, pool.Owned(encodeLength(unit.Len(), 2)), unit)
		case FourByteLength:
			frags = append(frags, pool.Owned(encodeLength(unit.Len(), 4)), unit)
		case FourByteStartCode:
			frags = append(frags, pool.Borrowed(fourByteStartCode), unit)
		}
	}
	return pool.Concat(frags...)
}

func encodeLength(n, width int) []byte {
	out := make([]byte, width)
	if width == 2 {
		binary.BigEndian.PutUint16(out, uint16(n))
	} else {
		binary.BigEndian.PutUint32(out, uint32(n))
	}
	return out
}

// ConvertBitstream reframes bitstream from source framing to target
// framing. If source and target are equal, bitstream is returned as-is.
func ConvertBitstream(bitstream pool.Span, source, target Framing) (pool.Span, error) {
	if source == target {
		return bitstream, nil
	}
	units, err := ParseBitstream(bitstream, source)
	if err != nil {
		return pool.Span{}, err
	}
	return FrameNALUnits(units, target), nil
}
