package ebml

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Azunyan1111/mkvengine/internal/stepio"
)

func TestVintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 1 << 34}
	for _, v := range values {
		w := vintWidth(v)
		encoded := encodeVint(v, w)
		require.Len(t, encoded, w)

		decoded, consumed, err := decodeVint(encoded, 8)
		require.NoError(t, err)
		require.Equal(t, w, consumed)
		require.Equal(t, v, decoded&^(uint64(1)<<uint(7*w)))
	}
}

func TestVintWidthBoundaries(t *testing.T) {
	require.Equal(t, 1, vintWidth(0))
	require.Equal(t, 1, vintWidth(127))
	require.Equal(t, 2, vintWidth(128))
	require.Equal(t, 2, vintWidth(16383))
	require.Equal(t, 3, vintWidth(16384))
}

func TestIDRoundTrip(t *testing.T) {
	ids := []ID{EBML, Segment, Info, Tracks, TrackEntry, SimpleBlock, Cluster}
	for _, id := range ids {
		encoded := id.Encode()
		require.Len(t, encoded, id.Size())

		decoded, consumed, err := DecodeID(encoded)
		require.NoError(t, err)
		require.Equal(t, id, decoded)
		require.Equal(t, id.Size(), consumed)
	}
}

func TestIDNeedsMoreBytes(t *testing.T) {
	full := Segment.Encode()
	_, _, err := DecodeID(full[:len(full)-1])
	require.Error(t, err)

	var needMore *stepio.NeedMore
	require.ErrorAs(t, err, &needMore)
}

func TestLengthRoundTripKnown(t *testing.T) {
	values := []uint64{0, 1, 126, 127, 128, 16382, 16383, 1 << 20}
	for _, v := range values {
		l := KnownLength(v)
		encoded := l.Encode()

		decoded, consumed, err := DecodeLength(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), consumed)
		require.False(t, decoded.IsUnknown())
		require.Equal(t, v, decoded.Value())
	}
}

func TestLengthUnknownRoundTrip(t *testing.T) {
	for _, width := range []int{1, 2, 4, 8} {
		l := UnknownLength(width)
		encoded := l.Encode()
		require.Len(t, encoded, width)
		want := make([]byte, width)
		for i := range want {
			want[i] = 0xFF
		}
		want[0] = 0xFF >> uint(width-1) // marker bit, then an all-ones payload
		require.Equal(t, want, encoded)

		decoded, consumed, err := DecodeLength(encoded)
		require.NoError(t, err)
		require.Equal(t, width, consumed)
		require.True(t, decoded.IsUnknown())
	}
}

func TestLengthNeedsMoreBytes(t *testing.T) {
	encoded := KnownLength(1 << 20).Encode()
	require.Greater(t, len(encoded), 1)

	_, _, err := DecodeLength(encoded[:len(encoded)-1])
	require.Error(t, err)

	var needMore *stepio.NeedMore
	require.ErrorAs(t, err, &needMore)
}

func TestUnsupportedVintWidth(t *testing.T) {
	// A first byte of 0x00 claims a width greater than any EBML ID (4
	// bytes) or length (8 bytes) ever uses.
	_, _, err := DecodeID([]byte{0x00, 0, 0, 0, 0})
	require.ErrorIs(t, err, ErrUnsupportedVintWidth)
}
