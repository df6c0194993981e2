package ebml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeUint(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 65535, 1 << 32}
	for _, v := range values {
		require.Equal(t, v, DecodeUint(EncodeUint(v)))
	}
}

func TestEncodeDecodeInt(t *testing.T) {
	values := []int64{0, 1, -1, 127, -128, 32767, -32768, 1 << 20, -(1 << 20)}
	for _, v := range values {
		require.Equal(t, v, DecodeInt(EncodeInt(v)))
	}
}

func TestEncodeDecodeFloat(t *testing.T) {
	v := 29.97
	decoded, err := DecodeFloat(EncodeFloat64(v))
	require.NoError(t, err)
	require.InDelta(t, v, decoded, 1e-9)

	_, err = DecodeFloat([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidFloatSize)
}

func TestDecodeStringStripsNulPadding(t *testing.T) {
	s, err := DecodeString([]byte("matroska\x00\x00"))
	require.NoError(t, err)
	require.Equal(t, "matroska", s)
}

func TestDecodeStringRejectsInvalidUTF8(t *testing.T) {
	_, err := DecodeString([]byte{0xFF, 0xFE})
	require.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{ID: TrackEntry, Length: KnownLength(42)}
	encoded := h.Encode()

	decoded, consumed, err := DecodeHeader(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), consumed)
	require.Equal(t, h.ID, decoded.ID)
	require.Equal(t, h.Length.Value(), decoded.Length.Value())
}

func TestWalkChildrenSplitsDirectChildrenOnly(t *testing.T) {
	inner := Master(Video, Leaf(PixelWidth, EncodeUint(1920)), Leaf(PixelHeight, EncodeUint(1080)))
	outer := Master(TrackEntry,
		Leaf(TrackNumber, EncodeUint(1)),
		Leaf(CodecID, EncodeString("V_MPEG4/ISO/AVC")),
		inner,
	)

	var buf []byte
	buf = outer.AppendTo(buf)

	// Strip the outer header to get at its body, the way a demuxer would
	// after already having decoded the TrackEntry header itself.
	_, consumed, err := DecodeHeader(buf)
	require.NoError(t, err)
	body := buf[consumed:]

	var seen []ID
	err = WalkChildren(body, func(c Child) error {
		seen = append(seen, c.Header.ID)
		if c.Header.ID == Video {
			var nested []ID
			nestedErr := WalkChildren(c.Body, func(nc Child) error {
				nested = append(nested, nc.Header.ID)
				return nil
			})
			require.NoError(t, nestedErr)
			require.Equal(t, []ID{PixelWidth, PixelHeight}, nested)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []ID{TrackNumber, CodecID, Video}, seen)
}

func TestElementEncodedLenMatchesAppendTo(t *testing.T) {
	e := Master(Info,
		Leaf(TimestampScale, EncodeUint(1000000)),
		Leaf(MuxingApp, EncodeString("mkvengine")),
	)

	var buf []byte
	buf = e.AppendTo(buf)
	require.Equal(t, e.EncodedLen(), len(buf))
}

func TestAppendUnknownLengthMaster(t *testing.T) {
	child := Leaf(Timestamp, EncodeUint(0))
	buf := AppendUnknownLengthMaster(nil, Cluster, 8, child)

	h, consumed, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, Cluster, h.ID)
	require.True(t, h.Length.IsUnknown())

	body := buf[consumed:]
	var seen []ID
	err = WalkChildren(body, func(c Child) error {
		seen = append(seen, c.Header.ID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []ID{Timestamp}, seen)
}
