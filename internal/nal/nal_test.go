package nal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Azunyan1111/mkvengine/internal/pool"
)

func spansOf(units ...string) []pool.Span {
	out := make([]pool.Span, len(units))
	for i, u := range units {
		out[i] = pool.Borrowed([]byte(u))
	}
	return out
}

func TestFrameNALUnitsFourByteStartCode(t *testing.T) {
	framed := FrameNALUnits(spansOf("a"), FourByteStartCode)
	require.Equal(t, []byte{0, 0, 0, 1, 'a'}, framed.ToContiguous())

	framed = FrameNALUnits(spansOf("a", "b"), FourByteStartCode)
	require.Equal(t, []byte{0, 0, 0, 1, 'a', 0, 0, 0, 1, 'b'}, framed.ToContiguous())
}

func TestFrameNALUnitsFourByteLength(t *testing.T) {
	framed := FrameNALUnits(spansOf("a"), FourByteLength)
	require.Equal(t, []byte{0, 0, 0, 1, 'a'}, framed.ToContiguous())

	framed = FrameNALUnits(spansOf("abc"), FourByteLength)
	require.Equal(t, []byte{0, 0, 0, 3, 'a', 'b', 'c'}, framed.ToContiguous())

	framed = FrameNALUnits(spansOf("a", "b"), FourByteLength)
	require.Equal(t, []byte{0, 0, 0, 1, 'a', 0, 0, 0, 1, 'b'}, framed.ToContiguous())
}

func TestConvertBitstreamStartCodeToLength(t *testing.T) {
	bitstream := pool.Concat(
		pool.Borrowed([]byte{0, 0, 0, 1}), pool.Borrowed([]byte{5}), pool.Borrowed([]byte("a")),
		pool.Borrowed([]byte{0, 0, 0, 1}), pool.Borrowed([]byte{1}), pool.Borrowed([]byte("b")),
	)

	converted, err := ConvertBitstream(bitstream, FourByteStartCode, FourByteLength)
	require.NoError(t, err)
	require.Equal(t,
		[]byte{0, 0, 0, 2, 5, 'a', 0, 0, 0, 2, 1, 'b'},
		converted.ToContiguous())
}

func TestConvertBitstreamLengthToStartCode(t *testing.T) {
	bitstream := pool.Concat(
		pool.Borrowed([]byte{0, 0, 0, 2}), pool.Borrowed([]byte{5}), pool.Borrowed([]byte("a")),
		pool.Borrowed([]byte{0, 0, 0, 2}), pool.Borrowed([]byte{1}), pool.Borrowed([]byte("b")),
	)

	converted, err := ConvertBitstream(bitstream, FourByteLength, FourByteStartCode)
	require.NoError(t, err)
	require.Equal(t,
		[]byte{0, 0, 0, 1, 5, 'a', 0, 0, 0, 1, 1, 'b'},
		converted.ToContiguous())
}

func TestConvertBitstreamNoopWhenFramingsMatch(t *testing.T) {
	bitstream := pool.Borrowed([]byte{1, 2, 3})
	converted, err := ConvertBitstream(bitstream, FourByteLength, FourByteLength)
	require.NoError(t, err)
	require.Equal(t, bitstream.ToContiguous(), converted.ToContiguous())
}

func TestParseBitstreamTruncatedLength(t *testing.T) {
	bitstream := pool.Borrowed([]byte{0, 0, 0, 10, 'a'})
	_, err := ParseBitstream(bitstream, FourByteLength)
	require.ErrorIs(t, err, ErrTruncatedNALUnit)
}

func TestDecodeHeaderAndIsVideoNALUnit(t *testing.T) {
	sps := []byte{0x67, 0, 0, 0}
	h, ok := DecodeHeader(sps)
	require.True(t, ok)
	require.Equal(t, UnitTypeSeqParameterSet, h.Type)
	require.True(t, IsVideoNALUnit(sps))

	sei := []byte{0x06}
	require.False(t, IsVideoNALUnit(sei))
}

// A minimal, hand-crafted baseline-profile SPS for a 176x144 (QCIF)
// picture with no cropping, used only to exercise the Exp-Golomb decode
// path end to end.
func TestBaselineSPSParserDecodesDimensions(t *testing.T) {
	sps := buildQCIFBaselineSPS()
	info, err := BaselineSPSParser{}.ParseSPS(sps)
	require.NoError(t, err)
	require.Equal(t, 176, info.Width)
	require.Equal(t, 144, info.Height)
}

// buildQCIFBaselineSPS hand-assembles the bitstream for a baseline SPS
// describing an 11x9 macroblock (176x144) progressive picture with every
// optional section minimal: seq_parameter_set_id=0, log2_max_frame_num=4,
// pic_order_cnt_type=2 (no extra fields), max_num_ref_frames=0,
// gaps flag=0, frame_mbs_only=1, direct_8x8_inference=1, no cropping, no
// VUI.
func buildQCIFBaselineSPS() []byte {
	w := newBitWriter()
	w.writeBits(66, 8)  // profile_idc = 66 (baseline)
	w.writeBits(0, 8)   // constraint flags / reserved
	w.writeBits(30, 8)  // level_idc = 3.0
	w.writeUE(0)        // seq_parameter_set_id
	w.writeUE(0)        // log2_max_frame_num_minus4
	w.writeUE(2)        // pic_order_cnt_type = 2
	w.writeUE(0)        // max_num_ref_frames
	w.writeBit(0)       // gaps_in_frame_num_value_allowed_flag
	w.writeUE(10)       // pic_width_in_mbs_minus1 (11 mbs = 176px)
	w.writeUE(8)        // pic_height_in_map_units_minus1 (9 mbs = 144px)
	w.writeBit(1)       // frame_mbs_only_flag
	w.writeBit(1)       // direct_8x8_inference_flag
	w.writeBit(0)       // frame_cropping_flag
	w.writeBit(0)       // vui_parameters_present_flag
	w.writeBit(1)       // rbsp_stop_one_bit
	payload := w.bytes()

	out := make([]byte, 0, 1+len(payload))
	out = append(out, 0x67) // NAL header: ref_idc=3, type=7 (SPS)
	out = append(out, payload...)
	return out
}

// bitWriter is the Exp-Golomb-aware companion to bitReader, used only by
// tests to hand-build RBSP payloads.
type bitWriter struct {
	buf     []byte
	bitBuf  byte
	nBits   int
}

func newBitWriter() *bitWriter { return &bitWriter{} }

func (w *bitWriter) writeBit(b uint32) {
	w.bitBuf = w.bitBuf<<1 | byte(b&1)
	w.nBits++
	if w.nBits == 8 {
		w.buf = append(w.buf, w.bitBuf)
		w.bitBuf = 0
		w.nBits = 0
	}
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit((v >> uint(i)) & 1)
	}
}

func (w *bitWriter) writeUE(v uint32) {
	v++
	nBits := 0
	for t := v; t > 1; t >>= 1 {
		nBits++
	}
	for i := 0; i < nBits; i++ {
		w.writeBit(0)
	}
	w.writeBits(v, nBits+1)
}

func (w *bitWriter) bytes() []byte {
	out := append([]byte{}, w.buf...)
	if w.nBits > 0 {
		out = append(out, w.bitBuf<<uint(8-w.nBits))
	}
	return out
}
