package rtpingest

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func pkt(payload []byte, timestamp uint32, marker bool) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Timestamp: timestamp, Marker: marker},
		Payload: payload,
	}
}

func TestReassemblerSingleNAL(t *testing.T) {
	var r Reassembler
	units, boundary, err := r.Push(pkt([]byte{0x67, 1, 2, 3}, 1000, true))
	require.NoError(t, err)
	require.True(t, boundary)
	require.Len(t, units, 1)
	require.Equal(t, []byte{0x67, 1, 2, 3}, units[0].ToContiguous())
}

func TestReassemblerFUA(t *testing.T) {
	var r Reassembler

	// FU indicator byte: ref_idc=3 (0x60) | type=28; FU header start byte
	// (start=1, type=5 IDR slice).
	start := []byte{0x7C, 0x85, 0xAA, 0xBB}
	units, boundary, err := r.Push(pkt(start, 2000, false))
	require.NoError(t, err)
	require.False(t, boundary)
	require.Empty(t, units)

	end := []byte{0x7C, 0x45, 0xCC, 0xDD}
	units, boundary, err = r.Push(pkt(end, 2000, true))
	require.NoError(t, err)
	require.True(t, boundary)
	require.Len(t, units, 1)
	// Reconstructed NAL header: ref_idc from indicator (0x60) | type from FU
	// header (0x05) = 0x65.
	require.Equal(t, []byte{0x65, 0xAA, 0xBB, 0xCC, 0xDD}, units[0].ToContiguous())
}

func TestReassemblerSTAPA(t *testing.T) {
	var r Reassembler
	payload := []byte{
		24, // STAP-A indicator
		0, 2, 0x67, 0xAA, // NAL #1: size=2, bytes {0x67, 0xAA}
		0, 3, 0x68, 0xBB, 0xCC, // NAL #2: size=3, bytes {0x68, 0xBB, 0xCC}
	}
	units, boundary, err := r.Push(pkt(payload, 3000, true))
	require.NoError(t, err)
	require.True(t, boundary)
	require.Len(t, units, 2)
	require.Equal(t, []byte{0x67, 0xAA}, units[0].ToContiguous())
	require.Equal(t, []byte{0x68, 0xBB, 0xCC}, units[1].ToContiguous())
}

func TestReassemblerUnsupportedNALType(t *testing.T) {
	var r Reassembler
	_, _, err := r.Push(pkt([]byte{30}, 0, true))
	require.Error(t, err)
}

func TestSessionAssemblesPacketAcrossRTPPackets(t *testing.T) {
	track := Track(1, 176, 144, nil)
	s := NewSession(track)

	pkt1, ok, err := s.Push(pkt([]byte{0x65, 1, 2}, 9000, false))
	require.NoError(t, err)
	require.False(t, ok)

	pkt2, ok, err := s.Push(pkt([]byte{0x41, 3, 4}, 9000, true))
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, uint64(0), pkt2.Time.PTS)
	require.True(t, pkt2.Key) // first NAL was an IDR slice (type 5)
	require.Equal(t,
		[]byte{0, 0, 0, 3, 0x65, 1, 2, 0, 0, 0, 3, 0x41, 3, 4},
		pkt2.Data.ToContiguous())

	_ = pkt1 // unused: first Push produced no packet
}

func TestSessionPTSTracksFirstTimestamp(t *testing.T) {
	track := Track(1, 0, 0, nil)
	s := NewSession(track)

	_, ok, err := s.Push(pkt([]byte{0x65, 1}, 1000, true))
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := s.Push(pkt([]byte{0x41, 2}, 4600, true))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3600), second.Time.PTS)
}
