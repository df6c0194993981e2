package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/mux"
	"github.com/Azunyan1111/mkvengine/internal/pool"
)

func TestMuxThenDemuxRoundTrip(t *testing.T) {
	p := pool.NewMemoryPool(pool.MemoryPoolConfig{DefaultCapacity: 4096})

	track := mkv.Track{
		ID: 1,
		Info: mkv.MediaInfo{
			Codec: mkv.CodecH264,
			Kind:  mkv.MediaKindVideo,
			Video: mkv.VideoInfo{Width: 640, Height: 480},
		},
		Timebase: mkv.NewFraction(1, 1000),
	}
	movie := mkv.Movie{Tracks: []mkv.Track{track}}

	var buf bytes.Buffer
	mc := NewMuxContext(&buf, p, mux.DefaultConfig())
	ctx := context.Background()

	require.NoError(t, mc.Start(ctx, movie))

	frames := [][]byte{[]byte("keyframe-payload"), []byte("deltaframe-payload")}
	for i, data := range frames {
		pkt := mkv.Packet{
			Time:  mkv.MediaTime{PTS: uint64(i) * 33, Timebase: track.Timebase},
			Track: track,
			Key:   i == 0,
			Data:  pool.Borrowed(data),
		}
		require.NoError(t, mc.Write(ctx, pkt))
	}
	require.NoError(t, mc.Stop(ctx))
	require.NotZero(t, buf.Len())

	dc, err := Open(bytes.NewReader(buf.Bytes()), p)
	require.NoError(t, err)

	gotMovie, err := dc.ReadHeaders(ctx)
	require.NoError(t, err)
	require.Len(t, gotMovie.Tracks, 1)
	require.Equal(t, mkv.CodecH264, gotMovie.Tracks[0].Info.Codec)
	require.Equal(t, 640, gotMovie.Tracks[0].Info.Video.Width)
	require.Equal(t, 480, gotMovie.Tracks[0].Info.Video.Height)

	var got [][]byte
	for {
		pkt, err := dc.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, append([]byte(nil), pkt.Data.ToContiguous()...))
		pkt.Data.Release()
	}

	require.Len(t, got, len(frames))
	for i, data := range frames {
		require.Equal(t, data, got[i])
	}
}

func TestOpenRejectsUnrecognizedInput(t *testing.T) {
	p := pool.NewMemoryPool(pool.MemoryPoolConfig{DefaultCapacity: 4096})
	_, err := Open(bytes.NewReader([]byte("not a container at all")), p)
	require.Error(t, err)
}

func TestContextCancellationStopsDemux(t *testing.T) {
	p := pool.NewMemoryPool(pool.MemoryPoolConfig{DefaultCapacity: 4096})

	track := mkv.Track{
		ID:       1,
		Info:     mkv.MediaInfo{Codec: mkv.CodecH264, Kind: mkv.MediaKindVideo},
		Timebase: mkv.NewFraction(1, 1000),
	}
	movie := mkv.Movie{Tracks: []mkv.Track{track}}

	var buf bytes.Buffer
	mc := NewMuxContext(&buf, p, mux.DefaultConfig())
	bg := context.Background()
	require.NoError(t, mc.Start(bg, movie))
	require.NoError(t, mc.Stop(bg))

	dc, err := Open(bytes.NewReader(buf.Bytes()), p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = dc.ReadHeaders(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
