// Package pipeline wires the synchronous pieces together: a bufreader.Reader
// (or an io.Writer) on one side, a mkv.Demuxer or mux.Muxer on the other,
// and a pool.MemoryPool supplying the scratch and packet-body memory in
// between. Neither the demuxer nor the muxer touches I/O directly or knows
// the pool exists; this package is where those collaborators meet.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azunyan1111/mkvengine/internal/bufreader"
	"github.com/Azunyan1111/mkvengine/internal/container"
	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/pool"
)

const (
	defaultInitialBufferSize = 32 * 1024
	defaultProbeWindow       = 4 * 1024
)

// DemuxContext drives a mkv.Demuxer against a bufreader.Reader, and
// relocates every emitted Packet's body into a fresh buffer drawn from a
// shared MemoryPool so it safely outlives however many further ReadPacket
// calls the caller makes before it gets around to using the packet.
type DemuxContext struct {
	demuxer *mkv.Demuxer
	reader  *bufreader.Reader
	pool    *pool.MemoryPool
}

// NewDemuxContext wraps r for demuxing, without probing it first. Prefer
// Open when r's format has not already been established.
func NewDemuxContext(r io.Reader, p *pool.MemoryPool) *DemuxContext {
	return &DemuxContext{
		demuxer: mkv.NewDemuxer(),
		reader:  bufreader.New(r, defaultInitialBufferSize),
		pool:    p,
	}
}

// Open buffers a small probe window from r and classifies it against every
// container.Format registered in this process (see internal/pipeline's own
// init-time registration of Matroska), returning an error immediately —
// without attempting to demux anything — when nothing recognizes the
// window at all. A "maybe" result (partial marker match, e.g. a truncated
// or tiny input) is still accepted; only a flat "no match" across every
// registered format is rejected up front.
func Open(r io.Reader, p *pool.MemoryPool) (*DemuxContext, error) {
	reader := bufreader.New(r, defaultInitialBufferSize)
	reader.EnsureAdditional(defaultProbeWindow)
	if err := reader.Fill(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	format, ok := container.Detect(reader.Data())
	if !ok || format.Name() != "matroska" {
		return nil, fmt.Errorf("pipeline: input does not look like Matroska/WebM")
	}

	return &DemuxContext{demuxer: mkv.NewDemuxer(), reader: reader, pool: p}, nil
}

// ReadHeaders parses the container's headers and returns the Movie. It
// must be called exactly once, before any ReadPacket call. ctx is checked
// once up front: the underlying reader has no native cancellation, so a
// context already canceled before the call is honored, but one canceled
// mid-parse does not interrupt a blocking Read on r.
func (c *DemuxContext) ReadHeaders(ctx context.Context) (mkv.Movie, error) {
	if err := ctx.Err(); err != nil {
		return mkv.Movie{}, err
	}
	return c.demuxer.ReadHeaders(c.reader)
}

// ReadPacket returns the next packet in the order its block appears in the
// container, or io.EOF at the end of the stream. The returned Packet's Data is backed by a
// dedicated pool.Memory buffer, independent of the reader's internal
// buffer, so it remains valid across any number of further ReadPacket
// calls; the caller owns it and should call Data.Release() once done
// (a no-op if the pool buffer has already been reclaimed by GC-visible
// means, since Owned/Borrowed spans never reach here post-realization).
//
// ctx is honored the same way as in ReadHeaders: checked before the call
// is made, so a pipeline driving many ReadPacket calls in a loop stops
// promptly between packets once ctx is canceled, even though a single
// in-flight Read on the underlying io.Reader cannot itself be interrupted
// unless that reader is already context-aware (e.g. derived from an
// http.Request or a net.Conn with a context-driven deadline).
func (c *DemuxContext) ReadPacket(ctx context.Context) (mkv.Packet, error) {
	if err := ctx.Err(); err != nil {
		return mkv.Packet{}, err
	}
	pkt, err := c.demuxer.ReadPacket(c.reader)
	if err != nil {
		return mkv.Packet{}, err
	}
	return c.realize(pkt), nil
}

// realize copies pkt.Data (which aliases memory the demuxer owns only
// until its next call) into a freshly allocated pool buffer, and rewrites
// pkt.Data to a Pooled span over it. This is the single point where the
// demuxer's internal zero-copy parsing meets the owned-lifetime contract a
// Packet promises its caller.
func (c *DemuxContext) realize(pkt mkv.Packet) mkv.Packet {
	n := pkt.Data.Len()
	if n == 0 {
		return pkt
	}
	mem := c.pool.Alloc(n)
	copy(mem.Raw(), pkt.Data.ToContiguous())
	span := pool.Pooled(mem, 0, n)
	mem.Release()
	pkt.Data = span
	return pkt
}
