package pipeline

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/mux"
	"github.com/Azunyan1111/mkvengine/internal/pool"
)

const defaultScratchSize = 4 * 1024

// MuxContext drives a mux.Muxer against an io.Writer, growing a pool-backed
// scratch buffer on NeedMore and realizing + vectored-writing each step's
// output span. It also tracks the cumulative number of content bytes
// written since Start, which is what lets the muxer's Cues tracking record
// a CueClusterPosition for each keyframe.
type MuxContext struct {
	muxer        *mux.Muxer
	writer       io.Writer
	pool         *pool.MemoryPool
	scratchSize  int
	bytesWritten uint64
}

// NewMuxContext wraps w for muxing with cfg.
func NewMuxContext(w io.Writer, p *pool.MemoryPool, cfg mux.Config) *MuxContext {
	return NewMuxContextWithScratchSize(w, p, cfg, defaultScratchSize)
}

// NewMuxContextWithScratchSize is NewMuxContext with an explicit initial
// scratch buffer size, for callers (the CLI's --scratch-initial-size flag)
// that want to size it up front rather than pay for a NeedMore retry on
// every step.
func NewMuxContextWithScratchSize(w io.Writer, p *pool.MemoryPool, cfg mux.Config, initialScratchSize int) *MuxContext {
	if initialScratchSize <= 0 {
		initialScratchSize = defaultScratchSize
	}
	return &MuxContext{
		muxer:       mux.NewMuxer(cfg),
		writer:      w,
		pool:        p,
		scratchSize: initialScratchSize,
	}
}

// Start writes the container's headers for movie. ctx is checked before
// writing begins; like DemuxContext, it cannot interrupt a single in-flight
// Write call on an io.Writer that isn't itself context-aware, but it stops
// a caller's header/packet/trailer loop promptly between steps. The header
// bytes it writes are counted the same as any other step, since
// CueClusterPosition is computed relative to the Segment's first content
// byte (see muxer.SegmentDataOffset), not the stream's first byte, and the
// EBMLHeader plus Segment ID/size bytes Start writes sit before that point.
func (c *MuxContext) Start(ctx context.Context, movie mkv.Movie) error {
	return c.step(ctx, func(scratch *pool.Scratch) (pool.Span, error) {
		return c.muxer.Start(scratch, movie)
	})
}

// Write emits one packet.
func (c *MuxContext) Write(ctx context.Context, pkt mkv.Packet) error {
	offset := c.bytesWritten - c.muxer.SegmentDataOffset()
	return c.step(ctx, func(scratch *pool.Scratch) (pool.Span, error) {
		return c.muxer.Write(scratch, pkt, offset)
	})
}

// Stop finalizes the stream, writing trailing Cues if any were tracked.
func (c *MuxContext) Stop(ctx context.Context) error {
	return c.step(ctx, func(scratch *pool.Scratch) (pool.Span, error) {
		return c.muxer.Stop(scratch)
	})
}

// step runs fn against a freshly allocated scratch buffer, retrying with a
// larger buffer whenever fn reports NeedMore, then realizes and
// vectored-writes whatever span it produced, counting the bytes written
// against bytesWritten so the next Write can derive a Segment-relative
// cluster offset.
func (c *MuxContext) step(ctx context.Context, fn func(*pool.Scratch) (pool.Span, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		mem := c.pool.Alloc(c.scratchSize)
		scratch := pool.NewScratch(mem)

		span, err := fn(scratch)
		if err != nil {
			mem.Release()
			var needMore *pool.NeedMoreError
			if errors.As(err, &needMore) {
				c.scratchSize += needMore.Additional
				continue
			}
			return err
		}

		realized := span.RealizeWith(mem)
		mem.Release()
		if realized.IsEmpty() {
			return nil
		}

		_, werr := net.Buffers(realized.IOSlices()).WriteTo(c.writer)
		n := realized.Len()
		realized.Release()
		if werr != nil {
			return werr
		}
		c.bytesWritten += uint64(n)
		return nil
	}
}
