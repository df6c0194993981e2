// Package stepio defines the transient signals of the incrementally-steppable
// EBML codec and the demuxer that drives it: "I need more input" and "please
// seek". Neither is a real error;
// both are returned as ordinary Go errors so callers can propagate them with
// %w and detect them with errors.As, but a pipeline context treats them as
// retry instructions rather than failures.
package stepio

import (
	"fmt"
	"io"
)

// NeedMore signals that at least N additional bytes must be made available
// (via a buffered reader's Fill, or a scratch buffer's capacity growing)
// before the caller can make further progress. It is not a failure.
type NeedMore struct {
	N int
}

func (e *NeedMore) Error() string {
	return fmt.Sprintf("stepio: need %d more bytes", e.N)
}

// Seek signals that the caller must reposition its input (or output, for
// the muxer's in-place-patch case, unused by the Matroska muxer today)
// before retrying. Offset is interpreted per Whence exactly as io.Seeker.
type Seek struct {
	Offset int64
	Whence int
}

func (e *Seek) Error() string {
	return fmt.Sprintf("stepio: seek to offset %d (whence %d)", e.Offset, e.Whence)
}

// EndOfStream is the sentinel returned by a demuxer at normal stream
// termination. Every call site checks for it with errors.Is against the
// standard io.EOF rather than a bespoke sentinel, matching how every other
// Go reader signals end-of-stream.
var EndOfStream = io.EOF
