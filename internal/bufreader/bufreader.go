// Package bufreader implements a growable, partial-consumption buffer over
// any io.Reader. Unlike bufio.Reader, callers can ask for more headroom
// than the buffer currently has (EnsureAdditional) and the buffer grows to
// fit, and consumed-but-unread bytes are compacted in place rather than
// discarded a fixed chunk at a time. This is what lets the EBML codec peek
// at a header, discover it needs more bytes than are buffered, and ask for
// exactly that much more without losing its place.
package bufreader

import (
	"errors"
	"io"
)

// ErrNotSeekable is returned by Seek when the underlying reader does not
// implement io.Seeker and the requested seek cannot be satisfied from the
// already-buffered window.
var ErrNotSeekable = errors.New("bufreader: underlying reader is not seekable")

// Reader is a growable buffered reader with explicit fill/consume control.
type Reader struct {
	src io.Reader
	buf []byte

	// bufPos is the absolute stream offset of buf[0].
	bufPos int64
	// pos and end delimit the unconsumed window within buf.
	pos, end int
}

// New wraps src in a Reader with an initial buffer of the given capacity.
func New(src io.Reader, capacity int) *Reader {
	return &Reader{src: src, buf: make([]byte, capacity)}
}

// Data returns the currently buffered, unconsumed bytes. The returned slice
// aliases the Reader's internal buffer and is only valid until the next
// Fill, EnsureAdditional, Consume, or Seek call.
func (r *Reader) Data() []byte {
	return r.buf[r.pos:r.end]
}

// Len returns the number of unconsumed bytes currently buffered.
func (r *Reader) Len() int {
	return r.end - r.pos
}

// Offset returns the absolute stream position of the first unconsumed byte.
func (r *Reader) Offset() int64 {
	return r.bufPos + int64(r.pos)
}

// Consume marks amt bytes as read, advancing past them. It is a no-op past
// the end of the buffered window.
func (r *Reader) Consume(amt int) {
	r.pos += amt
	if r.pos > r.end {
		r.pos = r.end
	}
}

// EnsureAdditional grows (or compacts) the buffer so that at least `more`
// bytes of headroom exist past the currently buffered data, without
// discarding anything unconsumed.
func (r *Reader) EnsureAdditional(more int) {
	r.ensureCapacity(r.Len() + more)
}

func (r *Reader) ensureCapacity(length int) {
	capacityLeft := len(r.buf) - r.pos
	if capacityLeft >= length {
		return
	}
	if length <= len(r.buf) {
		r.compact()
		return
	}
	grown := make([]byte, length)
	copy(grown, r.buf[r.pos:r.end])
	r.bufPos += int64(r.pos)
	r.end -= r.pos
	r.pos = 0
	r.buf = grown
}

// compact slides the unconsumed window down to buf[0], reclaiming the space
// occupied by already-consumed bytes.
func (r *Reader) compact() {
	if r.end-r.pos > 0 {
		copy(r.buf, r.buf[r.pos:r.end])
	}
	r.bufPos += int64(r.pos)
	r.end -= r.pos
	r.pos = 0
}

// Fill reads more bytes from the underlying reader into whatever headroom
// the buffer currently has past its unconsumed window, compacting first if
// needed. It returns io.EOF if the underlying reader is exhausted. If the
// buffer's unconsumed window already spans its entire capacity, Fill is a
// no-op: callers must EnsureAdditional first.
func (r *Reader) Fill() error {
	if r.pos == 0 && r.end == len(r.buf) {
		return nil
	}
	r.compact()

	n, err := r.src.Read(r.buf[r.end:])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return err
	}
	r.end += n
	return nil
}

// Discard consumes n bytes from the stream without exposing them to the
// caller, reading from the underlying reader as needed. Unlike Seek, this
// works whether or not the underlying reader implements io.Seeker, which
// matters for a non-seekable source such as a live RTP feed.
func (r *Reader) Discard(n int) error {
	for n > 0 {
		if r.Len() == 0 {
			if err := r.Fill(); err != nil {
				return err
			}
			continue
		}
		take := r.Len()
		if take > n {
			take = n
		}
		r.Consume(take)
		n -= take
	}
	return nil
}

// Seek repositions the reader. A seek that lands within the already
// buffered window is satisfied without touching the underlying reader;
// otherwise it delegates to the underlying reader's io.Seeker, discarding
// the buffer, and returns ErrNotSeekable if the underlying reader cannot
// seek.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		absPos := r.bufPos + int64(r.pos)
		absEnd := r.bufPos + int64(r.end)
		newPos := absPos + offset

		switch {
		case newPos > absEnd:
			return r.seekUnderlying(newPos-absEnd, io.SeekCurrent)
		case newPos < r.bufPos:
			return r.seekUnderlying(offset-int64(r.end-r.pos), io.SeekCurrent)
		default:
			r.pos = int(newPos - r.bufPos)
			return newPos, nil
		}
	}
	return r.seekUnderlying(offset, whence)
}

func (r *Reader) seekUnderlying(offset int64, whence int) (int64, error) {
	seeker, ok := r.src.(io.Seeker)
	if !ok {
		return 0, ErrNotSeekable
	}
	pos, err := seeker.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	r.bufPos = pos
	r.pos = 0
	r.end = 0
	return pos, nil
}
