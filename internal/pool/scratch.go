package pool

import "fmt"

// NeedMoreError is returned by Scratch writes when the backing Memory's
// capacity is exhausted. The pipeline context reacts to it by allocating a
// larger Memory and retrying the whole muxer step, per the mux loop in the
// pipeline context design.
type NeedMoreError struct {
	// Additional is how many more bytes of capacity the caller should add
	// before retrying.
	Additional int
}

func (e *NeedMoreError) Error() string {
	return fmt.Sprintf("pool: scratch needs %d more bytes of capacity", e.Additional)
}

// MarkUsed records that n bytes of m's backing array are now meaningful
// content, without touching its reference count. Scratch uses this to keep
// Memory.Len() in sync with how much it has written so RealizeWith's bounds
// check passes.
func (m *Memory) MarkUsed(n int) {
	if n > m.used {
		m.used = n
	}
}

// Raw returns the full backing array of m, up to its capacity, regardless
// of how much is marked used. Scratch writes directly into this.
func (m *Memory) Raw() []byte {
	return m.buf[:cap(m.buf)]
}

// Scratch is a growable-within-capacity write cursor over a single Memory.
// A muxer step writes its output through a Scratch and receives back Spans
// built from Pending offsets into it; the pipeline context later calls
// Span.RealizeWith on the very same Memory to turn those offsets into
// shared, reference-counted references once the step has committed.
type Scratch struct {
	mem *Memory
	pos int
}

// NewScratch wraps mem for writing. mem's existing used length (if any) is
// preserved; writes begin at position zero into its raw backing array,
// which is safe because a fresh Scratch is always built over a freshly
// allocated (or reused, now-idle) Memory.
func NewScratch(mem *Memory) *Scratch {
	return &Scratch{mem: mem}
}

// Memory returns the backing Memory.
func (s *Scratch) Memory() *Memory {
	return s.mem
}

// Write implements io.Writer, appending p at the current cursor position.
// It returns a *NeedMoreError (not a plain io.ErrShortWrite) when the
// backing Memory's capacity would be exceeded.
func (s *Scratch) Write(p []byte) (int, error) {
	raw := s.mem.Raw()
	if s.pos+len(p) > len(raw) {
		return 0, &NeedMoreError{Additional: s.pos + len(p) - len(raw)}
	}
	copy(raw[s.pos:], p)
	s.pos += len(p)
	s.mem.MarkUsed(s.pos)
	return len(p), nil
}

// WriteByte implements io.ByteWriter.
func (s *Scratch) WriteByte(b byte) error {
	_, err := s.Write([]byte{b})
	return err
}

// Reserve guarantees at least n more bytes of headroom are available before
// the next write, surfacing a *NeedMoreError early rather than mid-write.
func (s *Scratch) Reserve(n int) error {
	raw := s.mem.Raw()
	if s.pos+n > len(raw) {
		return &NeedMoreError{Additional: s.pos + n - len(raw)}
	}
	return nil
}

// WriteSpan invokes fn with the scratch itself, then returns a Pending Span
// covering exactly the bytes fn wrote (and nothing else). If fn returns an
// error (typically a *NeedMoreError bubbled up from a nested Write), the
// error is returned and no Span is produced.
func (s *Scratch) WriteSpan(fn func(w *Scratch) error) (Span, error) {
	start := s.pos
	if err := fn(s); err != nil {
		return Span{}, err
	}
	return Pending(start, s.pos), nil
}
