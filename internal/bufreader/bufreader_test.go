package bufreader

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type opKind int

const (
	opAssert opKind = iota
	opSeek
	opFill
	opConsume
)

type op struct {
	kind    opKind
	assert  string
	offset  int64
	whence  int
	consume int
}

func assertOp(b string) op   { return op{kind: opAssert, assert: b} }
func seekCurrent(n int64) op { return op{kind: opSeek, offset: n, whence: io.SeekCurrent} }
func fillOp() op             { return op{kind: opFill} }
func consumeOp(n int) op     { return op{kind: opConsume, consume: n} }

func runOps(t *testing.T, r *Reader, ops []op) {
	t.Helper()
	for _, o := range ops {
		switch o.kind {
		case opAssert:
			require.Equal(t, o.assert, string(r.Data()))
		case opSeek:
			_, err := r.Seek(o.offset, o.whence)
			require.NoError(t, err)
		case opFill:
			require.NoError(t, r.Fill())
		case opConsume:
			r.Consume(o.consume)
		}
	}
}

func TestGrowableBufferedReaderWraparound(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	r := New(src, 5)

	ops := []op{
		fillOp(),
		assertOp("01234"),
		seekCurrent(1),
		assertOp("1234"),
		fillOp(),
		assertOp("12345"),
		seekCurrent(5),
		assertOp(""),
		fillOp(),
		assertOp("6789"),
		seekCurrent(-2),
		assertOp(""),
		fillOp(),
		assertOp("45678"),
	}
	runOps(t, r, ops)
}

func TestGrowableBufferedReaderEmptyBeforeFill(t *testing.T) {
	src := bytes.NewReader([]byte("abc"))
	r := New(src, 10)
	require.Equal(t, "", string(r.Data()))
}

func TestGrowableBufferedReaderSeekCurrent(t *testing.T) {
	src := bytes.NewReader([]byte("abc"))
	r := New(src, 10)

	ops := []op{
		fillOp(),
		assertOp("abc"),
		seekCurrent(1),
		assertOp("bc"),
		seekCurrent(1),
		assertOp("c"),
		seekCurrent(1),
		assertOp(""),
		seekCurrent(-3),
		assertOp("abc"),
	}
	runOps(t, r, ops)
}

func TestGrowableBufferedReaderConsume(t *testing.T) {
	src := bytes.NewReader([]byte("abc"))
	r := New(src, 10)

	ops := []op{
		fillOp(),
		assertOp("abc"),
		consumeOp(1),
		assertOp("bc"),
		consumeOp(1),
		assertOp("c"),
		consumeOp(1),
		assertOp(""),
	}
	runOps(t, r, ops)
}

func TestEnsureAdditionalGrowsBuffer(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{'x'}, 100))
	r := New(src, 4)

	require.NoError(t, r.Fill())
	require.Equal(t, 4, r.Len())

	r.EnsureAdditional(20)
	require.NoError(t, r.Fill())
	require.GreaterOrEqual(t, r.Len(), 5)
}

func TestFillReturnsEOF(t *testing.T) {
	src := bytes.NewReader([]byte("ab"))
	r := New(src, 2)

	require.NoError(t, r.Fill())
	require.Equal(t, "ab", string(r.Data()))

	r.Consume(2)
	err := r.Fill()
	require.ErrorIs(t, err, io.EOF)
}
