package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpanSlice(t *testing.T) {
	cases := []struct {
		name     string
		frags    [][]byte
		start    int
		end      int
		expected string
	}{
		{"full", [][]byte{[]byte("abc"), []byte("def"), []byte("ghj")}, 0, 9, "abcdefghj"},
		{"mid", [][]byte{[]byte("abc"), []byte("def"), []byte("ghj")}, 1, 8, "bcdefgh"},
		{"prefix", [][]byte{[]byte("abc"), []byte("def"), []byte("ghj")}, 0, 1, "a"},
		{"inclusive-ish", [][]byte{[]byte("abc"), []byte("def"), []byte("ghj")}, 3, 7, "defg"},
		{"exact-fragment", [][]byte{[]byte("abc"), []byte("def"), []byte("ghj")}, 3, 6, "def"},
		{"uneven-full", [][]byte{[]byte("a"), []byte("def"), []byte("j")}, 0, 5, "adefj"},
		{"uneven-mid", [][]byte{[]byte("a"), []byte("def"), []byte("j")}, 1, 4, "def"},
		{"uneven-suffix", [][]byte{[]byte("a"), []byte("def"), []byte("j")}, 1, 5, "defj"},
		{"uneven-prefix", [][]byte{[]byte("a"), []byte("def"), []byte("j")}, 0, 4, "adef"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frags := make([]Span, len(tc.frags))
			for i, f := range tc.frags {
				frags[i] = Borrowed(f)
			}
			span := Concat(frags...)

			sliced := span.Slice(tc.start, tc.end)
			require.Equal(t, tc.expected, string(sliced.ToContiguous()))

			// original span is untouched
			require.Equal(t, joinFrags(tc.frags), string(span.ToContiguous()))
		})
	}
}

func joinFrags(frags [][]byte) string {
	var out []byte
	for _, f := range frags {
		out = append(out, f...)
	}
	return string(out)
}

func TestSpanRealizeAndUnrealize(t *testing.T) {
	p := NewMemoryPool(MemoryPoolConfig{DefaultCapacity: 64})
	mem := p.Alloc(16)
	copy(mem.Raw(), []byte("0123456789abcdef"))
	mem.MarkUsed(16)

	pending := Pending(2, 6)
	realized := pending.RealizeWith(mem)
	require.Equal(t, "2345", string(realized.ToContiguous()))

	borrowed := Borrowed(mem.Bytes()[8:12])
	back := borrowed.UnrealizeFrom(mem)
	reRealized := back.RealizeWith(mem)
	require.Equal(t, "89ab", string(reRealized.ToContiguous()))
}

func TestSpanVisitPanicsOnPending(t *testing.T) {
	pending := Pending(0, 4)
	require.Panics(t, func() {
		pending.Visit(func([]byte) {})
	})
}

func TestSpanLenAndEmpty(t *testing.T) {
	s := Concat(Borrowed([]byte("ab")), Borrowed([]byte("cde")))
	require.Equal(t, 5, s.Len())
	require.False(t, s.IsEmpty())

	var zero Span
	require.True(t, zero.IsEmpty())
}
