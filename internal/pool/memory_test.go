package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPoolCappedReuse(t *testing.T) {
	p := NewMemoryPool(MemoryPoolConfig{MaxAllocations: 1, DefaultCapacity: 1024})

	first, ok := p.TryAlloc(1024)
	require.True(t, ok)
	require.GreaterOrEqual(t, first.Capacity(), 1024)

	_, ok = p.TryAlloc(1024)
	require.False(t, ok, "pool is capped at one allocation and first is still held")

	first.Release()

	second, ok := p.TryAlloc(2048)
	require.True(t, ok)
	require.GreaterOrEqual(t, second.Capacity(), 2048)
}

func TestMemoryPoolRecyclesWithoutReallocation(t *testing.T) {
	p := NewMemoryPool(MemoryPoolConfig{DefaultCapacity: 256})

	m := p.Alloc(128)
	backing := m.Capacity()
	m.Release()

	reused := p.Alloc(128)
	require.Equal(t, backing, reused.Capacity(), "reuse of a returned buffer must not reallocate")
}

func TestMemoryPoolGrowsInPlaceWhenCapped(t *testing.T) {
	p := NewMemoryPool(MemoryPoolConfig{MaxAllocations: 1, DefaultCapacity: 64})

	m := p.Alloc(64)
	m.Release()

	grown := p.Alloc(4096)
	require.GreaterOrEqual(t, grown.Capacity(), 4096)
}

func TestMemoryPoolBlockingAllocWaitsForRelease(t *testing.T) {
	p := NewMemoryPool(MemoryPoolConfig{MaxAllocations: 1, DefaultCapacity: 32})

	first := p.Alloc(32)

	done := make(chan struct{})
	go func() {
		second := p.Alloc(32)
		require.NotNil(t, second)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("blocking Alloc returned before the first buffer was released")
	default:
	}

	first.Release()
	<-done
}
