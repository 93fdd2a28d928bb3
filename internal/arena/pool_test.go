package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAllocateAcrossPages(t *testing.T) {
	p := NewPool[int]()
	const n = pageSize*2 + 7
	ptrs := make([]*int, n)
	for i := 0; i < n; i++ {
		ptrs[i] = p.Allocate()
		*ptrs[i] = i
	}
	require.Equal(t, n, p.Allocated())
	for i := 0; i < n; i++ {
		require.Equal(t, i, *ptrs[i])
		require.Equal(t, ptrs[i], p.View(i))
	}
}

func TestPoolResetReusesPages(t *testing.T) {
	p := NewPool[int]()
	for i := 0; i < pageSize+3; i++ {
		v := p.Allocate()
		*v = 42
	}
	pagesBefore := len(p.pages)
	p.Reset()
	require.Equal(t, 0, p.Allocated())

	v := p.Allocate()
	require.Equal(t, 0, *v, "reset must zero reused pages")
	require.Equal(t, pagesBefore, len(p.pages), "reset must not discard pages")
}

func TestPoolViewOutOfRangePanics(t *testing.T) {
	p := NewPool[int]()
	p.Allocate()
	require.Panics(t, func() { p.View(5) })
}
