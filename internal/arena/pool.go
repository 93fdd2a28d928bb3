// Package arena provides page-based bump allocation for many
// identically-typed records; ir.Graph allocates its nodes from a Pool.
// Allocating a []T backed
// by stable pages lets callers hold *T across further Allocate calls without
// the pointer invalidation a growing slice would cause.
package arena

// pageSize is the number of elements per page. Chosen to be large enough
// that per-block or per-function allocation rarely spans more than one
// page, matching the typical block/function size this backend targets.
const pageSize = 128

// Pool is a typed arena: a sequence of fixed-size pages of T. Allocate
// hands out a stable pointer into the current page, growing by a new page
// when the current one fills. Reset reclaims all pages for reuse without
// freeing them, so a Pool can be reused across graphs/blocks without
// repeated heap allocation.
type Pool[T any] struct {
	pages     []*[pageSize]T
	allocated int // number of live pages (<= len(pages); extra pages are kept, unused, after Reset)
	index     int // index into the current page's array; pageSize means "need a new page"
}

// NewPool creates an empty Pool ready for use.
func NewPool[T any]() Pool[T] {
	return Pool[T]{index: pageSize}
}

// Allocated reports how many T values have been handed out since the last
// Reset.
func (p *Pool[T]) Allocated() int {
	if p.allocated == 0 {
		return 0
	}
	return (p.allocated-1)*pageSize + p.index
}

// Allocate returns a pointer to a fresh zero-valued T, growing the arena
// with a new page if the current one is exhausted.
func (p *Pool[T]) Allocate() *T {
	if p.index == pageSize {
		if p.allocated < len(p.pages) {
			// Reuse a page retained across a Reset.
			p.allocated++
		} else {
			p.pages = append(p.pages, new([pageSize]T))
			p.allocated++
		}
		p.index = 0
	}
	ret := &p.pages[p.allocated-1][p.index]
	p.index++
	return ret
}

// View returns a pointer to the i-th allocated element, in allocation
// order. Panics if i is out of range.
func (p *Pool[T]) View(i int) *T {
	if i < 0 || i >= p.Allocated() {
		panic("BUG: arena.Pool.View index out of range")
	}
	page, idx := i/pageSize, i%pageSize
	return &p.pages[page][idx]
}

// Reset zeroes all allocated entries and rewinds the arena so the next
// Allocate call starts a fresh page. Pages themselves are retained for
// reuse rather than released, amortizing allocation across graphs.
func (p *Pool[T]) Reset() {
	var zero T
	for i := 0; i < p.allocated; i++ {
		page := p.pages[i]
		for j := range page {
			page[j] = zero
		}
	}
	p.allocated = 0
	p.index = pageSize
}
