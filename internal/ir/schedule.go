package ir

// Schedule is a block's linear instruction order. Earlier pipeline
// families express this as a doubly-linked list threaded through the node
// itself (prev/next pointers); spec.md §9 calls that out for
// re-architecture into a side-table keyed by node identity, so Schedule
// instead owns a plain slice plus a position index, entirely separate
// from Node. This also makes "insert before/after" and "is this block
// scheduled yet" questions answerable without ever touching the Node
// struct.
type Schedule struct {
	order []*Node
	pos   map[NodeID]int // node id -> index in order; rebuilt lazily after splices
	dirty bool
}

func newSchedule() *Schedule {
	return &Schedule{pos: make(map[NodeID]int)}
}

// Len reports how many nodes are currently scheduled.
func (s *Schedule) Len() int { return len(s.order) }

// Order returns the current schedule in order. Callers must not mutate
// the returned slice.
func (s *Schedule) Order() []*Node { return s.order }

// Position returns n's index in the schedule, or -1 if n has not been
// scheduled (or has since been removed).
func (s *Schedule) Position(n *Node) int {
	s.reindex()
	if i, ok := s.pos[n.id]; ok {
		return i
	}
	return -1
}

// Scheduled reports whether n currently has a position in this schedule.
func (s *Schedule) Scheduled(n *Node) bool { return s.Position(n) >= 0 }

// Reset discards the current schedule entirely, used when a block is
// re-scheduled from scratch (the list scheduler rebuilds order rather
// than patching it incrementally).
func (s *Schedule) Reset() {
	s.order = s.order[:0]
	for k := range s.pos {
		delete(s.pos, k)
	}
	s.dirty = false
}

// Append adds n at the end of the schedule, the common case for both the
// list scheduler (spec.md §4.D step 4) and simple sequential construction.
func (s *Schedule) Append(n *Node) {
	s.pos[n.id] = len(s.order)
	s.order = append(s.order, n)
}

// InsertBefore splices n into the schedule immediately before mark,
// used by the spiller to place Reload nodes and by the constraint handler
// to place Perm nodes (spec.md §4.C, §4.F). mark must already be
// scheduled.
func (s *Schedule) InsertBefore(n, mark *Node) {
	i := s.Position(mark)
	if i < 0 {
		panic("BUG: ir.Schedule.InsertBefore: mark is not scheduled")
	}
	s.splice(i, n)
}

// InsertAfter splices n into the schedule immediately after mark, used to
// place Spill nodes right after the definition they save (spec.md §4.C).
// mark must already be scheduled.
func (s *Schedule) InsertAfter(n, mark *Node) {
	i := s.Position(mark)
	if i < 0 {
		panic("BUG: ir.Schedule.InsertAfter: mark is not scheduled")
	}
	s.splice(i+1, n)
}

func (s *Schedule) splice(at int, n *Node) {
	s.order = append(s.order, nil)
	copy(s.order[at+1:], s.order[at:])
	s.order[at] = n
	s.dirty = true
}

// Remove unlinks n from the schedule. No pipeline stage calls it; the
// spill environment does not cull dead reloads.
func (s *Schedule) Remove(n *Node) {
	i := s.Position(n)
	if i < 0 {
		panic("BUG: ir.Schedule.Remove: node is not scheduled")
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	s.dirty = true
}

func (s *Schedule) reindex() {
	if !s.dirty && len(s.pos) == len(s.order) {
		return
	}
	for k := range s.pos {
		delete(s.pos, k)
	}
	for i, n := range s.order {
		s.pos[n.id] = i
	}
	s.dirty = false
}
