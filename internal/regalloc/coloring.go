package regalloc

import (
	"sort"

	"github.com/kestrel-lang/backend/internal/ir"
)

// borderEventKind distinguishes a def from a use within a block's
// border list (spec.md §4.G step 1).
type borderEventKind uint8

const (
	borderDef borderEventKind = iota
	borderUse
)

type borderEvent struct {
	kind borderEventKind
	v    *ir.Node
	tick int // -1 for the synthetic live-in def at block start
}

// Colorer is the chordal register allocator (spec.md §4.G): it walks the
// dominator tree and, within each block, a border list of def/use events
// in forward schedule order, greedily first-fit coloring values. This
// replaces the teacher's Chaitin-style iterative graph-coloring allocator
// (backend/regalloc/coloring.go): that algorithm pops nodes with degree
// below k onto a stack and colors in reverse, which is the right
// approach when no prior pass has bounded pressure to k; this pipeline's
// Belady spiller already guarantees pressure <= k everywhere; spec.md
// §4.G's perfect-elimination-ordering walk is the correct (and cheaper)
// match for that precondition.
type Colorer struct {
	g       *ir.Graph
	class   ir.ClassID
	regs    []int32 // allocatable register indices, ascending
	classOf func(ir.Mode) ir.ClassID
}

// NewColorer creates a colorer for one register class; regs is the
// class's allocatable physical register indices in the lowest-index-
// first order the greedy rule scans (spec.md §4.G step 3).
func NewColorer(g *ir.Graph, class ir.ClassID, regs []int32, classOf func(ir.Mode) ir.ClassID) *Colorer {
	return &Colorer{g: g, class: class, regs: regs, classOf: classOf}
}

func (c *Colorer) relevant(n *ir.Node) bool {
	return n.Mode.RegRelevant() && c.classOf(n.Mode) == c.class
}

// buildBorderList implements spec.md §4.G step 1.
func (c *Colorer) buildBorderList(b *ir.Block, liveIn map[*ir.Node]struct{}) []borderEvent {
	var events []borderEvent

	liveInSorted := make([]*ir.Node, 0, len(liveIn))
	for v := range liveIn {
		liveInSorted = append(liveInSorted, v)
	}
	sort.Slice(liveInSorted, func(i, j int) bool { return liveInSorted[i].ID() < liveInSorted[j].ID() })
	for _, v := range liveInSorted {
		events = append(events, borderEvent{kind: borderDef, v: v, tick: -1})
	}

	order := b.Schedule().Order()
	lastUseTick := make(map[*ir.Node]int)
	for tick, n := range order {
		for _, in := range n.Inputs {
			if c.relevant(in) {
				lastUseTick[in] = tick
			}
		}
	}

	for tick, n := range order {
		if c.relevant(n) {
			events = append(events, borderEvent{kind: borderDef, v: n, tick: tick})
		}
		for v, lt := range lastUseTick {
			if lt == tick {
				events = append(events, borderEvent{kind: borderUse, v: v, tick: tick})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		ti, tj := events[i].tick, events[j].tick
		if ti != tj {
			return ti < tj
		}
		// At the same tick, retire uses before committing the new def's
		// color so a def can legally reuse a register its own last-used
		// operand just vacated.
		return events[i].kind == borderUse && events[j].kind == borderDef
	})
	return events
}

// colorSet is a small bitset over physical register indices, sized to
// the 64-register ceiling this target's classes never approach.
type colorSet uint64

func (s colorSet) has(r int32) bool   { return s&(1<<uint(r)) != 0 }
func (s *colorSet) set(r int32)       { *s |= 1 << uint(r) }
func (s *colorSet) clear(r int32)     { *s &^= 1 << uint(r) }

// Run colors every block's class-relevant values in dominator-tree
// preorder (spec.md §5). liveInFn supplies each block's live-in set
// (component B). A value whose AssignedReg the constraint handler already
// fixed (spec.md §4.F) is only validated, not chosen.
func (c *Colorer) Run(liveInFn func(*ir.Block) map[*ir.Node]struct{}) {
	colorOf := make(map[*ir.Node]int32)
	for _, b := range c.g.DomPreorder() {
		c.colorBlock(b, liveInFn(b), colorOf)
	}
}

func (c *Colorer) colorBlock(b *ir.Block, liveIn map[*ir.Node]struct{}, colorOf map[*ir.Node]int32) {
	var colors colorSet
	live := make(map[*ir.Node]struct{}, len(liveIn))
	for v := range liveIn {
		if r, ok := colorOf[v]; ok {
			colors.set(r)
			live[v] = struct{}{}
		}
	}

	for _, ev := range c.buildBorderList(b, liveIn) {
		switch ev.kind {
		case borderUse:
			if r, ok := colorOf[ev.v]; ok {
				colors.clear(r)
			}
			delete(live, ev.v)
		case borderDef:
			if ev.tick == -1 {
				continue // live-in synthetic def already seeded above
			}
			info := c.g.Backend(ev.v)
			if info.AssignedReg >= 0 {
				if colors.has(info.AssignedReg) {
					panic("BUG: regalloc.Colorer: precolored value conflicts with a live color (coloring infeasible)")
				}
				colorOf[ev.v] = info.AssignedReg
				colors.set(info.AssignedReg)
			} else {
				if ev.v.Op == ir.OpCopy && len(ev.v.Inputs) == 1 {
					if src, ok := colorOf[ev.v.Inputs[0]]; ok {
						info.PreferredReg = src
					}
				}
				r, ok := c.preferredOrFree(info, colors)
				if !ok {
					panic("BUG: regalloc.Colorer: no free register for def (spiller failed to bound pressure to k)")
				}
				info.AssignedReg = r
				colorOf[ev.v] = r
				colors.set(r)
			}
			live[ev.v] = struct{}{}
		}
	}
}

// preferredOrFree implements the copy-coalescing hint (SPEC_FULL.md
// "supplemented features"): try info.PreferredReg first, falling back to
// the ordinary lowest-index-first rule when the hint is absent or
// already taken.
func (c *Colorer) preferredOrFree(info *ir.BackendInfo, colors colorSet) (int32, bool) {
	if info.PreferredReg >= 0 && !colors.has(info.PreferredReg) {
		return info.PreferredReg, true
	}
	return c.firstFree(colors)
}

func (c *Colorer) firstFree(colors colorSet) (int32, bool) {
	for _, r := range c.regs {
		if !colors.has(r) {
			return r, true
		}
	}
	return 0, false
}
