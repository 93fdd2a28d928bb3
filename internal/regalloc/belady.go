package regalloc

import (
	"sort"
	"strconv"

	"github.com/kestrel-lang/backend/internal/ir"
)

// workingSet is the bounded (size <= k) set of values the Belady spiller
// currently assumes reside in registers at a program point (spec.md §3
// "Working set"), recorded per block in Belady.wsStart/wsEnd for border
// reconciliation.
type workingSet struct {
	vals map[*ir.Node]struct{}
}

func newWorkingSet() *workingSet { return &workingSet{vals: make(map[*ir.Node]struct{})} }

func (w *workingSet) clone() *workingSet {
	c := newWorkingSet()
	for v := range w.vals {
		c.vals[v] = struct{}{}
	}
	return c
}

func (w *workingSet) has(v *ir.Node) bool { _, ok := w.vals[v]; return ok }
func (w *workingSet) add(v *ir.Node)      { w.vals[v] = struct{}{} }
func (w *workingSet) remove(v *ir.Node)   { delete(w.vals, v) }
func (w *workingSet) len() int            { return len(w.vals) }

func (w *workingSet) sortedByDistance(o *Oracle, at ProgramPoint, skipAtPoint bool) []*ir.Node {
	out := make([]*ir.Node, 0, len(w.vals))
	for v := range w.vals {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		di := o.NextUse(at, out[i], skipAtPoint)
		dj := o.NextUse(at, out[j], skipAtPoint)
		if di != dj {
			return di < dj
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Belady is the per-register-class spiller state, exposing the result
// every other component needs: each block's start/end working set, for
// border reconciliation (spec.md §4.E step 5) and as the initial
// register-pressure context the constraint handler and colorer assume
// has already been respected.
type Belady struct {
	g       *ir.Graph
	class   ir.ClassID
	k       int
	oracle  *Oracle
	env     *Env
	wsStart map[ir.BlockID]*workingSet
	wsEnd   map[ir.BlockID]*workingSet
	used    map[ir.BlockID]map[*ir.Node]struct{}
	visited map[ir.BlockID]bool
	visiting map[ir.BlockID]bool
	classOf func(ir.Mode) ir.ClassID
}

// NewBelady creates a spiller for one register class with register
// budget k, driven by oracle (component B) and accumulating requests
// into env (component C). classOf maps a node's Mode to its register
// class (internal/isa/x86.ClassOf in production use).
func NewBelady(g *ir.Graph, class ir.ClassID, k int, oracle *Oracle, env *Env, classOf func(ir.Mode) ir.ClassID) *Belady {
	return &Belady{
		g: g, class: class, k: k, oracle: oracle, env: env, classOf: classOf,
		wsStart:  make(map[ir.BlockID]*workingSet),
		wsEnd:    make(map[ir.BlockID]*workingSet),
		used:     make(map[ir.BlockID]map[*ir.Node]struct{}),
		visited:  make(map[ir.BlockID]bool),
		visiting: make(map[ir.BlockID]bool),
	}
}

// Run simulates every block in the graph's reverse-postorder, with the
// single-predecessor optimization (spec.md §5) recursing eagerly into an
// unvisited sole predecessor before continuing — guarded by a visiting
// set so a cycle (malformed CFG) is a fatal assertion rather than
// infinite recursion (spec.md §9).
func (bd *Belady) Run() {
	for _, b := range bd.g.ReversePostOrder() {
		bd.visitBlock(b)
	}
	bd.reconcileBorders()
}

func (bd *Belady) visitBlock(b *ir.Block) {
	if bd.visited[b.ID()] {
		return
	}
	if bd.visiting[b.ID()] {
		panic("BUG: regalloc.Belady: cycle detected in single-predecessor descent for block " + blockLabel(b))
	}
	bd.visiting[b.ID()] = true

	if len(b.Preds) == 1 {
		bd.visitBlock(b.Preds[0])
	}

	bd.simulateBlock(b)

	bd.visiting[b.ID()] = false
	bd.visited[b.ID()] = true
}

// simulateBlock runs spec.md §4.E steps 1-4 for one block.
func (bd *Belady) simulateBlock(b *ir.Block) {
	ws := bd.startingWorkingSet(b)
	bd.wsStart[b.ID()] = ws.clone()
	bd.used[b.ID()] = make(map[*ir.Node]struct{})

	order := b.Schedule().Order()
	cursor := 0
	for idx, n := range order {
		if n.Op.IsProj() {
			continue // grouped with its tuple-producing node's def step
		}
		point := ProgramPoint{Block: b, Tick: cursor}

		uses := bd.classRelevantInputs(n)
		for _, v := range uses {
			bd.used[b.ID()][v] = struct{}{}
		}
		bd.displace(b, ws, point, uses, true, n)

		defs := bd.classRelevantOutputs(n, order, idx)
		bd.displace(b, ws, point, defs, false, n)

		cursor++
	}

	bd.wsEnd[b.ID()] = ws.clone()
}

func (bd *Belady) classRelevantInputs(n *ir.Node) []*ir.Node {
	var out []*ir.Node
	for _, in := range n.Inputs {
		if in.Mode.RegRelevant() && bd.classOf(in.Mode) == bd.class {
			out = append(out, in)
		}
	}
	return out
}

// classRelevantOutputs returns n itself (if class-relevant) plus, when n
// produces a tuple, every immediately-following Proj that is
// class-relevant (spec.md §4.E step 3: "all immediately-following
// projections").
func (bd *Belady) classRelevantOutputs(n *ir.Node, order []*ir.Node, idx int) []*ir.Node {
	var out []*ir.Node
	if n.Mode.RegRelevant() && bd.classOf(n.Mode) == bd.class {
		out = append(out, n)
	}
	if n.Op.ProducesTuple() {
		for i := idx + 1; i < len(order) && order[i].Op.IsProj(); i++ {
			p := order[i]
			if p.Mode.RegRelevant() && bd.classOf(p.Mode) == bd.class {
				out = append(out, p)
			}
		}
	}
	return out
}

// displace implements the Belady heuristic (spec.md §4.E "displace"):
// bring newVals into ws, reloading them if this is a use step, then
// evict the farthest-next-use tail if that would overflow k.
func (bd *Belady) displace(b *ir.Block, ws *workingSet, at ProgramPoint, newVals []*ir.Node, isUsage bool, instr *ir.Node) {
	var toInsert []*ir.Node
	for _, v := range newVals {
		if !ws.has(v) {
			toInsert = append(toInsert, v)
			if isUsage {
				bd.env.AddReload(v, instr)
			}
		}
	}
	demand := len(toInsert)
	if ws.len()+demand > bd.k {
		sorted := ws.sortedByDistance(bd.oracle, at, !isUsage)
		evictCount := ws.len() + demand - bd.k
		if evictCount > len(sorted) {
			panic("BUG: regalloc.Belady.displace: working set overflow beyond k (spiller invariant broken)")
		}
		for i := len(sorted) - evictCount; i < len(sorted); i++ {
			v := sorted[i]
			ws.remove(v)
			if _, wasUsed := bd.used[b.ID()][v]; !wasUsed {
				bd.wsStart[b.ID()].remove(v)
			}
			if v.Op.IsPhi() && v.Block == b {
				bd.env.SpillPhi(v)
			}
		}
	}
	for _, v := range toInsert {
		ws.add(v)
	}
	if ws.len() > bd.k {
		panic("BUG: regalloc.Belady.displace: working set exceeds register budget k")
	}
}

// startingWorkingSet implements spec.md §4.E step 1.
func (bd *Belady) startingWorkingSet(b *ir.Block) *workingSet {
	if len(b.Preds) == 1 && bd.wsEnd[b.Preds[0].ID()] != nil {
		return bd.wsEnd[b.Preds[0].ID()].clone()
	}

	type candidate struct {
		v    *ir.Node
		dist int
	}
	var cands []candidate
	start := ProgramPoint{Block: b, Tick: 0}
	for v := range bd.oracle.LiveIn(b) {
		cands = append(cands, candidate{v, bd.oracle.NextUse(start, v, false)})
	}
	for _, p := range b.Phis {
		if p.Mode.RegRelevant() && bd.classOf(p.Mode) == bd.class {
			cands = append(cands, candidate{p, bd.oracle.NextUse(start, p, false)})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].v.ID() < cands[j].v.ID()
	})

	ws := newWorkingSet()
	for i, c := range cands {
		if i < bd.k {
			ws.add(c.v)
		} else if c.v.Op.IsPhi() && c.v.Block == b {
			bd.env.SpillPhi(c.v)
		}
	}
	return ws
}

// reconcileBorders implements spec.md §4.E step 5 as a separate
// post-pass over every block/predecessor pair.
func (bd *Belady) reconcileBorders() {
	for _, b := range bd.g.Blocks {
		start := bd.wsStart[b.ID()]
		if start == nil {
			continue
		}
		for predIdx, p := range b.Preds {
			end := bd.wsEnd[p.ID()]
			if end == nil {
				continue // unknown-valued predecessor, e.g. unreachable in this walk
			}
			for v := range start.vals {
				resolved := v
				for _, phi := range b.Phis {
					if phi == v {
						if predIdx < len(phi.Inputs) {
							resolved = phi.Inputs[predIdx]
						}
						break
					}
				}
				if !end.has(resolved) {
					bd.env.AddReloadOnEdge(resolved, b, predIdx)
				}
			}
		}
	}
}

// WorkingSetStart exposes a block's simulated start-of-block register
// contents. The chordal colorer does not use it: Allocate seeds live-in
// colors from the post-spill oracle's live-in sets.
func (bd *Belady) WorkingSetStart(b *ir.Block) map[*ir.Node]struct{} {
	if ws := bd.wsStart[b.ID()]; ws != nil {
		return ws.vals
	}
	return nil
}

func blockLabel(b *ir.Block) string {
	return "block#" + strconv.Itoa(int(b.ID()))
}
