package regalloc

import (
	"sort"

	"github.com/kestrel-lang/backend/internal/ir"
)

// Env is the spill environment (spec.md §4.C, §6): an accumulator for
// reload/spill-phi requests raised by the Belady spiller, materialized
// in one pass at the end so that a value needing several reloads still
// gets exactly one Spill and one shared frame slot.
type Env struct {
	g     *ir.Graph
	class ir.ClassID

	reloadBeforeUse []reloadBeforeUse
	reloadOnEdge    []reloadOnEdge
	spillPhis       map[*ir.Node]struct{}

	spillOf map[*ir.Node]*ir.Node // value -> its materialized Spill node
	ufRank  map[*ir.Node]int
	ufParent map[*ir.Node]*ir.Node
	slotOf  map[*ir.Node]int32 // union-find root -> frame slot id
	nextSlot int32
}

type reloadBeforeUse struct {
	V *ir.Node
	U *ir.Node
}

type reloadOnEdge struct {
	V         *ir.Node
	B         *ir.Block
	PredIndex int
}

// NewEnv creates an empty spill environment for one register class.
func NewEnv(g *ir.Graph, class ir.ClassID) *Env {
	return &Env{
		g:        g,
		class:    class,
		spillPhis: make(map[*ir.Node]struct{}),
		spillOf:  make(map[*ir.Node]*ir.Node),
		ufRank:   make(map[*ir.Node]int),
		ufParent: make(map[*ir.Node]*ir.Node),
		slotOf:   make(map[*ir.Node]int32),
	}
}

// AddReload requests that V be reloaded into a register immediately
// before U reads it (spec.md §6 add_reload).
func (e *Env) AddReload(v, u *ir.Node) {
	e.reloadBeforeUse = append(e.reloadBeforeUse, reloadBeforeUse{V: v, U: u})
}

// AddReloadOnEdge requests a reload of V along the edge from
// b.Preds[predIndex] into b (spec.md §6 add_reload_on_edge, §4.E border
// reconciliation).
func (e *Env) AddReloadOnEdge(v *ir.Node, b *ir.Block, predIndex int) {
	e.reloadOnEdge = append(e.reloadOnEdge, reloadOnEdge{V: v, B: b, PredIndex: predIndex})
}

// SpillPhi marks phi p as needing a stack slot rather than a register
// (spec.md §6 spill_phi).
func (e *Env) SpillPhi(p *ir.Node) {
	e.spillPhis[p] = struct{}{}
}

func (e *Env) find(v *ir.Node) *ir.Node {
	parent, ok := e.ufParent[v]
	if !ok {
		e.ufParent[v] = v
		return v
	}
	if parent == v {
		return v
	}
	root := e.find(parent)
	e.ufParent[v] = root
	return root
}

// union merges a and b's frame-slot equivalence classes: a spilled phi
// shares one stack slot with its own arguments, transitively, so no copy
// is needed at the phi point once both sides live in memory (spec.md
// §4.C "phi-spill merges classes transitively through phi arguments").
func (e *Env) union(a, b *ir.Node) {
	ra, rb := e.find(a), e.find(b)
	if ra == rb {
		return
	}
	if e.ufRank[ra] < e.ufRank[rb] {
		ra, rb = rb, ra
	}
	e.ufParent[rb] = ra
	if e.ufRank[ra] == e.ufRank[rb] {
		e.ufRank[ra]++
	}
}

func (e *Env) slot(v *ir.Node) int32 {
	root := e.find(v)
	if s, ok := e.slotOf[root]; ok {
		return s
	}
	s := e.nextSlot
	e.nextSlot++
	e.slotOf[root] = s
	return s
}

// ensureSpill materializes (once, memoized) the Spill node saving v to
// its frame slot, inserted immediately after v's definition. v must not
// be a phi: phis have no single defining instruction, so their spilled
// arguments are stored by their defining predecessor blocks instead (see
// materializePhiSpillStores).
func (e *Env) ensureSpill(v *ir.Node) *ir.Node {
	if s, ok := e.spillOf[v]; ok {
		return s
	}
	s := e.g.NewNode(ir.OpSpill, v.Mode, v.Block)
	s.AddInput(v, false)
	e.g.Backend(s).FrameEntity = e.slot(v)
	v.Block.Schedule().InsertAfter(s, v)
	e.spillOf[v] = s
	return s
}

func blockTerminator(b *ir.Block) *ir.Node {
	order := b.Schedule().Order()
	if len(order) == 0 {
		return nil
	}
	last := order[len(order)-1]
	if last.Op.IsEnd() {
		return last
	}
	return nil
}

func (e *Env) insertReload(v *ir.Node, at *ir.Block) *ir.Node {
	r := e.g.NewNode(ir.OpReload, v.Mode, at)
	e.g.Backend(r).FrameEntity = e.slot(v)
	e.g.Backend(r).Rematerializable = true
	return r
}

// Materialize applies every accumulated request: allocates stack slots
// (one per union-find equivalence class), inserts Spill nodes after
// definitions, inserts Reload nodes before uses or at block/edge
// boundaries, and rewires consumers to read from the reloaded value
// (spec.md §4.C).
func (e *Env) Materialize() {
	for p := range e.spillPhis {
		for _, arg := range p.Inputs {
			e.union(p, arg)
		}
	}

	grouped := groupReloadsByValue(e.reloadBeforeUse)
	values := make([]*ir.Node, 0, len(grouped))
	for v := range grouped {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i].ID() < values[j].ID() })
	for _, v := range values {
		if !v.Op.IsPhi() {
			e.ensureSpill(v)
		}
		for _, use := range grouped[v] {
			r := e.insertReload(v, use.Block)
			use.Block.Schedule().InsertBefore(r, use)
			use.ReplaceInput(v, r)
		}
	}

	for _, req := range e.reloadOnEdge {
		e.materializeEdgeReload(req)
	}

	e.materializePhiSpillStores()
}

func groupReloadsByValue(reqs []reloadBeforeUse) map[*ir.Node][]*ir.Node {
	out := make(map[*ir.Node][]*ir.Node)
	for _, r := range reqs {
		out[r.V] = append(out[r.V], r.U)
	}
	return out
}

func (e *Env) materializeEdgeReload(req reloadOnEdge) {
	pred := req.B.Preds[req.PredIndex]
	if !req.V.Op.IsPhi() {
		e.ensureSpill(req.V)
	}
	reload := e.insertReload(req.V, pred)
	if term := blockTerminator(pred); term != nil {
		pred.Schedule().InsertBefore(reload, term)
	} else {
		pred.Schedule().Append(reload)
	}

	for _, p := range req.B.Phis {
		if req.PredIndex < len(p.Inputs) && p.Inputs[req.PredIndex] == req.V {
			p.ReplaceInputAt(req.PredIndex, reload)
			return
		}
	}

	// req.V is a genuine (non-phi) live-in missing only on this edge:
	// introduce a merge phi unifying the reloaded value on this edge
	// with the original value on every other edge, and redirect req.B's
	// local uses of req.V to the merge.
	merge := e.g.NewNode(ir.OpPhi, req.V.Mode, req.B)
	for i := range req.B.Preds {
		if i == req.PredIndex {
			merge.AddInput(reload, false)
		} else {
			merge.AddInput(req.V, false)
		}
	}
	req.B.AddPhi(merge)
	for _, n := range req.B.Schedule().Order() {
		for i, in := range n.Inputs {
			if in == req.V {
				n.ReplaceInputAt(i, merge)
			}
		}
	}
}

// materializePhiSpillStores ensures every spilled phi's incoming
// arguments are stored to the phi's shared frame slot in the
// corresponding predecessor block, so a reload of the phi after any
// predecessor reads back the right value without an explicit copy at
// the join.
func (e *Env) materializePhiSpillStores() {
	phis := make([]*ir.Node, 0, len(e.spillPhis))
	for p := range e.spillPhis {
		phis = append(phis, p)
	}
	sort.Slice(phis, func(i, j int) bool { return phis[i].ID() < phis[j].ID() })
	for _, p := range phis {
		for i, arg := range p.Inputs {
			pred := p.Block.Preds[i]
			if arg.Op.IsPhi() {
				continue // the argument's own spill (if any) covers it
			}
			if _, already := e.spillOf[arg]; already {
				continue // ensureSpill already stored this value to the shared slot
			}
			s := e.g.NewNode(ir.OpSpill, arg.Mode, pred)
			s.AddInput(arg, false)
			e.g.Backend(s).FrameEntity = e.slot(p)
			if term := blockTerminator(pred); term != nil {
				pred.Schedule().InsertBefore(s, term)
			} else {
				pred.Schedule().Append(s)
			}
			e.spillOf[arg] = s
		}
	}
}
