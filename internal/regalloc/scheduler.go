package regalloc

import "github.com/kestrel-lang/backend/internal/ir"

// Selector is the pluggable node-selection strategy spec.md §6 and §9
// specify as a capability object rather than a vtable of function
// pointers: the scheduler depends only on this interface, and a caller
// supplies whichever strategy (TrivialSelector or PressureSelector) the
// driver configures.
type Selector interface {
	InitGraph(g *ir.Graph)
	InitBlock(b *ir.Block)
	NodeReady(n *ir.Node)
	Select(ready []*ir.Node, live map[ir.NodeID]struct{}) *ir.Node
	NodeSelected(n *ir.Node)
	FinishBlock(b *ir.Block)
	FinishGraph(g *ir.Graph)
}

// TrivialSelector always picks the first-ready node, matching spec.md
// §9's "trivial/first" strategy: the simplest selector, useful as a
// baseline and in tests where schedule order must be deterministic and
// obvious.
type TrivialSelector struct{}

func (TrivialSelector) InitGraph(*ir.Graph)                          {}
func (TrivialSelector) InitBlock(*ir.Block)                          {}
func (TrivialSelector) NodeReady(*ir.Node)                           {}
func (TrivialSelector) NodeSelected(*ir.Node)                        {}
func (TrivialSelector) FinishBlock(*ir.Block)                        {}
func (TrivialSelector) FinishGraph(*ir.Graph)                        {}
func (TrivialSelector) Select(ready []*ir.Node, _ map[ir.NodeID]struct{}) *ir.Node {
	return ready[0]
}

// PressureSelector picks the ready node with the lowest pressureScore
// (the first such node in ready order on a tie), approximating "minimize
// register pressure" (spec.md §4.D step 3's heuristic strategy) without
// needing the spiller's own next-use oracle wired in.
type PressureSelector struct{}

func (PressureSelector) InitGraph(*ir.Graph)   {}
func (PressureSelector) InitBlock(*ir.Block)   {}
func (PressureSelector) NodeReady(*ir.Node)    {}
func (PressureSelector) NodeSelected(*ir.Node) {}
func (PressureSelector) FinishBlock(*ir.Block) {}
func (PressureSelector) FinishGraph(*ir.Graph) {}

func (PressureSelector) Select(ready []*ir.Node, live map[ir.NodeID]struct{}) *ir.Node {
	best := ready[0]
	bestScore := pressureScore(best, live)
	for _, n := range ready[1:] {
		if s := pressureScore(n, live); s < bestScore {
			best, bestScore = n, s
		}
	}
	return best
}

// pressureScore estimates the live-set delta of scheduling n now: +1 if
// n has any successors (n itself enters live), -1 for each data input of
// n currently in live, whether or not n is that input's last consumer.
func pressureScore(n *ir.Node, live map[ir.NodeID]struct{}) int {
	delta := 0
	if n.NumSuccessors() > 0 {
		delta++
	}
	for _, in := range n.Inputs {
		if _, ok := live[in.ID()]; ok {
			delta--
		}
	}
	return delta
}

// schedState is the per-block bookkeeping the list scheduler needs:
// remaining-consumer counts and the live set, both side tables keyed by
// NodeID rather than fields on Node (spec.md §9).
type schedState struct {
	numNotSchedUser map[ir.NodeID]int
	live            map[ir.NodeID]struct{}
}

// ScheduleBlock orders b's nodes per spec.md §4.D: phis and the block
// start marker are not placed in the schedule (they sit implicitly at
// the block head); keep/copy-keep/barrier nodes are scheduled the
// instant they become ready; everything else goes through sel. Existing
// schedule content (if the block already had a preliminary order from
// construction) is discarded and rebuilt from the node set.
func ScheduleBlock(b *ir.Block, sel Selector) {
	nodes := collectBlockNodes(b)
	st := &schedState{
		numNotSchedUser: make(map[ir.NodeID]int, len(nodes)),
		live:            make(map[ir.NodeID]struct{}),
	}
	scheduledSet := make(map[ir.NodeID]bool, len(nodes))

	for _, n := range nodes {
		st.numNotSchedUser[n.ID()] = countInBlockDataUsers(n, b)
	}

	var freshOrder []*ir.Node

	sel.InitBlock(b)

	var ready []*ir.Node
	isReady := func(n *ir.Node) bool {
		if scheduledSet[n.ID()] {
			return false
		}
		for _, in := range n.Inputs {
			if in.Block == b && !scheduledSet[in.ID()] {
				return false
			}
		}
		for _, in := range n.Deps {
			if in.Block == b && !scheduledSet[in.ID()] {
				return false
			}
		}
		return true
	}
	addReady := func(n *ir.Node) {
		ready = append(ready, n)
		sel.NodeReady(n)
	}

	for _, n := range nodes {
		if isReady(n) {
			addReady(n)
		}
	}

	schedule := func(n *ir.Node) {
		scheduledSet[n.ID()] = true
		freshOrder = append(freshOrder, n)
		sel.NodeSelected(n)
		for _, in := range n.Inputs {
			if in.Block != b {
				continue
			}
			st.numNotSchedUser[in.ID()]--
			if st.numNotSchedUser[in.ID()] == 0 {
				delete(st.live, in.ID())
			}
		}
		if n.NumSuccessors() > 0 {
			st.live[n.ID()] = struct{}{}
		}
		for _, s := range n.DataSuccessors() {
			if s.Block == b && !scheduledSet[s.ID()] && isReady(s) {
				addReady(s)
			}
		}
		for _, s := range n.DepSuccessors() {
			if s.Block == b && !scheduledSet[s.ID()] && isReady(s) {
				addReady(s)
			}
		}
	}

	popReady := func(n *ir.Node) {
		for i, r := range ready {
			if r == n {
				ready = append(ready[:i], ready[i+1:]...)
				return
			}
		}
		panic("BUG: regalloc.ScheduleBlock: node not in ready set")
	}

	for len(ready) > 0 {
		var pick *ir.Node
		for _, n := range ready {
			if n.Op.IsKeep() {
				pick = n
				break
			}
		}
		if pick == nil {
			pick = sel.Select(ready, st.live)
		}
		popReady(pick)
		schedule(pick)
	}

	for _, n := range nodes {
		if !scheduledSet[n.ID()] {
			panic("BUG: regalloc.ScheduleBlock: ready-set starved before all nodes scheduled (data-edge cycle in block)")
		}
	}

	b.Schedule().Reset()
	for _, n := range freshOrder {
		b.Schedule().Append(n)
	}
	sel.FinishBlock(b)
}

// collectBlockNodes gathers every schedulable (non-phi, non-block-start)
// node currently attributed to b, from its existing schedule slice if
// present (the usual case when re-scheduling after an earlier pass added
// spill/reload/perm nodes) — callers that build blocks without an
// existing order must append nodes to the schedule themselves first.
func collectBlockNodes(b *ir.Block) []*ir.Node {
	order := b.Schedule().Order()
	out := make([]*ir.Node, 0, len(order))
	for _, n := range order {
		if n.Op.IsPhi() || n.Op.IsBlockStart() {
			continue
		}
		out = append(out, n)
	}
	return out
}

func countInBlockDataUsers(n *ir.Node, b *ir.Block) int {
	c := 0
	for _, s := range n.DataSuccessors() {
		if s.Block == b {
			c++
		}
	}
	return c
}

// ScheduleGraph runs ScheduleBlock over every block in the graph, in
// reverse-postorder (spec.md §5: "scheduler: graph-block-walk order, no
// inter-block dependence within the stage").
func ScheduleGraph(g *ir.Graph, sel Selector) {
	sel.InitGraph(g)
	for _, b := range g.ReversePostOrder() {
		ScheduleBlock(b, sel)
	}
	sel.FinishGraph(g)
}
