package regalloc

import (
	"sort"

	"github.com/kestrel-lang/backend/internal/ir"
)

// ConstraintHandler runs component F: for every instruction with
// register-pinned operands it inserts a Perm node, pairs uses with
// defs, and solves a bipartite matching to assign registers (spec.md
// §4.F). Run takes a callback that lists the values live across each
// instruction, including ones it does not read; Allocate derives it from
// the post-spill liveness oracle.
type ConstraintHandler struct {
	g      *ir.Graph
	class  ir.ClassID
	classSize int
}

// NewConstraintHandler creates a handler for one register class with
// classSize allocatable registers.
func NewConstraintHandler(g *ir.Graph, class ir.ClassID, classSize int) *ConstraintHandler {
	return &ConstraintHandler{g: g, class: class, classSize: classSize}
}

// Run walks every block's schedule and applies spec.md §4.F to each
// instruction with at least one limited-register operand.
func (h *ConstraintHandler) Run(liveAcross func(b *ir.Block, instr *ir.Node) []*ir.Node) {
	for _, b := range h.g.Blocks {
		for _, instr := range append([]*ir.Node(nil), b.Schedule().Order()...) {
			h.handleInstr(b, instr, liveAcross)
		}
	}
}

func (h *ConstraintHandler) hasLimitedOperand(instr *ir.Node) bool {
	info := h.g.Backend(instr)
	for _, req := range info.InputReqs {
		if req.HasLimited {
			return true
		}
	}
	return false
}

// handleInstr implements spec.md §4.F steps 1-6.
func (h *ConstraintHandler) handleInstr(b *ir.Block, instr *ir.Node, liveAcross func(*ir.Block, *ir.Node) []*ir.Node) {
	if !h.hasLimitedOperand(instr) && !instr.Op.IsPhi() {
		return
	}

	liveThrough := liveAcross(b, instr)
	perm := h.g.NewNode(ir.OpPerm, ir.ModeTuple, b)
	projOf := make(map[*ir.Node]*ir.Node, len(instr.Inputs)+len(liveThrough))
	var projOrder []*ir.Node
	var vOrder []*ir.Node

	allInputs := append(append([]*ir.Node(nil), instr.Inputs...), liveThrough...)
	for _, v := range allInputs {
		if _, done := projOf[v]; done {
			continue
		}
		perm.AddInput(v, false)
		proj := h.g.NewNode(ir.OpProj, v.Mode, b)
		proj.AddInput(perm, true)
		proj.AuxInt = int64(len(perm.Inputs) - 1)
		projOf[v] = proj
		projOrder = append(projOrder, proj)
		vOrder = append(vOrder, v)
	}

	b.Schedule().InsertBefore(perm, instr)
	for _, proj := range projOrder {
		b.Schedule().InsertBefore(proj, instr)
	}

	for i, in := range instr.Inputs {
		if proj, ok := projOf[in]; ok {
			instr.ReplaceInputAt(i, proj)
		}
	}

	leftOperands, leftReqs := h.pairUp(instr)
	for i, proj := range projOrder {
		v := vOrder[i]
		if !containsNode(leftOperands, proj) && isLiveThroughProjection(liveThrough, v) {
			leftOperands = append(leftOperands, proj)
			leftReqs = append(leftReqs, ir.RegRequirement{Class: h.class})
		}
	}

	assignment := h.match(leftOperands, leftReqs)
	for i, op := range leftOperands {
		h.g.Backend(op).AssignedReg = assignment[i]
	}
}

func isLiveThroughProjection(liveThrough []*ir.Node, v *ir.Node) bool {
	for _, lt := range liveThrough {
		if lt == v {
			return true
		}
	}
	return false
}

func containsNode(ns []*ir.Node, n *ir.Node) bool {
	for _, x := range ns {
		if x == n {
			return true
		}
	}
	return false
}

// pairUp implements spec.md §4.F step 3: for each output operand, find
// the best unpaired input to share a register with.
func (h *ConstraintHandler) pairUp(instr *ir.Node) ([]*ir.Node, []ir.RegRequirement) {
	info := h.g.Backend(instr)
	paired := make(map[int]bool)

	var left []*ir.Node
	var reqs []ir.RegRequirement

	if info.HasOutputReq && instr.Mode.RegRelevant() {
		best := -1
		bestSize := -1
		for i := range instr.Inputs {
			if paired[i] {
				continue
			}
			if i >= len(info.InputReqs) {
				continue
			}
			ireq := info.InputReqs[i]
			if !ireq.HasLimited {
				continue
			}
			merged := info.OutputReq.Limited & ireq.Limited
			if info.OutputReq.HasLimited && merged == 0 {
				continue
			}
			size := popcount(ireq.Limited)
			if best == -1 || size < bestSize {
				best, bestSize = i, size
			}
		}
		if best != -1 {
			paired[best] = true
			merged := info.InputReqs[best]
			if info.OutputReq.HasLimited {
				merged.Limited &= info.OutputReq.Limited
			}
			left = append(left, instr)
			reqs = append(reqs, merged)
		} else {
			left = append(left, instr)
			reqs = append(reqs, info.OutputReq)
		}
	}

	for i, in := range instr.Inputs {
		if paired[i] {
			continue
		}
		if i < len(info.InputReqs) && info.InputReqs[i].HasLimited {
			left = append(left, in)
			reqs = append(reqs, info.InputReqs[i])
		}
	}
	return left, reqs
}

func popcount(m ir.RegMask) int {
	n := 0
	for m != 0 {
		m &= m - 1
		n++
	}
	return n
}

// match solves a bipartite perfect matching of left operands to the
// classSize physical registers admissible for each (spec.md §4.F steps
// 4-5), via augmenting paths (Kuhn's algorithm) — simple and sufficient
// at the small (<= ~16) register-class sizes this backend allocates
// over; spec.md §9 leaves the matcher's choice open as long as it finds
// a perfect matching when one exists.
func (h *ConstraintHandler) match(left []*ir.Node, reqs []ir.RegRequirement) []int32 {
	n := len(left)
	adj := make([][]int, n)
	for i, req := range reqs {
		for r := 0; r < h.classSize; r++ {
			if !req.HasLimited || req.Limited&(1<<uint(r)) != 0 {
				adj[i] = append(adj[i], r)
			}
		}
	}

	matchReg := make([]int, h.classSize)
	for i := range matchReg {
		matchReg[i] = -1
	}
	result := make([]int32, n)
	for i := range result {
		result[i] = -1
	}

	var tryAssign func(i int, visited []bool) bool
	tryAssign = func(i int, visited []bool) bool {
		for _, r := range adj[i] {
			if visited[r] {
				continue
			}
			visited[r] = true
			if matchReg[r] == -1 || tryAssign(matchReg[r], visited) {
				matchReg[r] = i
				result[i] = int32(r)
				return true
			}
		}
		return false
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return len(adj[order[a]]) < len(adj[order[b]]) })

	for _, i := range order {
		visited := make([]bool, h.classSize)
		if !tryAssign(i, visited) {
			panic("BUG: regalloc.ConstraintHandler.match: no perfect matching exists (spiller failed to guarantee feasibility)")
		}
	}
	return result
}
