package ir

import (
	"sort"

	"github.com/kestrel-lang/backend/internal/arena"
)

// Graph is a function's control-flow graph (spec.md §3): a set of blocks
// with a unique start and end block, plus the frame pointer value and
// stack-pointer register identity every stack-touching node shares.
type Graph struct {
	nodePool  arena.Pool[Node]
	nextBlock BlockID

	Blocks []*Block
	Start  *Block
	End    *Block

	FramePointer  *Node
	StackPtrClass ClassID
	StackPtrReg   int32

	backend []BackendInfo // side table indexed by NodeID

	domValid bool
}

// NewGraph creates an empty Graph. Nodes and blocks are added with NewNode
// and NewBlock.
func NewGraph() *Graph {
	return &Graph{nodePool: arena.NewPool[Node]()}
}

// NewBlock creates and registers a new block in the graph, including its
// synthetic OpBlockStart marker.
func (g *Graph) NewBlock() *Block {
	b := &Block{id: g.nextBlock, Graph: g, sched: newSchedule(), domOrder: -1}
	g.nextBlock++
	b.Start = g.NewNode(OpBlockStart, ModeControl, b)
	g.Blocks = append(g.Blocks, b)
	return b
}

// NewNode allocates a new Node of the given opcode/mode bound to block,
// with a fresh NodeID and zeroed BackendInfo slot. Per spec.md §4.A, this
// is the substrate's node-creation primitive; all data/dep edges are
// attached afterward via Node.AddInput.
func (g *Graph) NewNode(op Opcode, mode Mode, block *Block) *Node {
	n := g.nodePool.Allocate()
	n.id = NodeID(g.nodePool.Allocated() - 1)
	n.Op = op
	n.Mode = mode
	n.Block = block
	if int(n.id) >= len(g.backend) {
		grown := make([]BackendInfo, n.id+1)
		copy(grown, g.backend)
		for i := len(g.backend); i < len(grown); i++ {
			grown[i] = newBackendInfo()
		}
		g.backend = grown
	}
	return n
}

// Backend returns the mutable backend-info side-table entry for n. This
// is the only way to read or write per-node backend metadata (register
// requirements, assigned register, frame slot) — it never lives on Node
// itself (spec.md §9 re-architecture note).
func (g *Graph) Backend(n *Node) *BackendInfo { return &g.backend[n.id] }

// PostOrder returns the graph's blocks in CFG postorder starting from
// Start, matching the teacher's PostOrderBlockIterator (grounded on
// wazero's backend/regalloc.Function interface) and used by passes that
// want successors visited before predecessors.
func (g *Graph) PostOrder() []*Block {
	order := make([]*Block, 0, len(g.Blocks))
	visited := make(map[BlockID]bool, len(g.Blocks))
	var walk func(b *Block)
	walk = func(b *Block) {
		if visited[b.id] {
			return
		}
		visited[b.id] = true
		for _, s := range b.Succs {
			walk(s)
		}
		order = append(order, b)
	}
	if g.Start != nil {
		walk(g.Start)
	}
	return order
}

// ReversePostOrder returns the graph's blocks in reverse postorder, the
// order the scheduler and spiller walk blocks in (spec.md §5): every
// predecessor (outside of loop back-edges) precedes its successors.
func (g *Graph) ReversePostOrder() []*Block {
	po := g.PostOrder()
	rpo := make([]*Block, len(po))
	for i, b := range po {
		rpo[len(po)-1-i] = b
	}
	return rpo
}

// ComputeDominators fills in each block's IDom and dominator-tree
// children using the iterative Cooper-Harvey-Kennedy algorithm, and
// assigns each block a preorder index (Block.domOrder) so the chordal
// colorer can walk the dominator tree in the strict preorder spec.md §5
// requires. Must be called after Succs/Preds are wired and before the
// colorer runs.
func (g *Graph) ComputeDominators() {
	rpo := g.ReversePostOrder()
	rpoIndex := make(map[BlockID]int, len(rpo))
	for i, b := range rpo {
		rpoIndex[b.id] = i
	}

	idom := make(map[BlockID]*Block, len(rpo))
	idom[g.Start.id] = g.Start

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == g.Start {
				continue
			}
			var newIdom *Block
			for _, p := range b.Preds {
				if idom[p.id] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, rpoIndex)
			}
			if newIdom != nil && idom[b.id] != newIdom {
				idom[b.id] = newIdom
				changed = true
			}
		}
	}

	for _, b := range g.Blocks {
		b.domKids = nil
	}
	for _, b := range rpo {
		if b == g.Start {
			b.IDom = nil
			continue
		}
		b.IDom = idom[b.id]
		b.IDom.domKids = append(b.IDom.domKids, b)
	}
	for _, b := range g.Blocks {
		sort.Slice(b.domKids, func(i, j int) bool { return b.domKids[i].id < b.domKids[j].id })
	}

	order := 0
	var walk func(b *Block)
	walk = func(b *Block) {
		b.domOrder = order
		order++
		for _, k := range b.domKids {
			walk(k)
		}
	}
	walk(g.Start)
	g.domValid = true
}

func intersect(a, b *Block, idom map[BlockID]*Block, rpoIndex map[BlockID]int) *Block {
	for a != b {
		for rpoIndex[a.id] > rpoIndex[b.id] {
			a = idom[a.id]
		}
		for rpoIndex[b.id] > rpoIndex[a.id] {
			b = idom[b.id]
		}
	}
	return a
}

// HasDominators reports whether ComputeDominators has run on this graph.
func (g *Graph) HasDominators() bool { return g.domValid }

// DomPreorder returns every block reachable from Start in dominator-tree
// preorder. Panics if ComputeDominators has not run.
func (g *Graph) DomPreorder() []*Block {
	if !g.domValid {
		panic("BUG: ir.Graph.DomPreorder: ComputeDominators has not run")
	}
	n := 0
	for _, b := range g.Blocks {
		if b.domOrder >= 0 {
			n++
		}
	}
	order := make([]*Block, n)
	for _, b := range g.Blocks {
		if b.domOrder >= 0 {
			order[b.domOrder] = b
		}
	}
	return order
}
