package ir

// BlockID is a graph-scoped dense identity for a Block, used by the
// regalloc package's block-info side tables (working sets, border lists).
type BlockID uint32

// Block is a maximal straight-line region terminated by a control-flow
// node (spec.md §3). Phi nodes live conceptually at the block head; they
// are tracked separately from the Schedule because they are never
// scheduled as ordinary instructions.
type Block struct {
	id    BlockID
	Graph *Graph

	Preds []*Block
	Succs []*Block

	Phis  []*Node
	Start *Node // synthetic OpBlockStart marker

	sched *Schedule

	// IDom is the block's immediate dominator, populated by
	// ComputeDominators; nil for the entry block. The chordal colorer
	// walks blocks in dominator-tree preorder (spec.md §4.G, §5).
	IDom     *Block
	domKids  []*Block
	domOrder int // preorder index once ComputeDominators has run; -1 until then
}

// ID returns the block's graph-scoped identity.
func (b *Block) ID() BlockID { return b.id }

// Schedule returns the block's instruction schedule (empty until the list
// scheduler has run).
func (b *Block) Schedule() *Schedule { return b.sched }

// Entry reports whether b is the graph's designated start block.
func (b *Block) Entry() bool { return b.Graph.Start == b }

// AddPhi registers p as one of b's phi values. p must have Op == OpPhi.
func (b *Block) AddPhi(p *Node) {
	if !p.Op.IsPhi() {
		panic("BUG: ir.Block.AddPhi: node is not a Phi")
	}
	b.Phis = append(b.Phis, p)
}

// DomChildren returns b's children in the dominator tree, valid once
// ComputeDominators has run.
func (b *Block) DomChildren() []*Block { return b.domKids }
