package ir

// Builder is a thin convenience layer over Graph for constructing CFGs in
// tests and in the front-end boundary this core consumes (spec.md §6): it
// does no optimization, just wires blocks and edges with less boilerplate
// than calling Graph/Node methods directly.
type Builder struct {
	G *Graph
}

// NewBuilder creates a Builder around a fresh Graph with a wired Start
// block.
func NewBuilder() *Builder {
	g := NewGraph()
	start := g.NewBlock()
	g.Start = start
	return &Builder{G: g}
}

// Block creates a new block with no predecessors wired yet.
func (bd *Builder) Block() *Block { return bd.G.NewBlock() }

// Link adds a CFG edge from -> to (both directions: to.Preds and
// from.Succs), the front-end's responsibility before any pipeline stage
// runs.
func (bd *Builder) Link(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// SetEnd designates b as the graph's unique end block.
func (bd *Builder) SetEnd(b *Block) { bd.G.End = b }

// Const creates an OpConst node with the given mode and immediate value.
func (bd *Builder) Const(b *Block, mode Mode, v int64) *Node {
	n := bd.G.NewNode(OpConst, mode, b)
	n.AuxInt = v
	b.Schedule().Append(n)
	return n
}

// BinOp creates a two-input arithmetic node (Add/Sub/Mul/Div/Cmp) and
// appends it to b's schedule in program order; a real front-end would
// leave ordering to the list scheduler, but tests constructing
// already-ordered blocks can use this directly.
func (bd *Builder) BinOp(b *Block, op Opcode, mode Mode, lhs, rhs *Node) *Node {
	n := bd.G.NewNode(op, mode, b)
	n.AddInput(lhs, false)
	n.AddInput(rhs, false)
	b.Schedule().Append(n)
	return n
}

// Phi creates a phi node at b's head with the given per-predecessor
// argument list (must match len(b.Preds) once predecessors are wired).
func (bd *Builder) Phi(b *Block, mode Mode, args ...*Node) *Node {
	n := bd.G.NewNode(OpPhi, mode, b)
	for _, a := range args {
		n.AddInput(a, false)
	}
	b.AddPhi(n)
	return n
}

// Return creates a Return node and appends it to b's schedule.
func (bd *Builder) Return(b *Block, vals ...*Node) *Node {
	n := bd.G.NewNode(OpReturn, ModeControl, b)
	for _, v := range vals {
		n.AddInput(v, false)
	}
	b.Schedule().Append(n)
	return n
}

// Jump creates an unconditional Jump terminator.
func (bd *Builder) Jump(b *Block) *Node {
	n := bd.G.NewNode(OpJump, ModeControl, b)
	b.Schedule().Append(n)
	return n
}
