package ir

// NodeID is a dense, graph-scoped identity used to index every backend
// side-table (BackendInfo, schedule position, liveness/working-set state).
// Per spec.md §9's re-architecture note, metadata about a node never lives
// as a pointer embedded in the node itself — it is always looked up by ID
// in a table owned by the stage that needs it, so stages can be re-entered
// per register class without the node's identity changing shape.
type NodeID uint32

// ClassID names a register class (e.g. GPR, XMM) without committing the ir
// package to a concrete target; internal/isa/x86 supplies the concrete
// classes, and internal/regalloc resolves a ClassID to target register
// lists through that table.
type ClassID uint8

// RegMask is a bitset over the (small, ≤64) physical registers of one
// class, used for the "limited register list" a requirement may carry.
type RegMask uint64

// RegRequirement is attached to one operand position (spec.md §3
// "Register requirement"): a class, optionally narrowed to a specific
// admissible subset, optionally linked to another operand by identity or
// anti-identity, or flagged as producing the stack pointer / ignored by
// allocation entirely (e.g. the stack-pointer register itself).
type RegRequirement struct {
	Class           ClassID
	Limited         RegMask
	HasLimited      bool
	SameAsInput     int // index into the instruction's inputs, or -1
	DifferFromInput int // index into the instruction's inputs, or -1
	ProducesSP      bool
	Ignore          bool
}

// NoLink is the sentinel for RegRequirement.SameAsInput/DifferFromInput
// meaning "no such constraint".
const NoLink = -1

// BackendInfo is the per-node side table populated and mutated by the
// pipeline stages (spiller, constraint handler, colorer). It never lives
// on Node itself; Graph.Backend(n) is the only way to reach it, matching
// spec.md §9's side-table re-architecture of the teacher's intrusive
// backend-info pointers.
type BackendInfo struct {
	InputReqs        []RegRequirement
	OutputReq        RegRequirement
	HasOutputReq     bool
	AssignedReg      int32 // physical register index once colored; -1 until then
	FrameEntity      int32 // stack slot id for Spill/Reload targets; -1 if none
	FrameOffset      int64
	DoNotSpill       bool // forces next_use to report 0: never evicted (spec.md §4.B)
	Rematerializable bool // set on Reload nodes by the spill environment (spec.md §4.C)

	// PreferredReg is a copy-coalescing hint: the register the colorer
	// should try first, ahead of the ordinary lowest-index rule. The
	// colorer sets it on a Copy to its source's register. -1 means no hint.
	PreferredReg int32
}

func newBackendInfo() BackendInfo {
	return BackendInfo{AssignedReg: -1, FrameEntity: -1, PreferredReg: -1}
}

// userEdge records one consumer of a Node along with whether the edge is
// a dependency-only (ordering) edge rather than a data edge, letting data
// and dependency successors be iterated separately (spec.md §4.A).
type userEdge struct {
	node *Node
	dep  bool
}

// Node is a value or operation in the IR (spec.md §3). Inputs are ordered
// data operands; Deps are dependency-only (ordering) operands, such as a
// memory-chain token threading loads/stores or an anti-dependence edge
// inserted by the constraint handler. Every node belongs to exactly one
// Block, except phi nodes, which logically occupy position zero of their
// block's schedule rather than an ordinary slot.
type Node struct {
	id     NodeID
	Op     Opcode
	Mode   Mode
	Block  *Block
	Inputs []*Node
	Deps   []*Node
	users  []userEdge

	AuxInt int64  // constant value, frame offset literal, proj index, etc.
	Name   string // debug label; phi/proj arguments, spill slot names
}

// ID returns the node's graph-scoped identity, used to index side tables.
func (n *Node) ID() NodeID { return n.id }

// DataSuccessors returns every node that reads this node as a data input,
// in the order those edges were attached.
func (n *Node) DataSuccessors() []*Node {
	out := make([]*Node, 0, len(n.users))
	for _, u := range n.users {
		if !u.dep {
			out = append(out, u.node)
		}
	}
	return out
}

// DepSuccessors returns every node that reads this node as a
// dependency-only input.
func (n *Node) DepSuccessors() []*Node {
	out := make([]*Node, 0, len(n.users))
	for _, u := range n.users {
		if u.dep {
			out = append(out, u.node)
		}
	}
	return out
}

// NumSuccessors returns the total out-degree (data plus dependency). The
// list scheduler uses it to decide whether a scheduled node enters the
// live set; its num_not_sched_user counters count in-block data users
// instead.
func (n *Node) NumSuccessors() int { return len(n.users) }

func (n *Node) addUser(consumer *Node, dep bool) {
	n.users = append(n.users, userEdge{node: consumer, dep: dep})
}

func (n *Node) removeUser(consumer *Node) {
	for i, u := range n.users {
		if u.node == consumer {
			n.users = append(n.users[:i], n.users[i+1:]...)
			return
		}
	}
	panic("BUG: ir.Node.removeUser: consumer not found in user list")
}

// AddInput attaches src as a new data (dep=false) or dependency-only
// (dep=true) operand of n, in O(1) amortized time, and records the
// reciprocal out-edge on src so successor iteration stays exact.
func (n *Node) AddInput(src *Node, dep bool) {
	if dep {
		n.Deps = append(n.Deps, src)
	} else {
		n.Inputs = append(n.Inputs, src)
	}
	src.addUser(n, dep)
}

// ReplaceInput rewrites the first occurrence of old among n's data
// inputs to new (later occurrences are left as they are), used by the spiller to redirect a use at a Reload output
// and by the constraint handler to redirect operands through a Perm's
// projections. Panics if old is not a current data input of n (a dangling
// or missing edge is a fatal invariant break per spec.md §4.A).
func (n *Node) ReplaceInput(old, new *Node) {
	for i, in := range n.Inputs {
		if in == old {
			n.Inputs[i] = new
			old.removeUser(n)
			new.addUser(n, false)
			return
		}
	}
	panic("BUG: ir.Node.ReplaceInput: old is not a current data input")
}

// ReplaceInputAt rewrites n's i-th data input by position rather than by
// value, used when an input value may legitimately repeat across
// positions (e.g. a phi whose predecessor-edge argument must be replaced
// without disturbing an identical argument from another edge).
func (n *Node) ReplaceInputAt(i int, new *Node) {
	old := n.Inputs[i]
	n.Inputs[i] = new
	old.removeUser(n)
	new.addUser(n, false)
}

// ReplaceDep is ReplaceInput for dependency-only operands.
func (n *Node) ReplaceDep(old, new *Node) {
	for i, in := range n.Deps {
		if in == old {
			n.Deps[i] = new
			old.removeUser(n)
			new.addUser(n, true)
			return
		}
	}
	panic("BUG: ir.Node.ReplaceDep: old is not a current dependency input")
}
