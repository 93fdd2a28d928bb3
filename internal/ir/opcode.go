package ir

// Opcode names every node kind the pipeline must recognize, including the
// backend-introduced kinds inserted by later stages (Spill, Reload, Perm,
// Copy, Keep, CopyKeep, MemPerm, IncSP, AddSP, SubSP). The set is fixed and
// small enough to live as a Go enum plus a single properties table, playing
// the role spec.md §9 assigns to a "global opcode registry populated at
// process init": a once-initialized table rather than runtime registration.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Front-end-supplied arithmetic and memory kinds.
	OpConst
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpCmp
	OpLoad
	OpStore

	// Control-flow and SSA structure.
	OpBlockStart
	OpPhi
	OpJump
	OpBranch
	OpCall
	OpReturn
	OpProj // names one field of a tuple-producing node

	// Backend-introduced, inserted by the stages in this core.
	OpSpill
	OpReload
	OpPerm
	OpCopy
	OpKeep
	OpCopyKeep
	OpMemPerm
	OpIncSP
	OpAddSP
	OpSubSP
	OpFrameAddr
	OpBarrier
	OpRegParams

	opcodeCount
)

type opcodeProps struct {
	name        string
	isPhi       bool
	isProj      bool
	isBlockAnch bool // block-start marker: scheduled first, never moves
	isKeep      bool // must be scheduled as soon as ready (spec.md §4.D step 3)
	isEnd       bool // control terminator: jump/branch/return
	tuple       bool // produces a tuple consumed via Proj
	commutative bool
}

var opcodeTable = [opcodeCount]opcodeProps{
	OpInvalid:    {name: "invalid"},
	OpConst:      {name: "Const"},
	OpAdd:        {name: "Add", commutative: true},
	OpSub:        {name: "Sub"},
	OpMul:        {name: "Mul", commutative: true},
	OpDiv:        {name: "Div", tuple: true}, // quotient+remainder
	OpCmp:        {name: "Cmp"},
	OpLoad:       {name: "Load"},
	OpStore:      {name: "Store"},
	OpBlockStart: {name: "BlockStart", isBlockAnch: true},
	OpPhi:        {name: "Phi", isPhi: true},
	OpJump:       {name: "Jump", isEnd: true},
	OpBranch:     {name: "Branch", isEnd: true},
	OpCall:       {name: "Call", tuple: true},
	OpReturn:     {name: "Return", isEnd: true},
	OpProj:       {name: "Proj", isProj: true},
	OpSpill:      {name: "Spill"},
	OpReload:     {name: "Reload"},
	OpPerm:       {name: "Perm", tuple: true},
	OpCopy:       {name: "Copy"},
	OpKeep:       {name: "Keep", isKeep: true},
	OpCopyKeep:   {name: "CopyKeep", isKeep: true},
	OpMemPerm:    {name: "MemPerm", tuple: true},
	OpIncSP:      {name: "IncSP"},
	OpAddSP:      {name: "AddSP"},
	OpSubSP:      {name: "SubSP"},
	OpFrameAddr:  {name: "FrameAddr"},
	OpBarrier:    {name: "Barrier", isKeep: true},
	OpRegParams:  {name: "RegParams", tuple: true},
}

func (op Opcode) String() string { return opcodeTable[op].name }

// IsPhi reports whether op is a Phi node; phi nodes are never scheduled as
// ordinary instructions (spec.md §3 invariants) — they occupy position
// zero of their block implicitly.
func (op Opcode) IsPhi() bool { return opcodeTable[op].isPhi }

// IsProj reports whether op is a Proj node naming one field of a
// tuple-producing node.
func (op Opcode) IsProj() bool { return opcodeTable[op].isProj }

// IsBlockStart reports whether op is the synthetic block-entry marker.
func (op Opcode) IsBlockStart() bool { return opcodeTable[op].isBlockAnch }

// IsKeep reports whether op must be scheduled as soon as it becomes ready
// (spec.md §4.D step 3: keep/copy-keep/sync nodes take priority over the
// selector strategy).
func (op Opcode) IsKeep() bool { return opcodeTable[op].isKeep }

// IsEnd reports whether op is a control terminator (jump/branch/return).
func (op Opcode) IsEnd() bool { return opcodeTable[op].isEnd }

// ProducesTuple reports whether op produces a tuple consumed via Proj
// nodes (e.g. Div's quotient/remainder, Call's return values, Perm's
// permuted outputs).
func (op Opcode) ProducesTuple() bool { return opcodeTable[op].tuple }

// Commutative reports whether operand order is semantically irrelevant,
// which the constraint handler's pair-up step (spec.md §4.F) may use to
// prefer one operand over another when both are eligible.
func (op Opcode) Commutative() bool { return opcodeTable[op].commutative }
