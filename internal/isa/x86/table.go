// Package x86 is the declarative external operand/register table spec.md
// §6 describes as "the only target-specific knowledge the core consumes":
// a per-class list of physical registers with caller-save/callee-save/
// ignore/synthetic flags, scoped to the 32-bit x86 register file. A real
// build would also generate per-opcode operand requirement tables here
// from the latency/emit-template specification; spec.md §1 treats that
// generator and its emit templates as an external, pre-generated input,
// so this package stops at the register-class tables the regalloc
// package actually consumes.
package x86

import "github.com/kestrel-lang/backend/internal/ir"

// Register classes. GPR holds the 8 general-purpose 32-bit registers;
// XMM holds the 8 SSE registers used for the float32/float64 modes. The
// class IDs match ir.ClassID so BackendInfo.OutputReq.Class round-trips
// directly into the Classes table below.
const (
	ClassGPR ir.ClassID = iota
	ClassXMM
)

// RegRole is the type flag spec.md §3 attaches to each physical register:
// caller-save (clobbered across calls, prefer for short-lived values),
// callee-save (must be preserved across calls, prefer for values live
// across one), ignore (never allocated — the stack pointer), or synthetic
// (placeholder slots with no real encoding, e.g. an unused/no-reg entry).
type RegRole uint8

const (
	RoleCallerSave RegRole = iota
	RoleCalleeSave
	RoleIgnore
	RoleSynthetic
)

// PhysReg names one physical register within a class.
type PhysReg struct {
	Name string
	Role RegRole
}

// RegClass is a named set of physical registers sharing a mode (spec.md
// §3 "Register class"); the last-listed register determines the largest
// mode the class can hold, matching the 32-bit-x86 convention that GPRs
// widen up to ModePtr/ModeInt32 and XMMs up to ModeFloat64.
type RegClass struct {
	Name string
	Mode ir.Mode
	Regs []PhysReg
}

// GPR is the 32-bit x86 general-purpose register file. EBP and ESP are
// marked Ignore: the allocator never assigns values to them (EBP anchors
// the frame, ESP is the stack pointer tracked directly by the IR's
// StackPtrReg rather than through ordinary coloring).
var GPR = RegClass{
	Name: "GPR",
	Mode: ir.ModePtr,
	Regs: []PhysReg{
		{Name: "eax", Role: RoleCallerSave},
		{Name: "ecx", Role: RoleCallerSave},
		{Name: "edx", Role: RoleCallerSave},
		{Name: "ebx", Role: RoleCalleeSave},
		{Name: "esi", Role: RoleCalleeSave},
		{Name: "edi", Role: RoleCalleeSave},
		{Name: "ebp", Role: RoleIgnore},
		{Name: "esp", Role: RoleIgnore},
	},
}

// XMM is the SSE register file used for float32/float64 values. All
// eight are caller-save on the cdecl/stdcall-style calling convention
// this target assumes.
var XMM = RegClass{
	Name: "XMM",
	Mode: ir.ModeFloat64,
	Regs: []PhysReg{
		{Name: "xmm0", Role: RoleCallerSave},
		{Name: "xmm1", Role: RoleCallerSave},
		{Name: "xmm2", Role: RoleCallerSave},
		{Name: "xmm3", Role: RoleCallerSave},
		{Name: "xmm4", Role: RoleCallerSave},
		{Name: "xmm5", Role: RoleCallerSave},
		{Name: "xmm6", Role: RoleCallerSave},
		{Name: "xmm7", Role: RoleCallerSave},
	},
}

// Classes indexes RegClass by ClassID.
var Classes = [...]*RegClass{ClassGPR: &GPR, ClassXMM: &XMM}

// StackPointerIndex is ESP's index within GPR.Regs, used to seed
// ir.Graph.StackPtrReg.
const StackPointerIndex = 7

// Allocatable returns the indices of every register in the class that
// participates in ordinary coloring (excludes Ignore and Synthetic
// roles), in ascending index order — the order the chordal colorer's
// lowest-index-first rule (spec.md §4.G step 3) scans.
func (c *RegClass) Allocatable() []int32 {
	out := make([]int32, 0, len(c.Regs))
	for i, r := range c.Regs {
		if r.Role == RoleIgnore || r.Role == RoleSynthetic {
			continue
		}
		out = append(out, int32(i))
	}
	return out
}

// CalleeSaved returns the indices of the class's callee-saved registers.
func (c *RegClass) CalleeSaved() []int32 {
	out := make([]int32, 0, len(c.Regs))
	for i, r := range c.Regs {
		if r.Role == RoleCalleeSave {
			out = append(out, int32(i))
		}
	}
	return out
}

// Size returns the number of allocatable registers in the class — the
// "k" the Belady spiller targets (spec.md §4.E).
func (c *RegClass) Size() int { return len(c.Allocatable()) }

// RegName returns the register name at the given index, for diagnostics and
// emit-template lookups.
func (c *RegClass) RegName(idx int32) string { return c.Regs[idx].Name }

// ClassOf maps a Mode to the register class that holds it on this
// target: integer and pointer modes go to GPR, float modes to XMM.
// Memory/control/tuple modes are not register-relevant and are never
// passed here (callers should guard with Mode.RegRelevant first).
func ClassOf(m ir.Mode) ir.ClassID {
	switch m {
	case ir.ModeFloat32, ir.ModeFloat64:
		return ClassXMM
	default:
		return ClassGPR
	}
}
