package regalloc

import (
	"sort"

	"github.com/kestrel-lang/backend/internal/ir"
)

// Options configures one register-class pass of the pipeline.
type Options struct {
	Class     ir.ClassID
	ClassSize int      // k: the spiller's register budget for this class
	Regs      []int32  // allocatable physical register indices, ascending
	Selector  Selector // list-scheduler strategy; TrivialSelector if nil
	ClassOf   func(ir.Mode) ir.ClassID
}

// Allocate runs components B through G over g for one register class, in
// the control-flow order spec.md §2 specifies: "the driver invokes E (per
// register class), then D, then F, then G." Call once per register class
// the target defines (e.g. once for GPR, once for XMM); running the GPR
// pass first means the XMM pass's liveness oracle already sees whatever
// Spill/Reload/Perm nodes the GPR pass inserted.
func Allocate(g *ir.Graph, opt Options) {
	sel := opt.Selector
	if sel == nil {
		sel = TrivialSelector{}
	}

	oracle := BuildOracle(g, opt.Class, opt.ClassOf)
	env := NewEnv(g, opt.Class)
	belady := NewBelady(g, opt.Class, opt.ClassSize, oracle, env, opt.ClassOf)
	belady.Run()
	env.Materialize()

	ScheduleGraph(g, sel)

	postSpillOracle := BuildOracle(g, opt.Class, opt.ClassOf)
	liveAcross := precomputeLiveAcross(postSpillOracle, g, opt.Class, opt.ClassOf)

	ch := NewConstraintHandler(g, opt.Class, opt.ClassSize)
	ch.Run(func(b *ir.Block, instr *ir.Node) []*ir.Node {
		return liveAcross[b.ID()][instr]
	})

	if !g.HasDominators() {
		g.ComputeDominators()
	}
	colorOracle := BuildOracle(g, opt.Class, opt.ClassOf)
	colorer := NewColorer(g, opt.Class, opt.Regs, opt.ClassOf)
	colorer.Run(colorOracle.LiveIn)
}

// precomputeLiveAcross returns, per block, the set of class-relevant
// values live at each instruction's program point (including ones not
// read by that instruction) — spec.md §4.F step 2's "every value live
// across I".
func precomputeLiveAcross(oracle *Oracle, g *ir.Graph, class ir.ClassID, classOf func(ir.Mode) ir.ClassID) map[ir.BlockID]map[*ir.Node][]*ir.Node {
	out := make(map[ir.BlockID]map[*ir.Node][]*ir.Node, len(g.Blocks))
	for _, b := range g.Blocks {
		live := make(map[*ir.Node]struct{})
		for v := range oracle.LiveIn(b) {
			live[v] = struct{}{}
		}
		perInstr := make(map[*ir.Node][]*ir.Node)
		order := b.Schedule().Order()
		for tick, n := range order {
			snap := make([]*ir.Node, 0, len(live))
			for v := range live {
				snap = append(snap, v)
			}
			sort.Slice(snap, func(i, j int) bool { return snap[i].ID() < snap[j].ID() })
			perInstr[n] = snap

			for _, in := range n.Inputs {
				if !in.Mode.RegRelevant() || classOf(in.Mode) != class {
					continue
				}
				point := ProgramPoint{Block: b, Tick: tick + 1}
				if oracle.NextUse(point, in, false) == Infinite {
					delete(live, in)
				}
			}
			if n.Mode.RegRelevant() && classOf(n.Mode) == class {
				live[n] = struct{}{}
			}
		}
		out[b.ID()] = perInstr
	}
	return out
}
