// Command kestrelc runs the register-allocation pipeline (spec.md §2) over
// a graph built by the front-end boundary and reports the resulting
// schedule and spill/assignment summary, mirroring the small CLI wrapper
// pattern the teacher's examples directory (wazero's example/... and
// cmd/wazerolint) uses to exercise a library package from a standalone
// binary.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kestrel-lang/backend/internal/ir"
	"github.com/kestrel-lang/backend/internal/isa/x86"
	"github.com/kestrel-lang/backend/internal/regalloc"
	"github.com/kestrel-lang/backend/internal/trace"
)

type config struct {
	traceSchedule bool
	traceSpill    bool
	traceRegAlloc bool
	selector      string
}

func parseFlags(args []string) (config, error) {
	fs := flag.NewFlagSet("kestrelc", flag.ContinueOnError)
	var c config
	fs.BoolVar(&c.traceSchedule, "trace.schedule", false, "set trace.SchedulingEnabled (no pipeline stage prints trace output)")
	fs.BoolVar(&c.traceSpill, "trace.spill", false, "set trace.SpillEnabled (no pipeline stage prints trace output)")
	fs.BoolVar(&c.traceRegAlloc, "trace.regalloc", false, "set trace.RegAllocEnabled (no pipeline stage prints trace output)")
	fs.StringVar(&c.selector, "selector", "trivial", "list-scheduler strategy: trivial|pressure")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	return c, nil
}

func selectorFor(name string) (regalloc.Selector, error) {
	switch name {
	case "trivial":
		return regalloc.TrivialSelector{}, nil
	case "pressure":
		return regalloc.PressureSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown -selector %q", name)
	}
}

// buildSample constructs a small graph standing in for the front-end
// boundary spec.md §6 leaves open ("how IR arrives"): three integer
// constants in one block, an Add of the first two, and a return reading
// the sum and the third constant. All values are integers, so only the
// GPR pass has values to allocate.
func buildSample() *ir.Graph {
	bd := ir.NewBuilder()
	b := bd.G.Start
	a := bd.Const(b, ir.ModeInt32, 1)
	c := bd.Const(b, ir.ModeInt32, 2)
	d := bd.Const(b, ir.ModeInt32, 3)
	sum := bd.BinOp(b, ir.OpAdd, ir.ModeInt32, a, c)
	bd.Return(b, sum, d)
	bd.SetEnd(b)
	return bd.G
}

func run(args []string, stdout *os.File) error {
	c, err := parseFlags(args)
	if err != nil {
		return err
	}
	trace.SchedulingEnabled = c.traceSchedule
	trace.SpillEnabled = c.traceSpill
	trace.RegAllocEnabled = c.traceRegAlloc

	sel, err := selectorFor(c.selector)
	if err != nil {
		return err
	}

	g := buildSample()

	regalloc.Allocate(g, regalloc.Options{
		Class:     x86.ClassGPR,
		ClassSize: x86.GPR.Size(),
		Regs:      x86.GPR.Allocatable(),
		Selector:  sel,
		ClassOf:   x86.ClassOf,
	})
	regalloc.Allocate(g, regalloc.Options{
		Class:     x86.ClassXMM,
		ClassSize: x86.XMM.Size(),
		Regs:      x86.XMM.Allocatable(),
		Selector:  sel,
		ClassOf:   x86.ClassOf,
	})

	for _, b := range g.Blocks {
		fmt.Fprintf(stdout, "block %d:\n", b.ID())
		for _, n := range b.Schedule().Order() {
			info := g.Backend(n)
			reg := "-"
			if info.AssignedReg >= 0 {
				if n.Mode == ir.ModeFloat32 || n.Mode == ir.ModeFloat64 {
					reg = x86.XMM.RegName(info.AssignedReg)
				} else {
					reg = x86.GPR.RegName(info.AssignedReg)
				}
			}
			fmt.Fprintf(stdout, "  %-5d %-10s reg=%s\n", n.ID(), n.Op, reg)
		}
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}
