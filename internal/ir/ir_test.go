package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceInputRewiresUsers(t *testing.T) {
	bd := NewBuilder()
	b := bd.G.Start
	c1 := bd.Const(b, ModeInt32, 1)
	c2 := bd.Const(b, ModeInt32, 2)
	add := bd.BinOp(b, OpAdd, ModeInt32, c1, c2)

	require.Equal(t, []*Node{add}, c1.DataSuccessors())

	reload := bd.G.NewNode(OpReload, ModeInt32, b)
	add.ReplaceInput(c1, reload)

	require.Empty(t, c1.DataSuccessors())
	require.Equal(t, []*Node{add}, reload.DataSuccessors())
	require.Equal(t, []*Node{reload, c2}, add.Inputs)
}

func TestReplaceInputPanicsOnMissingEdge(t *testing.T) {
	bd := NewBuilder()
	b := bd.G.Start
	c1 := bd.Const(b, ModeInt32, 1)
	c2 := bd.Const(b, ModeInt32, 2)
	unrelated := bd.Const(b, ModeInt32, 3)
	add := bd.BinOp(b, OpAdd, ModeInt32, c1, c2)

	require.Panics(t, func() { add.ReplaceInput(unrelated, c1) })
}

func TestScheduleInsertBeforeAfter(t *testing.T) {
	bd := NewBuilder()
	b := bd.G.Start
	c1 := bd.Const(b, ModeInt32, 1)
	c2 := bd.Const(b, ModeInt32, 2)
	sched := b.Schedule()
	require.Equal(t, 0, sched.Position(c1))
	require.Equal(t, 1, sched.Position(c2))

	spill := bd.G.NewNode(OpSpill, ModeInt32, b)
	sched.InsertAfter(spill, c1)
	require.Equal(t, []*Node{c1, spill, c2}, sched.Order())

	reload := bd.G.NewNode(OpReload, ModeInt32, b)
	sched.InsertBefore(reload, c2)
	require.Equal(t, []*Node{c1, spill, reload, c2}, sched.Order())

	sched.Remove(spill)
	require.Equal(t, []*Node{c1, reload, c2}, sched.Order())
	require.Equal(t, -1, sched.Position(spill))
}

func TestComputeDominatorsDiamond(t *testing.T) {
	bd := NewBuilder()
	entry := bd.G.Start
	left := bd.Block()
	right := bd.Block()
	join := bd.Block()
	bd.Link(entry, left)
	bd.Link(entry, right)
	bd.Link(left, join)
	bd.Link(right, join)
	bd.SetEnd(join)

	bd.G.ComputeDominators()

	require.Nil(t, entry.IDom)
	require.Equal(t, entry, left.IDom)
	require.Equal(t, entry, right.IDom)
	require.Equal(t, entry, join.IDom)

	pre := bd.G.DomPreorder()
	require.Equal(t, entry, pre[0])
}

func TestNodePoolAssignsDistinctIDs(t *testing.T) {
	bd := NewBuilder()
	b := bd.G.Start
	seen := map[NodeID]bool{}
	for i := 0; i < 300; i++ {
		n := bd.Const(b, ModeInt32, int64(i))
		require.False(t, seen[n.ID()])
		seen[n.ID()] = true
	}
}
