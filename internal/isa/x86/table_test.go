package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGPRExcludesFramePointerAndStackPointer(t *testing.T) {
	alloc := GPR.Allocatable()
	require.Len(t, alloc, 6)
	for _, idx := range alloc {
		name := GPR.RegName(idx)
		require.NotEqual(t, "ebp", name)
		require.NotEqual(t, "esp", name)
	}
}

func TestGPRSizeMatchesAllocatable(t *testing.T) {
	require.Equal(t, len(GPR.Allocatable()), GPR.Size())
	require.Equal(t, "esp", GPR.RegName(StackPointerIndex))
}

func TestXMMAllCallerSaved(t *testing.T) {
	require.Len(t, XMM.Allocatable(), 8)
	require.Empty(t, XMM.CalleeSaved())
}

func TestGPRCalleeSavedSubset(t *testing.T) {
	callee := GPR.CalleeSaved()
	names := make([]string, len(callee))
	for i, idx := range callee {
		names[i] = GPR.RegName(idx)
	}
	require.ElementsMatch(t, []string{"ebx", "esi", "edi"}, names)
}
