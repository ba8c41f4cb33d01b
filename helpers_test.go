package nbadet

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var setComparer = cmp.Comparer(func(a, b *bitset.BitSet) bool {
	return sameSet(a, b)
})

func rs(rank int, states ...int) RankedSet {
	return RankedSet{States: setOf(states...), Rank: rank}
}

type edgeSpec struct {
	from, to  int
	label     Label
	accepting bool
}

// buildBuchi creates n states and adds the edges, which must be grouped by source.
func buildBuchi(t testing.TB, numProps, n int, initial []int, edges []edgeSpec) *Buchi {
	t.Helper()
	a := NewBuchi(numProps)
	for i := 0; i < n; i++ {
		a.CreateState()
	}
	for _, s := range initial {
		a.SetInitial(s, true)
	}
	for _, e := range edges {
		require.NoError(t, a.AddEdge(e.from, e.to, e.label, e.accepting))
	}
	a.FinishState()
	return a
}

// sccTestBuchi covers all SCC classes. It has one proposition b; edges leaving
// the states 3, 4, 8, 9 and 10 are accepting. State 12 is unreachable.
func sccTestBuchi(t testing.TB) *Buchi {
	nb, b := Literal(0, false), Literal(0, true)
	return buildBuchi(t, 1, 13, []int{0}, []edgeSpec{
		{0, 0, nb, false}, {0, 1, nb, false}, {0, 3, nb, false}, {0, 10, nb, false},
		{1, 1, nb, false}, {1, 2, nb, false},
		{2, 1, nb, false}, {2, 9, nb, false},
		{3, 9, nb, true}, {3, 4, b, true}, {3, 7, b, true},
		{4, 5, nb, true},
		{5, 4, b, false}, {5, 6, nb, false}, {5, 7, nb, false},
		{7, 7, nb, false}, {7, 8, nb, false},
		{8, 7, b, true}, {8, 9, nb, true},
		{9, 9, True, true},
		{10, 11, True, true},
		{11, 10, nb, false}, {11, 11, b, false},
	})
}

// allArgs enumerates the update modes combined with a range of switch settings.
func allArgs() map[string]Args {
	out := map[string]Args{}
	for _, mode := range []UpdateMode{MullerSchupp, Safra, MaxMerge} {
		base := DefaultArgs()
		base.UpdateMode = mode
		out[mode.String()+"/plain"] = base

		sep := base
		sep.SeparateRejecting = true
		sep.SeparateAccepting = true
		sep.SeparateDeterministic = true
		sep.SeparateMixed = true
		out[mode.String()+"/separated"] = sep

		cyc := sep
		cyc.CycleAcceptingComponents = true
		out[mode.String()+"/cycling"] = cyc

		smart := base
		smart.UseSmartSuccessor = true
		out[mode.String()+"/smart"] = smart

		sugg := SuggestedArgs()
		sugg.UpdateMode = mode
		out[mode.String()+"/suggested"] = sugg

		topo := sep
		topo.UsePowersetTopology = true
		topo.UseSmartSuccessor = true
		out[mode.String()+"/topology"] = topo
	}
	return out
}
