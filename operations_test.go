package nbadet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerset(t *testing.T) {
	t.Run("EventuallyAlways", func(t *testing.T) {
		nba := (&Automata{}).MakeEventuallyAlways(1, 0)
		m := newAdjacencyMatrix(nba)
		ps, err := NewPowerset(context.Background(), m, setOf(0))
		require.NoError(t, err)

		require.Equal(t, 2, ps.NumSets())
		assert.Equal(t, 1, ps.NumPropositions())
		assert.Equal(t, "{0}", ps.Set(0).String())
		assert.Equal(t, "{0,1}", ps.Set(1).String())
		assert.Equal(t, 0, ps.Successor(0, 0))
		assert.Equal(t, 1, ps.Successor(0, 1))
		assert.Equal(t, 0, ps.Successor(1, 0))
		assert.Equal(t, 1, ps.Successor(1, 1))

		i, ok := ps.Index(FreezeStates(1, 0))
		require.True(t, ok)
		assert.Equal(t, 1, i)
		_, ok = ps.Index(FreezeStates(1))
		assert.False(t, ok)

		assert.Equal(t, [][]int{{0, 1}}, ps.Sccs())
	})

	t.Run("EmptySetIsASink", func(t *testing.T) {
		nba := (&Automata{}).MakeEmpty(1)
		ps, err := NewPowerset(context.Background(), newAdjacencyMatrix(nba), setOf(0))
		require.NoError(t, err)
		require.Equal(t, 2, ps.NumSets())
		assert.True(t, ps.Set(1).IsEmpty())
		assert.Equal(t, [][]int{{0}, {1}}, ps.Sccs())
	})

	t.Run("FollowsPruning", func(t *testing.T) {
		conf, err := NewConfig(sccTestBuchi(t), DefaultArgs())
		require.NoError(t, err)
		ps, err := NewPowerset(context.Background(), conf.Matrix(), conf.InitialStates())
		require.NoError(t, err)

		for i := 0; i < ps.NumSets(); i++ {
			for v := Valuation(0); v < 2; v++ {
				want, _ := conf.Matrix().PowerSucc(ps.Set(i).Set(), v)
				assert.Equal(t, setString(want), ps.Set(ps.Successor(i, v)).String())
			}
		}
		// the accepting sink {9} swallows every set reaching it
		j, ok := ps.Index(FreezeStates(9))
		require.True(t, ok)
		assert.Equal(t, j, ps.Successor(j, 0))
		assert.Equal(t, j, ps.Successor(j, 1))
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewPowerset(ctx, newAdjacencyMatrix(sccTestBuchi(t)), setOf(0))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsEmpty(t *testing.T) {
	a := &Automata{}
	tests := []struct {
		name string
		nba  NBA
		want bool
	}{
		{"Empty", a.MakeEmpty(1), true},
		{"Universal", a.MakeUniversal(1), false},
		{"EventuallyAlways", a.MakeEventuallyAlways(2, 1), false},
		{"Sccs", sccTestBuchi(t), false},
		{"AcceptingEdgeOffCycle", buildBuchi(t, 1, 2, []int{0}, []edgeSpec{
			{0, 1, True, true},
			{1, 1, True, false},
		}), true},
		{"AcceptingCycleUnreachable", buildBuchi(t, 1, 2, []int{0}, []edgeSpec{
			{0, 0, True, false},
			{1, 1, True, true},
		}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmpty(tt.nba))
		})
	}
}
