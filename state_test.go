package nbadet

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separatedConfig(t *testing.T) *Config {
	t.Helper()
	args := DefaultArgs()
	args.SeparateRejecting = true
	args.SeparateAccepting = true
	args.SeparateDeterministic = true
	conf, err := NewConfig(sccTestBuchi(t), args)
	require.NoError(t, err)
	return conf
}

func TestNewDetState(t *testing.T) {
	conf := separatedConfig(t)
	st := NewDetState(conf, setOf(0, 4, 7, 8, 10))

	assert.Equal(t, "N:{0}\tAB:{4} AC:() D:({10}:0) M:({7,8}:1)", st.String())
	assert.Equal(t, "{0,4,7,8,10}", setString(st.PowerSet()))
	_, ok := st.AcceptingActive()
	assert.False(t, ok)
	assert.NoError(t, st.Validate())
	assert.False(t, st.IsEmpty())

	want := []*bitset.BitSet{setOf(0, 4, 7, 8, 10), setOf(10), setOf(7, 8)}
	assert.Empty(t, cmp.Diff(want, st.TrieEncoding(), setComparer))

	// accessors hand out copies
	st.PowerSet().Set(3)
	st.DeterministicSlices()[0][0].States.Set(11)
	assert.Equal(t, "{0,4,7,8,10}", setString(st.PowerSet()))
	assert.Equal(t, "{10}", setString(st.DeterministicSlices()[0][0].States))

	empty := NewDetState(conf, newSet())
	assert.True(t, empty.IsEmpty())
	assert.NoError(t, empty.Validate())
	assert.Equal(t, "N:{}\tAB:{} AC:() D:() M:()", empty.String())
}

func TestDetStateEquality(t *testing.T) {
	conf := separatedConfig(t)
	a := NewDetState(conf, setOf(0, 7))
	b := NewDetState(conf, setOf(7, 0))
	c := NewDetState(conf, setOf(0, 8))

	assert.True(t, a.Equals(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(FreezeStates(0, 7)))

	m := NewHashMap[int]()
	m.Set(a, 1)
	got, ok := m.Get(b)
	require.True(t, ok)
	assert.Equal(t, 1, got)
}

func TestDetStateFinerOrEqual(t *testing.T) {
	mk := func(mixed RankedSlice) *DetState {
		st := &DetState{
			powerSet:  mixed.States(),
			rejecting: newSet(),
			buffer:    newSet(),
			mixed:     []RankedSlice{mixed},
		}
		st.hash = st.computeHash()
		return st
	}
	fine := mk(RankedSlice{rs(1, 0), rs(2, 1), rs(0, 2)})
	coarse := mk(RankedSlice{rs(1, 0, 1), rs(0, 2)})
	other := mk(RankedSlice{rs(1, 1), rs(2, 0), rs(0, 2)})

	assert.True(t, fine.FinerOrEqual(fine))
	assert.True(t, fine.FinerOrEqual(coarse))
	assert.False(t, coarse.FinerOrEqual(fine))
	assert.False(t, fine.FinerOrEqual(other))
	assert.NoError(t, fine.Validate())
	assert.NoError(t, coarse.Validate())
}

func TestDetStateValidate(t *testing.T) {
	build := func(ps *bitset.BitSet, rej *bitset.BitSet, mixed RankedSlice) *DetState {
		return &DetState{powerSet: ps, rejecting: rej, buffer: newSet(), mixed: []RankedSlice{mixed}}
	}
	tests := []struct {
		name string
		st   *DetState
		msg  string
	}{
		{"Overlap", build(setOf(0, 1), setOf(0), RankedSlice{rs(0, 0, 1)}), "overlaps"},
		{"EmptyEntry", build(setOf(0), setOf(0), RankedSlice{rs(0)}), "empty slice entry"},
		{"Coverage", build(setOf(0, 1, 2), setOf(0), RankedSlice{rs(0, 1)}), "do not cover"},
		{"SparseRanks", build(setOf(0, 1), newSet(), RankedSlice{rs(0, 0), rs(2, 1)}), "not dense"},
		{"DuplicateRanks", build(setOf(0, 1), newSet(), RankedSlice{rs(0, 0), rs(0, 1)}), "not dense"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.st.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	active := &DetState{
		powerSet:  setOf(0),
		rejecting: newSet(),
		buffer:    newSet(),
		active:    &RankedSet{States: newSet(), Rank: 0},
	}
	assert.ErrorContains(t, active.Validate(), "empty active accepting set")
}

func TestPriorities(t *testing.T) {
	tests := []struct {
		rank     int
		good     bool
		priority int
	}{
		{0, true, 2},
		{0, false, 1},
		{3, true, 8},
		{3, false, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.priority, RankToPriority(tt.rank, tt.good))
		rank, good := PriorityToRank(tt.priority)
		assert.Equal(t, tt.rank, rank)
		assert.Equal(t, tt.good, good)
	}

	// lower ranks dominate
	assert.Less(t, RankToPriority(0, false), RankToPriority(1, true))
	assert.Less(t, RankToPriority(1, false), RankToPriority(1, true))
}
