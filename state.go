package nbadet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

var _ Hashable = &DetState{}

// DetState is a state of the deterministic parity automaton. Every NBA state it
// tracks belongs to exactly one component: the rejecting set, the accepting buffer,
// the active accepting set, or an entry of a deterministic or mixed slice. The
// union of the components is the power set.
//
// DetState values are immutable; the engine builds new ones for every step.
type DetState struct {
	powerSet  *bitset.BitSet
	rejecting *bitset.BitSet
	buffer    *bitset.BitSet
	active    *RankedSet
	det       []RankedSlice
	mixed     []RankedSlice

	hash uint64
}

// NewDetState distributes set over the components of conf. Rejecting and accepting
// states go to their plain sets, every non-empty deterministic or mixed group gets a
// singleton slice with its own rank.
func NewDetState(conf *Config, set *bitset.BitSet) *DetState {
	ranks := &rankGen{}
	sets := conf.Sets()
	st := &DetState{
		powerSet:  cloneSet(set),
		rejecting: intersection(set, sets.Rejecting),
		buffer:    intersection(set, sets.Accepting),
		det:       make([]RankedSlice, len(sets.Deterministic)),
		mixed:     make([]RankedSlice, len(sets.Mixed)),
	}
	for i, group := range sets.Deterministic {
		if part := intersection(set, group); !isEmptySet(part) {
			st.det[i] = SingletonSlice(part, ranks.fresh())
		}
	}
	for i, group := range sets.Mixed {
		if part := intersection(set, group); !isEmptySet(part) {
			st.mixed[i] = SingletonSlice(part, ranks.fresh())
		}
	}
	st.hash = st.computeHash()
	return st
}

// PowerSet returns the tracked NBA states.
func (st *DetState) PowerSet() *bitset.BitSet {
	return cloneSet(st.powerSet)
}

// Rejecting returns the tracked states of rejecting components.
func (st *DetState) Rejecting() *bitset.BitSet {
	return cloneSet(st.rejecting)
}

// AcceptingBuffer returns the accepting-component states waiting for the next breakpoint.
func (st *DetState) AcceptingBuffer() *bitset.BitSet {
	return cloneSet(st.buffer)
}

// AcceptingActive returns the active breakpoint set, if any.
func (st *DetState) AcceptingActive() (RankedSet, bool) {
	if st.active == nil {
		return RankedSet{}, false
	}
	return st.active.clone(), true
}

func (st *DetState) DeterministicSlices() []RankedSlice {
	return cloneSlices(st.det)
}

func (st *DetState) MixedSlices() []RankedSlice {
	return cloneSlices(st.mixed)
}

func (st *DetState) IsEmpty() bool {
	return isEmptySet(st.powerSet)
}

func cloneSlices(in []RankedSlice) []RankedSlice {
	out := make([]RankedSlice, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

func (st *DetState) computeHash() uint64 {
	h := hashSet(st.powerSet)
	h = combineHash(h, hashSet(st.rejecting))
	h = combineHash(h, hashSet(st.buffer))
	if st.active != nil {
		h = combineHash(h, hashSet(st.active.States))
		h = combineHash(h, uint64(st.active.Rank)+1)
	}
	for _, group := range [][]RankedSlice{st.det, st.mixed} {
		h = combineHash(h, uint64(len(group)))
		for _, sl := range group {
			h = combineHash(h, uint64(len(sl)))
			for _, e := range sl {
				h = combineHash(h, hashSet(e.States))
				h = combineHash(h, uint64(e.Rank))
			}
		}
	}
	return h
}

func (st *DetState) Hash() uint64 {
	return st.hash
}

func (st *DetState) Equals(other Hashable) bool {
	o, ok := other.(*DetState)
	if !ok || o == nil {
		return false
	}
	if st == o {
		return true
	}
	if st.hash != o.hash || !sameSet(st.powerSet, o.powerSet) ||
		!sameSet(st.rejecting, o.rejecting) || !sameSet(st.buffer, o.buffer) {
		return false
	}
	if (st.active == nil) != (o.active == nil) {
		return false
	}
	if st.active != nil && (st.active.Rank != o.active.Rank || !sameSet(st.active.States, o.active.States)) {
		return false
	}
	return slicesEqual(st.det, o.det) && slicesEqual(st.mixed, o.mixed)
}

func slicesEqual(a, b []RankedSlice) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (st *DetState) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "N:%s\tAB:%s AC:(", setString(st.rejecting), setString(st.buffer))
	if st.active != nil {
		sb.WriteString(st.active.String())
	}
	sb.WriteString(") D:(")
	writeSlices(&sb, st.det)
	sb.WriteString(") M:(")
	writeSlices(&sb, st.mixed)
	sb.WriteByte(')')
	return sb.String()
}

func writeSlices(sb *strings.Builder, slices []RankedSlice) {
	for i, sl := range slices {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(sl.String())
	}
}

// TrieEncoding is the power set followed by the unpruned sets of the active
// accepting set and all slices, in rank order.
func (st *DetState) TrieEncoding() []*bitset.BitSet {
	unpruned := RankedSlice{{States: st.powerSet, Rank: -1}}
	if st.active != nil {
		unpruned = append(unpruned, *st.active)
	}
	for _, sl := range st.mixed {
		unpruned = append(unpruned, sl.Unprune()...)
	}
	for _, sl := range st.det {
		unpruned = append(unpruned, sl.Unprune()...)
	}
	sortByRank(unpruned)
	out := make([]*bitset.BitSet, len(unpruned))
	for i, e := range unpruned {
		out[i] = cloneSet(e.States)
	}
	return out
}

// FinerOrEqual reports that o agrees with st on the plain components and every
// slice of o is a neighbour-merged version of the corresponding slice of st.
func (st *DetState) FinerOrEqual(o *DetState) bool {
	if !sameSet(st.powerSet, o.powerSet) || !sameSet(st.rejecting, o.rejecting) {
		return false
	}
	if (st.active == nil) != (o.active == nil) {
		return false
	}
	if st.active != nil && (st.active.Rank != o.active.Rank || !sameSet(st.active.States, o.active.States)) {
		return false
	}
	if len(st.mixed) != len(o.mixed) || len(st.det) != len(o.det) {
		return false
	}
	for i := range st.mixed {
		if !st.mixed[i].FinerOrEqual(o.mixed[i]) {
			return false
		}
	}
	for i := range st.det {
		if !st.det[i].FinerOrEqual(o.det[i]) {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants: the components are pairwise disjoint
// and cover the power set, slice entries are non-empty, and the ranks are distinct
// and dense from 0.
func (st *DetState) Validate() error {
	seen := newSet()
	claim := func(what string, set *bitset.BitSet) error {
		if !disjoint(seen, set) {
			return fmt.Errorf("%s overlaps earlier components in %s", what, st)
		}
		seen.InPlaceUnion(set)
		return nil
	}
	var ranks []int

	if err := claim("rejecting set", st.rejecting); err != nil {
		return err
	}
	if err := claim("accepting buffer", st.buffer); err != nil {
		return err
	}
	if st.active != nil {
		if isEmptySet(st.active.States) {
			return fmt.Errorf("empty active accepting set in %s", st)
		}
		if err := claim("active accepting set", st.active.States); err != nil {
			return err
		}
		ranks = append(ranks, st.active.Rank)
	}
	for _, group := range [][]RankedSlice{st.det, st.mixed} {
		for _, sl := range group {
			for _, e := range sl {
				if isEmptySet(e.States) {
					return fmt.Errorf("empty slice entry with rank %d in %s", e.Rank, st)
				}
				if err := claim("slice entry", e.States); err != nil {
					return err
				}
				ranks = append(ranks, e.Rank)
			}
		}
	}
	if !sameSet(seen, st.powerSet) {
		return fmt.Errorf("components %s do not cover power set %s", setString(seen), setString(st.powerSet))
	}
	sort.Ints(ranks)
	for i, r := range ranks {
		if r != i {
			return fmt.Errorf("ranks %v are not dense in %s", ranks, st)
		}
	}
	return nil
}

// RankToPriority turns an event of a rank into a min-even priority.
func RankToPriority(rank int, good bool) int {
	p := 2 * (rank + 1)
	if !good {
		p--
	}
	return p
}

// PriorityToRank is the inverse of RankToPriority.
func PriorityToRank(priority int) (rank int, good bool) {
	return (priority+1)/2 - 1, priority%2 == 0
}
