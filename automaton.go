package nbadet

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// BuchiEdge is one edge of an NBA taken on a concrete valuation.
type BuchiEdge struct {
	Successor int
	Accepting bool
}

// NBA is the input automaton. States are numbered densely from 0 to NumStates()-1
// and Edges is only ever called with valuations below 2^NumPropositions().
type NBA interface {
	NumStates() int
	NumPropositions() int
	InitialStates() []int
	Edges(state int, v Valuation) []BuchiEdge
}

var _ NBA = &Buchi{}

// Buchi is an in-memory NBA with state-based storage of transition-based acceptance.
// States are created with CreateState and all edges leaving a state must be added at
// once; once a state is finished, either because edges are added to another state or
// because FinishState is called, its edges are sorted (by dest, then label, then
// acceptance) and exact duplicates are dropped.
type Buchi struct {
	numProps int

	// Index in the edges array where the state's edges start, or -1 if none have been
	// added yet, followed by the number of edges.
	states []int

	// Holds dest, care, value, accepting for each edge.
	edges []int

	nextEdge int
	curState int
	initial  *bitset.BitSet
}

func NewBuchi(numProps int) *Buchi {
	return NewBuchiV1(numProps, 2, 2)
}

func NewBuchiV1(numProps, numStates, numEdges int) *Buchi {
	return &Buchi{
		numProps: numProps,
		curState: -1,
		states:   make([]int, 0, numStates*2),
		edges:    make([]int, 0, numEdges*4),
		initial:  bitset.New(uint(numStates)),
	}
}

// CreateState creates a new state and returns its index.
func (a *Buchi) CreateState() int {
	state := len(a.states) / 2
	a.states = append(a.states, -1, 0)
	return state
}

// SetInitial marks or unmarks state as initial.
func (a *Buchi) SetInitial(state int, initial bool) {
	a.initial.SetTo(uint(state), initial)
}

// AddEdge adds an edge from source to dest taken on every valuation matching label.
func (a *Buchi) AddEdge(source, dest int, label Label, accepting bool) error {
	if source < 0 || source >= a.NumStates() || dest < 0 || dest >= a.NumStates() {
		return fmt.Errorf("edge %d -> %d refers to an unknown state", source, dest)
	}
	if a.curState != source {
		if a.curState != -1 {
			a.finishCurrentState()
		}
		a.curState = source
		if a.states[2*a.curState] != -1 {
			return fmt.Errorf("from state (%d) already had transitions added", source)
		}
		a.states[2*a.curState] = a.nextEdge
	}

	acc := 0
	if accepting {
		acc = 1
	}
	a.edges = grow(a.edges, a.nextEdge+4)
	a.edges[a.nextEdge] = dest
	a.edges[a.nextEdge+1] = int(label.Care)
	a.edges[a.nextEdge+2] = int(label.Value & label.Care)
	a.edges[a.nextEdge+3] = acc
	a.nextEdge += 4

	a.states[2*a.curState+1]++
	return nil
}

// MustAddEdge is AddEdge for statically known automata; it panics on error.
func (a *Buchi) MustAddEdge(source, dest int, label Label, accepting bool) {
	if err := a.AddEdge(source, dest, label, accepting); err != nil {
		panic(err)
	}
}

// FinishState finishes the current state. It is called automatically when edges are
// added to another state, but the last state must be finished explicitly.
func (a *Buchi) FinishState() {
	if a.curState != -1 {
		a.finishCurrentState()
		a.curState = -1
	}
}

func (a *Buchi) finishCurrentState() {
	numEdges := a.states[2*a.curState+1]
	offset := a.states[2*a.curState]

	sort.Sort(&edgeSorter{values: a.edges[offset : offset+4*numEdges]})

	upto := 0
	for i := 0; i < numEdges; i++ {
		if upto > 0 && a.sameEdge(offset+4*(upto-1), offset+4*i) {
			continue
		}
		copy(a.edges[offset+4*upto:offset+4*upto+4], a.edges[offset+4*i:offset+4*i+4])
		upto++
	}
	a.nextEdge -= (numEdges - upto) * 4
	a.states[2*a.curState+1] = upto
}

func (a *Buchi) sameEdge(i, j int) bool {
	return a.edges[i] == a.edges[j] && a.edges[i+1] == a.edges[j+1] &&
		a.edges[i+2] == a.edges[j+2] && a.edges[i+3] == a.edges[j+3]
}

func (a *Buchi) NumStates() int {
	return len(a.states) / 2
}

func (a *Buchi) NumPropositions() int {
	return a.numProps
}

// NumEdges counts the labelled edges, not the per-valuation ones.
func (a *Buchi) NumEdges() int {
	return a.nextEdge / 4
}

func (a *Buchi) InitialStates() []int {
	return setToSlice(a.initial)
}

// Edges lists the edges of state matching v. A successor may appear twice, once
// through an accepting and once through a rejecting edge.
func (a *Buchi) Edges(state int, v Valuation) []BuchiEdge {
	offset := a.states[2*state]
	count := a.states[2*state+1]
	var out []BuchiEdge
	for i := 0; i < count; i++ {
		e := offset + 4*i
		label := Label{Care: Valuation(a.edges[e+1]), Value: Valuation(a.edges[e+2])}
		if !label.Matches(v) {
			continue
		}
		edge := BuchiEdge{Successor: a.edges[e], Accepting: a.edges[e+3] == 1}
		if n := len(out); n > 0 && out[n-1] == edge {
			continue
		}
		out = append(out, edge)
	}
	return out
}

// LabelledEdge is an edge as it was added to the builder.
type LabelledEdge struct {
	Dest      int
	Label     Label
	Accepting bool
}

// LabelledEdges returns the edges leaving state, sorted.
func (a *Buchi) LabelledEdges(state int) []LabelledEdge {
	offset := a.states[2*state]
	count := a.states[2*state+1]
	out := make([]LabelledEdge, 0, count)
	for i := 0; i < count; i++ {
		e := offset + 4*i
		out = append(out, LabelledEdge{
			Dest:      a.edges[e],
			Label:     Label{Care: Valuation(a.edges[e+1]), Value: Valuation(a.edges[e+2])},
			Accepting: a.edges[e+3] == 1,
		})
	}
	return out
}

var _ sort.Interface = &edgeSorter{}

// Sorts packed edges by dest, care, value and acceptance.
type edgeSorter struct {
	values []int
}

func (s *edgeSorter) Len() int {
	return len(s.values) / 4
}

func (s *edgeSorter) Less(i, j int) bool {
	i *= 4
	j *= 4
	for k := 0; k < 4; k++ {
		if s.values[i+k] != s.values[j+k] {
			return s.values[i+k] < s.values[j+k]
		}
	}
	return false
}

func (s *edgeSorter) Swap(i, j int) {
	i *= 4
	j *= 4
	for k := 0; k < 4; k++ {
		s.values[i+k], s.values[j+k] = s.values[j+k], s.values[i+k]
	}
}
