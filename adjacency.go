package nbadet

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// AdjacencyMatrix stores, for every valuation and state, the successors of the state
// and the subset of them reached through an accepting edge. It is immutable once built.
type AdjacencyMatrix struct {
	numStates int
	numProps  int

	// Indexed [valuation][state].
	all [][]*bitset.BitSet
	acc [][]*bitset.BitSet

	// Optimizations applied by PowerSucc, nil when unused.
	accSinks *bitset.BitSet
	ext      *InclusionMask
}

func newAdjacencyMatrix(nba NBA) *AdjacencyMatrix {
	n := nba.NumStates()
	numVals := NumValuations(nba.NumPropositions())
	m := &AdjacencyMatrix{
		numStates: n,
		numProps:  nba.NumPropositions(),
		all:       make([][]*bitset.BitSet, numVals),
		acc:       make([][]*bitset.BitSet, numVals),
	}
	for v := 0; v < numVals; v++ {
		m.all[v] = make([]*bitset.BitSet, n)
		m.acc[v] = make([]*bitset.BitSet, n)
		for s := 0; s < n; s++ {
			all := bitset.New(uint(n))
			acc := bitset.New(uint(n))
			for _, e := range nba.Edges(s, Valuation(v)) {
				all.Set(uint(e.Successor))
				if e.Accepting {
					acc.Set(uint(e.Successor))
				}
			}
			m.all[v][s] = all
			m.acc[v][s] = acc
		}
	}
	return m
}

// withPruning returns a copy of m whose PowerSucc short-circuits on accSinks and
// prunes with ext. Empty arguments disable the respective optimization.
func (m *AdjacencyMatrix) withPruning(accSinks *bitset.BitSet, ext *InclusionMask) *AdjacencyMatrix {
	c := *m
	c.accSinks = nil
	if !isEmptySet(accSinks) {
		c.accSinks = cloneSet(accSinks)
	}
	c.ext = nil
	if !ext.IsEmpty() {
		c.ext = ext
	}
	return &c
}

func (m *AdjacencyMatrix) NumStates() int {
	return m.numStates
}

func (m *AdjacencyMatrix) NumPropositions() int {
	return m.numProps
}

func (m *AdjacencyMatrix) checkValuation(v Valuation) {
	if int(v) >= len(m.all) {
		panic(fmt.Sprintf("nbadet: valuation %d out of range for %d propositions", v, m.numProps))
	}
}

// Succ returns copies of the successors of state on v, all and accepting.
func (m *AdjacencyMatrix) Succ(state int, v Valuation) (*bitset.BitSet, *bitset.BitSet) {
	m.checkValuation(v)
	return m.all[v][state].Clone(), m.acc[v][state].Clone()
}

// PowerSucc computes the successors of a set of states on v. If an accepting
// pseudo-sink is reached, both results are the sink set. Otherwise, with an external
// inclusion mask, every state dominated by another successor is dropped and the
// accepting successors are restricted to what remains.
func (m *AdjacencyMatrix) PowerSucc(set *bitset.BitSet, v Valuation) (*bitset.BitSet, *bitset.BitSet) {
	m.checkValuation(v)
	all := bitset.New(uint(m.numStates))
	acc := bitset.New(uint(m.numStates))
	forEachState(set, func(s int) {
		if s >= m.numStates {
			panic(fmt.Sprintf("nbadet: state %d out of range for %d states", s, m.numStates))
		}
		all.InPlaceUnion(m.all[v][s])
		acc.InPlaceUnion(m.acc[v][s])
	})

	if m.accSinks != nil && !disjoint(all, m.accSinks) {
		return m.accSinks.Clone(), m.accSinks.Clone()
	}

	if m.ext != nil {
		masked := all.Clone()
		forEachState(all, func(s int) {
			m.ext.RemoveSubsumed(s, masked)
		})
		return masked, intersection(acc, masked)
	}
	return all, acc
}

// AcceptingPseudoSinks returns the states with an accepting self-loop on every
// valuation. Their language is universal.
func (m *AdjacencyMatrix) AcceptingPseudoSinks() *bitset.BitSet {
	sinks := bitset.New(uint(m.numStates))
	for s := 0; s < m.numStates; s++ {
		universal := true
		for v := range m.acc {
			if !m.acc[v][s].Test(uint(s)) {
				universal = false
				break
			}
		}
		if universal {
			sinks.Set(uint(s))
		}
	}
	return sinks
}

// String lists the non-empty entries as "state -[v]> accepting, rejecting".
func (m *AdjacencyMatrix) String() string {
	var sb strings.Builder
	for s := 0; s < m.numStates; s++ {
		for v := range m.all {
			if m.all[v][s].None() {
				continue
			}
			fmt.Fprintf(&sb, "%d\t-[%d]>\t%s, %s\n", s, v,
				setString(m.acc[v][s]), setString(without(m.all[v][s], m.acc[v][s])))
		}
	}
	return sb.String()
}
