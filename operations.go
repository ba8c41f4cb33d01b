package nbadet

import (
	"context"

	"github.com/bits-and-blooms/bitset"
)

// Powerset is the reachable part of the subset construction of an NBA. Set 0 is
// the initial set.
type Powerset struct {
	numProps int
	sets     []FrozenSet
	index    *HashMap[int]
	// succ[i][v] is the index of the successor of set i on v.
	succ [][]int
}

// NewPowerset explores the subsets reachable from initial under m.PowerSucc, so the
// optimizations of m apply to the sets as well.
func NewPowerset(ctx context.Context, m *AdjacencyMatrix, initial *bitset.BitSet) (*Powerset, error) {
	numVals := NumValuations(m.NumPropositions())
	p := &Powerset{
		numProps: m.NumPropositions(),
		index:    NewHashMap[int](WithCapacity(16)),
	}

	worklist := make([]int, 0)
	add := func(set *bitset.BitSet) int {
		_, i, known := p.index.Intern(Freeze(set), len(p.sets))
		if !known {
			p.sets = append(p.sets, Freeze(set))
			p.succ = append(p.succ, make([]int, numVals))
			worklist = append(worklist, i)
		}
		return i
	}

	add(initial)
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i := worklist[0]
		worklist = worklist[1:]
		cur := p.sets[i].set
		for v := 0; v < numVals; v++ {
			all, _ := m.PowerSucc(cur, Valuation(v))
			p.succ[i][v] = add(all)
		}
	}
	return p, nil
}

func (p *Powerset) NumSets() int {
	return len(p.sets)
}

func (p *Powerset) NumPropositions() int {
	return p.numProps
}

// Set returns the NBA states of set i.
func (p *Powerset) Set(i int) FrozenSet {
	return p.sets[i]
}

// Index returns the number of set, if it is reachable.
func (p *Powerset) Index(set FrozenSet) (int, bool) {
	return p.index.Get(set)
}

func (p *Powerset) Successor(i int, v Valuation) int {
	return p.succ[i][v]
}

// Sccs decomposes the powerset graph, in topological order.
func (p *Powerset) Sccs() [][]int {
	return topologicalSccs(len(p.sets), []int{0}, p.successors)
}

func (p *Powerset) successors(i int) []int {
	seen := newSet()
	var out []int
	for _, j := range p.succ[i] {
		if !seen.Test(uint(j)) {
			seen.Set(uint(j))
			out = append(out, j)
		}
	}
	return out
}

// IsEmpty reports whether nba accepts no word, which is the case iff no reachable
// SCC has an accepting edge inside.
func IsEmpty(nba NBA) bool {
	info := NewSccInfo(nba)
	for i := 0; i < info.NumSccs(); i++ {
		if !info.IsRejecting(i) {
			return false
		}
	}
	return true
}
