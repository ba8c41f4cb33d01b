package nbadet

import (
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// tarjan computes the strongly connected components of the graph on nodes [0, n)
// reachable from roots. Components come out in reverse topological order, members
// sorted. The search keeps its own call stack so deep graphs cannot overflow.
func tarjan(n int, roots []int, succ func(int) []int) [][]int {
	type frame struct {
		v     int
		succs []int
		next  int
	}

	index := make([]int, n) // 0 means unvisited
	lowlink := make([]int, n)
	onStack := bitset.New(uint(n))
	var stack []int
	var sccs [][]int
	counter := 1

	visit := func(v int) frame {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack.Set(uint(v))
		return frame{v: v, succs: succ(v)}
	}

	for _, root := range roots {
		if index[root] != 0 {
			continue
		}
		calls := []frame{visit(root)}
		for len(calls) > 0 {
			f := &calls[len(calls)-1]
			if f.next < len(f.succs) {
				w := f.succs[f.next]
				f.next++
				if index[w] == 0 {
					calls = append(calls, visit(w))
				} else if onStack.Test(uint(w)) {
					lowlink[f.v] = min(lowlink[f.v], index[w])
				}
				continue
			}

			v := f.v
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				p := calls[len(calls)-1].v
				lowlink[p] = min(lowlink[p], lowlink[v])
			}
			if lowlink[v] != index[v] {
				continue
			}
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack.Clear(uint(w))
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Ints(scc)
			sccs = append(sccs, scc)
		}
	}
	return sccs
}

// topologicalSccs is tarjan with the components reversed: a component only reaches
// components with a larger index.
func topologicalSccs(n int, roots []int, succ func(int) []int) [][]int {
	sccs := tarjan(n, roots, succ)
	for i, j := 0, len(sccs)-1; i < j; i, j = i+1, j-1 {
		sccs[i], sccs[j] = sccs[j], sccs[i]
	}
	return sccs
}

// SccInfo is the SCC decomposition of the reachable part of an NBA with the
// per-component predicates used to split states into determinization components.
// Components are numbered topologically, the component of the initial state first.
type SccInfo struct {
	sccs  [][]int
	index []int // -1 for unreachable states

	trivial       *bitset.BitSet
	bottom        *bitset.BitSet
	deterministic *bitset.BitSet
	rejecting     *bitset.BitSet
	accepting     *bitset.BitSet

	// reach[i] holds the components reachable from i in at least one step.
	reach []*bitset.BitSet
}

type sccEdges struct {
	all    [][]int
	nonAcc [][]int
	acc    [][]int
}

func collectEdges(nba NBA) (sccEdges, [][][]BuchiEdge) {
	n := nba.NumStates()
	numVals := NumValuations(nba.NumPropositions())
	e := sccEdges{all: make([][]int, n), nonAcc: make([][]int, n), acc: make([][]int, n)}
	perVal := make([][][]BuchiEdge, n)
	for s := 0; s < n; s++ {
		all, nonAcc, acc := newSet(), newSet(), newSet()
		perVal[s] = make([][]BuchiEdge, numVals)
		for v := 0; v < numVals; v++ {
			edges := nba.Edges(s, Valuation(v))
			perVal[s][v] = edges
			for _, edge := range edges {
				all.Set(uint(edge.Successor))
				if edge.Accepting {
					acc.Set(uint(edge.Successor))
				} else {
					nonAcc.Set(uint(edge.Successor))
				}
			}
		}
		e.all[s] = setToSlice(all)
		e.nonAcc[s] = setToSlice(nonAcc)
		e.acc[s] = setToSlice(acc)
	}
	return e, perVal
}

// NewSccInfo decomposes the part of nba reachable from its initial states.
func NewSccInfo(nba NBA) *SccInfo {
	n := nba.NumStates()
	edges, perVal := collectEdges(nba)

	sccs := topologicalSccs(n, nba.InitialStates(), func(s int) []int { return edges.all[s] })
	info := &SccInfo{
		sccs:          sccs,
		index:         make([]int, n),
		trivial:       bitset.New(uint(len(sccs))),
		bottom:        bitset.New(uint(len(sccs))),
		deterministic: bitset.New(uint(len(sccs))),
		rejecting:     bitset.New(uint(len(sccs))),
		accepting:     bitset.New(uint(len(sccs))),
		reach:         make([]*bitset.BitSet, len(sccs)),
	}
	for s := range info.index {
		info.index[s] = -1
	}
	for i, scc := range sccs {
		for _, s := range scc {
			info.index[s] = i
		}
	}

	for i, scc := range sccs {
		info.classify(i, scc, edges, perVal)
	}

	// bottom-up, every successor component already has its reach set
	for i := len(sccs) - 1; i >= 0; i-- {
		r := bitset.New(uint(len(sccs)))
		if !info.trivial.Test(uint(i)) {
			r.Set(uint(i))
		}
		for _, s := range sccs[i] {
			for _, t := range edges.all[s] {
				if j := info.index[t]; j != i {
					r.Set(uint(j))
					r.InPlaceUnion(info.reach[j])
				}
			}
		}
		info.reach[i] = r
	}
	return info
}

func (info *SccInfo) classify(i int, scc []int, edges sccEdges, perVal [][][]BuchiEdge) {
	inside := func(t int) bool { return info.index[t] == i }

	selfLoop, leaves, internalAcc := false, false, false
	for _, s := range scc {
		for _, t := range edges.all[s] {
			if t == s {
				selfLoop = true
			}
			if !inside(t) {
				leaves = true
			}
		}
		for _, t := range edges.acc[s] {
			if inside(t) {
				internalAcc = true
			}
		}
	}
	trivial := len(scc) == 1 && !selfLoop
	info.trivial.SetTo(uint(i), trivial)
	info.bottom.SetTo(uint(i), !leaves)

	// language empty inside the component: every internal edge lies on a cycle
	info.rejecting.SetTo(uint(i), trivial || !internalAcc)

	deterministic := true
	targets := newSet()
	for _, s := range scc {
		for _, vEdges := range perVal[s] {
			targets.ClearAll()
			for _, e := range vEdges {
				if inside(e.Successor) {
					targets.Set(uint(e.Successor))
				}
			}
			if targets.Count() > 1 {
				deterministic = false
			}
		}
	}
	info.deterministic.SetTo(uint(i), deterministic)

	// weakly accepting: no cycle made of rejecting internal edges only
	if trivial {
		return
	}
	local := make(map[int]int, len(scc))
	for k, s := range scc {
		local[s] = k
	}
	rejSucc := func(k int) []int {
		var out []int
		for _, t := range edges.nonAcc[scc[k]] {
			if j, ok := local[t]; ok {
				out = append(out, j)
			}
		}
		return out
	}
	roots := make([]int, len(scc))
	for k := range roots {
		roots[k] = k
	}
	noRejectingCycle := true
	for _, sub := range tarjan(len(scc), roots, rejSucc) {
		if len(sub) > 1 {
			noRejectingCycle = false
			break
		}
		for _, j := range rejSucc(sub[0]) {
			if j == sub[0] {
				noRejectingCycle = false
			}
		}
	}
	info.accepting.SetTo(uint(i), noRejectingCycle)
}

func (info *SccInfo) NumSccs() int {
	return len(info.sccs)
}

// Scc returns the members of component i in increasing order.
func (info *SccInfo) Scc(i int) []int {
	return info.sccs[i]
}

// States returns the members of component i as a set.
func (info *SccInfo) States(i int) *bitset.BitSet {
	return setOf(info.sccs[i]...)
}

// ReachableStates returns the states reachable from the initial states.
func (info *SccInfo) ReachableStates() *bitset.BitSet {
	r := bitset.New(uint(len(info.index)))
	for s, i := range info.index {
		if i >= 0 {
			r.Set(uint(s))
		}
	}
	return r
}

// Index returns the component of state, or -1 if it is unreachable.
func (info *SccInfo) Index(state int) int {
	return info.index[state]
}

// IsTrivial reports a single state without a self-loop.
func (info *SccInfo) IsTrivial(i int) bool {
	return info.trivial.Test(uint(i))
}

// IsBottom reports a component without leaving edges.
func (info *SccInfo) IsBottom(i int) bool {
	return info.bottom.Test(uint(i))
}

// IsDeterministic reports that no state has two distinct successors inside the
// component on the same valuation.
func (info *SccInfo) IsDeterministic(i int) bool {
	return info.deterministic.Test(uint(i))
}

// IsRejecting reports that the component alone accepts nothing.
func (info *SccInfo) IsRejecting(i int) bool {
	return info.rejecting.Test(uint(i))
}

// IsAccepting reports a non-trivial component where every cycle is accepting.
func (info *SccInfo) IsAccepting(i int) bool {
	return info.accepting.Test(uint(i))
}

// SccReachable reports a path of at least one step from component s to t. A
// component reaches itself iff it is not trivial.
func (info *SccInfo) SccReachable(s, t int) bool {
	return info.reach[s].Test(uint(t))
}

// StateReachable reports a non-empty path from p to q.
func (info *SccInfo) StateReachable(p, q int) bool {
	i, j := info.index[p], info.index[q]
	if i < 0 || j < 0 {
		return false
	}
	return info.SccReachable(i, j)
}

func (info *SccInfo) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, scc := range info.sccs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(setString(setOf(scc...)))
		sb.WriteByte(':')
		for _, f := range []struct {
			set  *bitset.BitSet
			flag byte
		}{
			{info.trivial, 'T'}, {info.bottom, 'B'}, {info.deterministic, 'D'},
			{info.rejecting, 'R'}, {info.accepting, 'A'},
		} {
			if f.set.Test(uint(i)) {
				sb.WriteByte(f.flag)
			}
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
