package nbadet

import (
	"github.com/pkg/errors"
)

// Run reads word from the initial state of dpa and returns the reached state and
// the priorities of the edges taken.
func Run(dpa DPA, word []Valuation) (State, []int) {
	state := dpa.Initial()
	priorities := make([]int, 0, len(word))
	for _, v := range word {
		e := dpa.Successor(state, v)
		state = e.Successor
		priorities = append(priorities, e.Priority)
	}
	return state, priorities
}

// AcceptsLasso reports whether dpa accepts prefix followed by loop repeated forever.
func AcceptsLasso(dpa DPA, prefix, loop []Valuation) (bool, error) {
	if len(loop) == 0 {
		return false, errors.New("lasso with an empty loop")
	}
	state, _ := Run(dpa, prefix)

	// states at the start of each loop iteration, and the smallest priority seen
	// during the iteration
	seen := NewHashMap[int]()
	var mins []int
	for {
		if first, ok := seen.Get(state); ok {
			best := mins[first]
			for _, p := range mins[first:] {
				best = min(best, p)
			}
			even := best%2 == 0
			return even == dpa.Acceptance().MinEven, nil
		}
		seen.Set(state, len(mins))
		best := -1
		for _, v := range loop {
			e := dpa.Successor(state, v)
			state = e.Successor
			if best == -1 || e.Priority < best {
				best = e.Priority
			}
		}
		mins = append(mins, best)
	}
}

// BuchiAcceptsLasso reports whether nba accepts prefix followed by loop repeated
// forever: some run must pass an accepting edge infinitely often. It searches the
// product of nba with the positions in loop for a reachable cycle with an
// accepting edge.
func BuchiAcceptsLasso(nba NBA, prefix, loop []Valuation) (bool, error) {
	if len(loop) == 0 {
		return false, errors.New("lasso with an empty loop")
	}
	if nba.NumPropositions() > MaxPropositions {
		return false, configErrorf(TooManyPropositions, nil, "%d atomic propositions", nba.NumPropositions())
	}

	current := setOf(nba.InitialStates()...)
	for _, v := range prefix {
		next := newSet()
		forEachState(current, func(q int) {
			for _, e := range nba.Edges(q, v) {
				next.Set(uint(e.Successor))
			}
		})
		current = next
	}

	n, l := nba.NumStates(), len(loop)
	node := func(q, pos int) int { return q*l + pos }
	succ := make([][]int, n*l)
	accSucc := make([][]int, n*l)
	for q := 0; q < n; q++ {
		for pos := 0; pos < l; pos++ {
			u := node(q, pos)
			for _, e := range nba.Edges(q, loop[pos]) {
				w := node(e.Successor, (pos+1)%l)
				succ[u] = append(succ[u], w)
				if e.Accepting {
					accSucc[u] = append(accSucc[u], w)
				}
			}
		}
	}

	var roots []int
	forEachState(current, func(q int) {
		roots = append(roots, node(q, 0))
	})
	sccOf := make([]int, n*l)
	for i := range sccOf {
		sccOf[i] = -1
	}
	for i, scc := range tarjan(n*l, roots, func(u int) []int { return succ[u] }) {
		for _, u := range scc {
			sccOf[u] = i
		}
	}
	for u := range accSucc {
		if sccOf[u] < 0 {
			continue
		}
		for _, w := range accSucc[u] {
			if sccOf[w] == sccOf[u] {
				return true, nil
			}
		}
	}
	return false, nil
}
