package nbadet

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// State is a state of a DPA produced by this package.
type State interface {
	Hashable
	fmt.Stringer
}

// Edge is a DPA transition: the unique successor and the priority of the move.
type Edge struct {
	Successor State
	Priority  int
}

// Acceptance describes a parity condition. With MinEven, a run is accepting iff the
// smallest priority seen infinitely often is even.
type Acceptance struct {
	NumPriorities int
	MinEven       bool
}

// DPA is a complete deterministic parity automaton over valuations of
// NumPropositions propositions, built on demand.
type DPA interface {
	NumPropositions() int
	Initial() State
	// Successor panics on states not produced by this DPA and on valuations
	// out of range.
	Successor(s State, v Valuation) Edge
	Acceptance() Acceptance
}

// Determinize builds a DPA equivalent to nba. Without powerset topology the
// DPA is explored lazily, with it the powerset components are determinized
// up front and ctx bounds that work.
func Determinize(ctx context.Context, nba NBA, args Args, opts ...ConfigOption) (DPA, error) {
	conf, err := NewConfig(nba, args, opts...)
	if err != nil {
		return nil, err
	}
	if args.UsePowersetTopology {
		return newTopologyDPA(ctx, conf)
	}
	return newNaiveDPA(conf), nil
}

type transition struct {
	state State
	v     Valuation
}

func (t transition) Hash() uint64 {
	return combineHash(t.state.Hash(), uint64(t.v))
}

func (t transition) Equals(other Hashable) bool {
	o, ok := other.(transition)
	return ok && t.v == o.v && t.state.Equals(o.state)
}

// lazyDPA memoizes the edges of succ. Successor states are interned, so equal
// states reached on different paths are the same value.
type lazyDPA struct {
	numProps   int
	acceptance Acceptance
	initial    State
	succ       func(State, Valuation) Edge

	mu     sync.RWMutex
	states *HashMap[struct{}]
	edges  *HashMap[Edge]
}

func newLazyDPA(conf *Config, initial State, succ func(State, Valuation) Edge) *lazyDPA {
	d := &lazyDPA{
		numProps:   conf.NumPropositions(),
		acceptance: conf.Acceptance(),
		initial:    initial,
		succ:       succ,
		states:     NewHashMap[struct{}](WithCapacity(64)),
		edges:      NewHashMap[Edge](WithCapacity(64)),
	}
	d.states.Set(initial, struct{}{})
	return d
}

func (d *lazyDPA) NumPropositions() int {
	return d.numProps
}

func (d *lazyDPA) Initial() State {
	return d.initial
}

func (d *lazyDPA) Acceptance() Acceptance {
	return d.acceptance
}

func (d *lazyDPA) Successor(s State, v Valuation) Edge {
	if int(v) >= NumValuations(d.numProps) {
		panic(fmt.Sprintf("nbadet: valuation %d out of range for %d propositions", v, d.numProps))
	}
	key := transition{state: s, v: v}
	d.mu.RLock()
	e, ok := d.edges.Get(key)
	d.mu.RUnlock()
	if ok {
		return e
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.edges.Get(key); ok {
		return e
	}
	if _, known := d.states.Get(s); !known {
		panic(fmt.Sprintf("nbadet: state %s was not produced by this DPA", s))
	}
	e = d.succ(s, v)
	k, _, _ := d.states.Intern(e.Successor, struct{}{})
	e.Successor = k.(State)
	d.edges.Set(key, e)
	return e
}

// NumKnownStates is the number of distinct states produced so far.
func (d *lazyDPA) NumKnownStates() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.states.Size()
}

func newNaiveDPA(conf *Config) *lazyDPA {
	engine := NewEngine(conf)
	cache := NewSuccessorCache(engine)
	return newLazyDPA(conf, engine.Initial(), func(s State, v Valuation) Edge {
		st, ok := s.(*DetState)
		if !ok {
			panic(fmt.Sprintf("nbadet: foreign state %T", s))
		}
		succ, priority := cache.Successor(st, v)
		return Edge{Successor: succ, Priority: priority}
	})
}

// Exploration is the reachable part of a DPA in breadth-first order. State 0 is
// the initial state.
type Exploration struct {
	States []State
	// Successors[i][v] and Priorities[i][v] describe the edge of state i on v.
	Successors [][]int
	Priorities [][]int
}

func (x *Exploration) NumStates() int {
	return len(x.States)
}

// UsedPriorities lists the priorities occurring on some edge, ascending.
func (x *Exploration) UsedPriorities() []int {
	seen := map[int]struct{}{}
	for _, row := range x.Priorities {
		for _, p := range row {
			seen[p] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Explore visits every reachable state of dpa. It stops with ctx.Err() when ctx
// is done.
func Explore(ctx context.Context, dpa DPA) (*Exploration, error) {
	numVals := NumValuations(dpa.NumPropositions())
	index := NewHashMap[int](WithCapacity(64))
	x := &Exploration{}

	add := func(s State) int {
		_, i, known := index.Intern(s, len(x.States))
		if !known {
			x.States = append(x.States, s)
			x.Successors = append(x.Successors, make([]int, numVals))
			x.Priorities = append(x.Priorities, make([]int, numVals))
		}
		return i
	}

	add(dpa.Initial())
	for next := 0; next < len(x.States); next++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := x.States[next]
		for v := 0; v < numVals; v++ {
			e := dpa.Successor(s, Valuation(v))
			x.Successors[next][v] = add(e.Successor)
			x.Priorities[next][v] = e.Priority
		}
	}
	return x, nil
}
