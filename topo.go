package nbadet

import (
	"context"
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var _ State = TaggedState{}

// TaggedState is a state of a DPA built with powerset topology. Equal macro-states
// of different powerset components stay apart.
type TaggedState struct {
	Component int
	PowerSet  FrozenSet
	State     *DetState
}

func (t TaggedState) Hash() uint64 {
	return combineHash(combineHash(uint64(t.Component), t.PowerSet.Hash()), t.State.Hash())
}

func (t TaggedState) Equals(other Hashable) bool {
	o, ok := other.(TaggedState)
	return ok && t.Component == o.Component && t.PowerSet.Equals(o.PowerSet) && t.State.Equals(o.State)
}

func (t TaggedState) String() string {
	return fmt.Sprintf("%d %s %s", t.Component, t.PowerSet, t.State)
}

type productNode struct {
	ps    int
	state *DetState
}

func (n productNode) Hash() uint64 {
	return combineHash(uint64(n.ps), n.state.Hash())
}

func (n productNode) Equals(other Hashable) bool {
	o, ok := other.(productNode)
	return ok && n.ps == o.ps && n.state.Equals(o.state)
}

type partialEdge struct {
	target   int // -1 if the powerset successor leaves the component
	priority int
}

// component is the partial determinization of one powerset SCC, explored along
// the pairs of powerset and macro-state.
type component struct {
	nodes []productNode
	index *HashMap[int]
	edges [][]partialEdge
	// rep maps the powerset sets of the component to nodes of its kept bottom SCC.
	rep  map[int]int
	kept int
}

type topology struct {
	conf    *Config
	ps      *Powerset
	sccOf   []int
	comps   []*component
	initial TaggedState
}

func newTopologyDPA(ctx context.Context, conf *Config) (*lazyDPA, error) {
	log := conf.Logger()
	log.Debug("computing powerset structure")
	ps, err := NewPowerset(ctx, conf.Matrix(), conf.InitialStates())
	if err != nil {
		return nil, errors.Wrap(err, "powerset construction")
	}
	sccs := ps.Sccs()
	t := &topology{
		conf:  conf,
		ps:    ps,
		sccOf: make([]int, ps.NumSets()),
		comps: make([]*component, len(sccs)),
	}
	for c, members := range sccs {
		for _, i := range members {
			t.sccOf[i] = c
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c, members := range sccs {
		g.Go(func() error {
			comp, err := t.determinizeComponent(gctx, c, members)
			if err != nil {
				return errors.Wrapf(err, "component %d", c)
			}
			t.comps[c] = comp
			conf.Metrics().observeComponent()
			log.WithField("component", c).Debugf("partial DPA of %d sets has %d states, keeping %d",
				len(members), len(comp.nodes), comp.kept)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.initial = t.representative(0)
	return newLazyDPA(conf, t.initial, t.successor), nil
}

// determinizeComponent explores the macro-states while the powerset successor stays
// in the SCC, keeps the smallest bottom SCC of that partial automaton and picks a
// representative in it for every set of the SCC.
func (t *topology) determinizeComponent(ctx context.Context, c int, members []int) (*component, error) {
	numVals := NumValuations(t.conf.NumPropositions())
	start := members[0]
	if t.sccOf[0] == c {
		start = 0
	}

	engine := NewEngine(t.conf)
	cache := NewSuccessorCache(engine)
	comp := &component{index: NewHashMap[int](WithCapacity(16)), rep: map[int]int{}}

	worklist := make([]int, 0)
	add := func(n productNode) int {
		_, i, known := comp.index.Intern(n, len(comp.nodes))
		if !known {
			comp.nodes = append(comp.nodes, n)
			comp.edges = append(comp.edges, make([]partialEdge, numVals))
			worklist = append(worklist, i)
		}
		return i
	}

	add(productNode{ps: start, state: NewDetState(t.conf, t.ps.Set(start).set)})
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i := worklist[0]
		worklist = worklist[1:]
		n := comp.nodes[i]
		for v := 0; v < numVals; v++ {
			next := t.ps.Successor(n.ps, Valuation(v))
			if t.sccOf[next] != c {
				comp.edges[i][v] = partialEdge{target: -1}
				continue
			}
			succ, priority := cache.Successor(n.state, Valuation(v))
			comp.edges[i][v] = partialEdge{target: add(productNode{ps: next, state: succ}), priority: priority}
		}
	}

	bottom := comp.smallestBottomScc()
	anyNode := bottom[0]
	comp.kept = len(bottom)

	comp.rep[comp.nodes[anyNode].ps] = anyNode
	queue := []int{comp.nodes[anyNode].ps}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for v := 0; v < numVals; v++ {
			next := t.ps.Successor(cur, Valuation(v))
			if _, ok := comp.rep[next]; ok || t.sccOf[next] != c {
				continue
			}
			comp.rep[next] = comp.edges[comp.rep[cur]][v].target
			queue = append(queue, next)
		}
	}
	return comp, nil
}

func (comp *component) successors(i int) []int {
	var out []int
	for _, e := range comp.edges[i] {
		if e.target >= 0 {
			out = append(out, e.target)
		}
	}
	return out
}

// smallestBottomScc returns the members of the smallest SCC without leaving edges,
// the earliest one on ties.
func (comp *component) smallestBottomScc() []int {
	sccs := topologicalSccs(len(comp.nodes), []int{0}, comp.successors)
	sccOf := make([]int, len(comp.nodes))
	for i, scc := range sccs {
		for _, n := range scc {
			sccOf[n] = i
		}
	}
	var best []int
	for i, scc := range sccs {
		bottom := true
		for _, n := range scc {
			for _, m := range comp.successors(n) {
				if sccOf[m] != i {
					bottom = false
				}
			}
		}
		if bottom && (best == nil || len(scc) < len(best)) {
			best = scc
		}
	}
	return best
}

func (t *topology) representative(ps int) TaggedState {
	c := t.sccOf[ps]
	n := t.comps[c].nodes[t.comps[c].rep[ps]]
	return TaggedState{Component: c, PowerSet: t.ps.Set(ps), State: n.state}
}

// successor follows the partial DPA inside a powerset SCC and jumps to the
// representative of the target set when leaving it. Such jumps happen finitely
// often on every run and get the weakest bad priority.
func (t *topology) successor(s State, v Valuation) Edge {
	ts, ok := s.(TaggedState)
	if !ok {
		panic(fmt.Sprintf("nbadet: foreign state %T", s))
	}
	ps, ok := t.ps.Index(ts.PowerSet)
	if !ok {
		panic(fmt.Sprintf("nbadet: unknown powerset state %s", ts.PowerSet))
	}
	next := t.ps.Successor(ps, v)
	if t.sccOf[next] != ts.Component {
		return Edge{Successor: t.representative(next), Priority: t.conf.WeakestBadPriority()}
	}

	comp := t.comps[ts.Component]
	i, ok := comp.index.Get(productNode{ps: ps, state: ts.State})
	if !ok {
		panic(fmt.Sprintf("nbadet: state %s not explored", ts))
	}
	e := comp.edges[i][v]
	n := comp.nodes[e.target]
	return Edge{
		Successor: TaggedState{Component: ts.Component, PowerSet: t.ps.Set(next), State: n.state},
		Priority:  e.priority,
	}
}
