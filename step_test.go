package nbadet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedAutomata are the NBAs every determinization variant is checked against.
func cannedAutomata(t testing.TB) map[string]*Buchi {
	a := &Automata{}
	nb, b := Literal(0, false), Literal(0, true)
	return map[string]*Buchi{
		"empty":            a.MakeEmpty(1),
		"universal":        a.MakeUniversal(1),
		"infinitelyOften":  a.MakeInfinitelyOften(2, 1),
		"eventuallyAlways": a.MakeEventuallyAlways(1, 0),
		"sccs":             sccTestBuchi(t),
		// b infinitely often, through two nondeterministic branches that reconverge
		"diamond": buildBuchi(t, 1, 3, []int{0}, []edgeSpec{
			{0, 0, True, false}, {0, 1, b, false}, {0, 2, True, false},
			{1, 0, True, true}, {1, 1, b, true},
			{2, 0, b, true}, {2, 2, nb, false},
		}),
	}
}

// exploreEngine walks all macro-states reachable with e and calls visit on every
// edge.
func exploreEngine(e *Engine, visit func(from *DetState, v Valuation, to *DetState, priority int)) int {
	numVals := NumValuations(e.Config().NumPropositions())
	seen := NewHashMap[struct{}]()
	queue := []*DetState{e.Initial()}
	seen.Set(queue[0], struct{}{})
	for len(queue) > 0 {
		st := queue[0]
		queue = queue[1:]
		for v := 0; v < numVals; v++ {
			succ, p := e.Successor(st, Valuation(v))
			visit(st, Valuation(v), succ, p)
			if _, known := seen.Get(succ); !known {
				seen.Set(succ, struct{}{})
				queue = append(queue, succ)
			}
		}
	}
	return seen.Size()
}

func TestEngineSinks(t *testing.T) {
	a := &Automata{}

	conf, err := NewConfig(a.MakeUniversal(1), DefaultArgs())
	require.NoError(t, err)
	e := NewEngine(conf)
	for v := Valuation(0); v < 2; v++ {
		succ, p := e.Successor(e.Initial(), v)
		assert.Equal(t, 0, p)
		assert.Same(t, e.AcceptingSinkState(), succ)
	}

	conf, err = NewConfig(a.MakeEmpty(1), DefaultArgs())
	require.NoError(t, err)
	e = NewEngine(conf)
	succ, p := e.Successor(e.Initial(), 0)
	assert.Equal(t, conf.WeakestBadPriority(), p)
	assert.Same(t, e.EmptyState(), succ)
	assert.True(t, succ.IsEmpty())

	succ, p = e.Successor(e.EmptyState(), 1)
	assert.Equal(t, conf.WeakestBadPriority(), p)
	assert.True(t, succ.Equals(e.EmptyState()))
}

func TestEngineInfinitelyOften(t *testing.T) {
	for _, mode := range []UpdateMode{MullerSchupp, Safra, MaxMerge} {
		t.Run(mode.String(), func(t *testing.T) {
			args := DefaultArgs()
			args.UpdateMode = mode
			conf, err := NewConfig((&Automata{}).MakeInfinitelyOften(1, 0), args)
			require.NoError(t, err)
			e := NewEngine(conf)
			init := e.Initial()
			assert.Equal(t, "N:{}\tAB:{} AC:() D:() M:({0}:0)", init.String())

			succ, p := e.Successor(init, 1)
			assert.True(t, succ.Equals(init))
			assert.Equal(t, 2, p)

			succ, p = e.Successor(init, 0)
			assert.True(t, succ.Equals(init))
			assert.Equal(t, conf.WeakestBadPriority(), p)
		})
	}
}

func TestEngineBreakpoint(t *testing.T) {
	args := DefaultArgs()
	args.SeparateRejecting = true
	args.SeparateAccepting = true
	conf, err := NewConfig((&Automata{}).MakeEventuallyAlways(1, 0), args)
	require.NoError(t, err)
	e := NewEngine(conf)

	init := e.Initial()
	assert.Equal(t, "N:{0}\tAB:{} AC:() D:() M:()", init.String())

	// the first b only reaches the buffer, the next one activates it
	st, p := e.Successor(init, 1)
	assert.Equal(t, "N:{0}\tAB:{1} AC:() D:() M:()", st.String())
	assert.Equal(t, conf.WeakestBadPriority(), p)

	st, p = e.Successor(st, 1)
	assert.Equal(t, "N:{0}\tAB:{} AC:({1}:0) D:() M:()", st.String())
	assert.Equal(t, conf.WeakestBadPriority(), p)

	st, p = e.Successor(st, 1)
	assert.Equal(t, "N:{0}\tAB:{} AC:({1}:0) D:() M:()", st.String())
	assert.Equal(t, 2, p)

	// the active set dies on !b
	st, p = e.Successor(st, 0)
	assert.Equal(t, "N:{0}\tAB:{} AC:() D:() M:()", st.String())
	assert.Equal(t, 1, p)
}

func TestEngineInvariants(t *testing.T) {
	for autName, nba := range cannedAutomata(t) {
		for argsName, args := range allArgs() {
			t.Run(autName+"/"+argsName, func(t *testing.T) {
				conf, err := NewConfig(nba, args)
				require.NoError(t, err)
				e := NewEngine(conf)
				weakest := conf.WeakestBadPriority()

				n := exploreEngine(e, func(from *DetState, v Valuation, to *DetState, p int) {
					require.NoError(t, to.Validate(), "%s -%d->", from, v)
					assert.GreaterOrEqual(t, p, 0)
					assert.LessOrEqual(t, p, weakest)
					assert.True(t, to.powerSet.IsSuperSet(to.rejecting))

					again, p2 := e.Successor(from, v)
					assert.True(t, again.Equals(to), "successor must be deterministic")
					assert.Equal(t, p, p2)
				})
				assert.Positive(t, n)
			})
		}
	}
}

func TestEnginePowerSetProjection(t *testing.T) {
	// without pruning, the power sets of the macro-states follow the subset construction
	nba := sccTestBuchi(t)
	conf, err := NewConfig(nba, DefaultArgs())
	require.NoError(t, err)
	e := NewEngine(conf)

	exploreEngine(e, func(from *DetState, v Valuation, to *DetState, p int) {
		if to == e.AcceptingSinkState() || to == e.EmptyState() {
			return
		}
		want, _ := conf.Matrix().PowerSucc(from.powerSet, v)
		assert.Equal(t, setString(want), setString(to.powerSet))
	})
}
