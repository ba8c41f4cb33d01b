package nbadet

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomBuchi draws an NBA with initial state 0. Every ordered pair of states gets
// an edge with probability density, labelled by a random literal or True.
func randomBuchi(t testing.TB, rng *rand.Rand, numProps, n int, density float64) *Buchi {
	labels := []Label{True}
	for ap := 0; ap < numProps; ap++ {
		labels = append(labels, Literal(ap, true), Literal(ap, false))
	}
	var edges []edgeSpec
	for from := 0; from < n; from++ {
		for to := 0; to < n; to++ {
			if rng.Float64() >= density {
				continue
			}
			edges = append(edges, edgeSpec{
				from:      from,
				to:        to,
				label:     labels[rng.Intn(len(labels))],
				accepting: rng.Intn(2) == 0,
			})
		}
	}
	return buildBuchi(t, numProps, n, []int{0}, edges)
}

// directSimulation returns the pairs q<=p such that p can answer every edge of q
// with an edge on the same valuation, accepting whenever q's edge is, to a state
// simulating q's target.
func directSimulation(nba NBA) []Inclusion {
	n := nba.NumStates()
	numVals := NumValuations(nba.NumPropositions())
	sim := make([][]bool, n)
	for q := range sim {
		sim[q] = make([]bool, n)
		for p := range sim[q] {
			sim[q][p] = true
		}
	}

	answers := func(q, p int) bool {
		for v := 0; v < numVals; v++ {
			pEdges := nba.Edges(p, Valuation(v))
			for _, qe := range nba.Edges(q, Valuation(v)) {
				matched := false
				for _, pe := range pEdges {
					if (!qe.Accepting || pe.Accepting) && sim[qe.Successor][pe.Successor] {
						matched = true
						break
					}
				}
				if !matched {
					return false
				}
			}
		}
		return true
	}

	for changed := true; changed; {
		changed = false
		for q := 0; q < n; q++ {
			for p := 0; p < n; p++ {
				if sim[q][p] && !answers(q, p) {
					sim[q][p] = false
					changed = true
				}
			}
		}
	}

	var out []Inclusion
	for q := 0; q < n; q++ {
		for p := 0; p < n; p++ {
			if sim[q][p] && q != p {
				out = append(out, Inclusion{Smaller: q, Larger: p})
			}
		}
	}
	return out
}

func TestDirectSimulation(t *testing.T) {
	// 1 answers everything 0 does, accepting where 0 is not
	nba := buildBuchi(t, 1, 3, []int{0}, []edgeSpec{
		{0, 0, Literal(0, true), false},
		{1, 1, True, true},
		{2, 2, Literal(0, false), true},
	})
	assert.Equal(t, []Inclusion{{0, 1}, {2, 1}}, directSimulation(nba))
}

func TestDeterminizeRandomLanguages(t *testing.T) {
	rng := rand.New(rand.NewSource(20261017))
	type sample struct {
		numProps, maxStates, count int
	}
	samples := []sample{{1, 4, 40}, {2, 3, 12}}
	if testing.Short() {
		samples = []sample{{1, 3, 8}}
	}

	argSets := allArgs()
	for _, smp := range samples {
		prefixLen, loopLen := lassoBounds(smp.numProps)
		numVals := NumValuations(smp.numProps)
		prefixes := words(numVals, 0, prefixLen)
		loops := words(numVals, 1, loopLen)

		for k := 0; k < smp.count; k++ {
			n := 1 + rng.Intn(smp.maxStates)
			nba := randomBuchi(t, rng, smp.numProps, n, 0.45)
			pairs := directSimulation(nba)

			t.Run(fmt.Sprintf("props%d/%d", smp.numProps, k), func(t *testing.T) {
				want := make([]bool, 0, len(prefixes)*len(loops))
				for _, prefix := range prefixes {
					for _, loop := range loops {
						ok, err := BuchiAcceptsLasso(nba, prefix, loop)
						require.NoError(t, err)
						want = append(want, ok)
					}
				}

				for name, args := range argSets {
					for _, withSim := range []bool{false, true} {
						var opts []ConfigOption
						if withSim {
							opts = append(opts, WithInclusions(pairs...))
						}
						dpa, err := Determinize(context.Background(), nba, args, opts...)
						require.NoError(t, err)

						i := 0
						for _, prefix := range prefixes {
							for _, loop := range loops {
								got, err := AcceptsLasso(dpa, prefix, loop)
								require.NoError(t, err)
								assert.Equal(t, want[i], got, "%s sim=%v pairs=%v prefix %v loop %v",
									name, withSim, pairs, prefix, loop)
								i++
							}
						}
					}
				}
			})
		}
	}
}

func TestDeterministicComponentExit(t *testing.T) {
	// {0}, {1} and {2} are deterministic SCCs. The accepting edge 0 -> 2 on !b
	// leaves the SCC of 0, whose own loop on !b is not accepting.
	nb, b := Literal(0, false), Literal(0, true)
	nba := buildBuchi(t, 1, 3, []int{0}, []edgeSpec{
		{0, 0, nb, false}, {0, 2, nb, true}, {0, 0, b, true},
		{1, 1, b, false},
		{2, 1, True, true},
	})

	args := DefaultArgs()
	args.SeparateDeterministic = true
	conf, err := NewConfig(nba, args)
	require.NoError(t, err)
	assert.Equal(t, "rej: {} det: {0} det: {2} det: {1}", conf.Sets().String())

	for name, args := range allArgs() {
		dpa, err := Determinize(context.Background(), nba, args)
		require.NoError(t, err)

		got, err := AcceptsLasso(dpa, nil, []Valuation{0})
		require.NoError(t, err)
		assert.False(t, got, name)

		got, err = AcceptsLasso(dpa, []Valuation{0, 0}, []Valuation{1})
		require.NoError(t, err)
		assert.True(t, got, name)
	}
}
