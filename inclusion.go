package nbadet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// Inclusion states that the language of Smaller is contained in the language of Larger.
type Inclusion struct {
	Smaller int
	Larger  int
}

func (i Inclusion) String() string {
	return fmt.Sprintf("%d<=%d", i.Smaller, i.Larger)
}

// InclusionMask maps every state to the states it is known to dominate. A nil mask
// is empty.
type InclusionMask struct {
	dominated []*bitset.BitSet
	pairs     []Inclusion
}

// NewInclusionMask builds the mask of pairs over numStates states. Pairs mentioning
// unknown states are ignored.
func NewInclusionMask(numStates int, pairs []Inclusion) *InclusionMask {
	m := &InclusionMask{dominated: make([]*bitset.BitSet, numStates)}
	for _, p := range sortedInclusions(pairs) {
		if p.Smaller < 0 || p.Larger < 0 || p.Smaller >= numStates || p.Larger >= numStates {
			continue
		}
		if m.dominated[p.Larger] == nil {
			m.dominated[p.Larger] = bitset.New(uint(numStates))
		}
		m.dominated[p.Larger].Set(uint(p.Smaller))
		m.pairs = append(m.pairs, p)
	}
	return m
}

func (m *InclusionMask) IsEmpty() bool {
	return m == nil || len(m.pairs) == 0
}

// Pairs returns the inclusions in the mask, sorted.
func (m *InclusionMask) Pairs() []Inclusion {
	if m == nil {
		return nil
	}
	return append([]Inclusion(nil), m.pairs...)
}

// RemoveSubsumed strikes the states dominated by larger out of set.
func (m *InclusionMask) RemoveSubsumed(larger int, set *bitset.BitSet) {
	if m == nil || larger >= len(m.dominated) || m.dominated[larger] == nil {
		return
	}
	set.InPlaceDifference(m.dominated[larger])
}

// AddSubsumed adds the states dominated by larger to set.
func (m *InclusionMask) AddSubsumed(larger int, set *bitset.BitSet) {
	if m == nil || larger >= len(m.dominated) || m.dominated[larger] == nil {
		return
	}
	set.InPlaceUnion(m.dominated[larger])
}

func (m *InclusionMask) String() string {
	if m.IsEmpty() {
		return "{}"
	}
	parts := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedInclusions(pairs []Inclusion) []Inclusion {
	out := append([]Inclusion(nil), pairs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Smaller != out[j].Smaller {
			return out[i].Smaller < out[j].Smaller
		}
		return out[i].Larger < out[j].Larger
	})
	uniq := out[:0]
	for i, p := range out {
		if i > 0 && p == out[i-1] {
			continue
		}
		uniq = append(uniq, p)
	}
	return uniq
}

// FilterInternalInclusions keeps the non-reflexive pairs inside one SCC. These are
// safe for pruning inside a macro-state.
func FilterInternalInclusions(pairs []Inclusion, info *SccInfo) []Inclusion {
	var out []Inclusion
	for _, p := range sortedInclusions(pairs) {
		if p.Smaller == p.Larger || !info.known(p) {
			continue
		}
		if i := info.Index(p.Smaller); i >= 0 && i == info.Index(p.Larger) {
			out = append(out, p)
		}
	}
	return out
}

// FilterExternalInclusions keeps the pairs usable to prune powerset successors: the
// larger state must not reach the smaller one. Mutually included states are then
// collapsed to a strict order, the state with the smaller index being dominated.
func FilterExternalInclusions(pairs []Inclusion, info *SccInfo) []Inclusion {
	var kept []Inclusion
	for _, p := range sortedInclusions(pairs) {
		if !info.known(p) || info.StateReachable(p.Larger, p.Smaller) {
			continue
		}
		kept = append(kept, p)
	}

	n := len(info.index)
	leq := make([][]int, n)
	roots := make([]int, 0, len(kept))
	for _, p := range kept {
		leq[p.Smaller] = append(leq[p.Smaller], p.Larger)
		roots = append(roots, p.Smaller)
	}
	class := make([]int, n)
	for i, eq := range tarjan(n, roots, func(s int) []int { return leq[s] }) {
		for _, s := range eq {
			class[s] = i
		}
	}

	var out []Inclusion
	for _, p := range kept {
		if class[p.Smaller] != class[p.Larger] || p.Smaller < p.Larger {
			out = append(out, p)
		}
	}
	return out
}

func (info *SccInfo) known(p Inclusion) bool {
	n := len(info.index)
	return p.Smaller >= 0 && p.Larger >= 0 && p.Smaller < n && p.Larger < n
}

// InclusionOracle computes language inclusions of an NBA. The argument is the
// optional text following '@' in a simulation request.
type InclusionOracle interface {
	Inclusions(nba NBA, arg string) ([]Inclusion, error)
}

// InclusionOracleFunc adapts a function to InclusionOracle.
type InclusionOracleFunc func(nba NBA, arg string) ([]Inclusion, error)

func (f InclusionOracleFunc) Inclusions(nba NBA, arg string) ([]Inclusion, error) {
	return f(nba, arg)
}

// NullOracle knows no inclusions. It takes an optional pebble count like the real
// simulation algorithms do.
var NullOracle = InclusionOracleFunc(func(_ NBA, arg string) ([]Inclusion, error) {
	if _, err := ParsePebbles(arg); err != nil {
		return nil, err
	}
	return nil, nil
})

// ParsePebbles parses the integer argument of a simulation, 1 if blank.
func ParsePebbles(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 1, nil
	}
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid pebble count %q", arg)
	}
	return i, nil
}

func builtinOracles() map[string]InclusionOracle {
	return map[string]InclusionOracle{
		"null": NullOracle,
	}
}

// SimulationSpec requests the inclusions of a named oracle, written "name@arg".
type SimulationSpec struct {
	Name string `json:"name" yaml:"name"`
	Arg  string `json:"arg,omitempty" yaml:"arg,omitempty"`
}

// ParseSimulationSpec parses "name" or "name@arg".
func ParseSimulationSpec(s string) (SimulationSpec, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(s), "@")
	if name == "" {
		return SimulationSpec{}, configErrorf(InvalidArgs, nil, "empty simulation name in %q", s)
	}
	return SimulationSpec{Name: name, Arg: arg}, nil
}

func (s SimulationSpec) String() string {
	if s.Arg == "" {
		return s.Name
	}
	return s.Name + "@" + s.Arg
}

// runOracles unions the inclusions of every requested simulation.
func runOracles(nba NBA, specs []SimulationSpec, oracles map[string]InclusionOracle) ([]Inclusion, error) {
	var out []Inclusion
	for _, spec := range specs {
		oracle, ok := oracles[spec.Name]
		if !ok {
			return nil, configErrorf(UnknownOracle, nil, "unknown simulation oracle %q", spec.Name)
		}
		pairs, err := oracle.Inclusions(nba, spec.Arg)
		if err != nil {
			return nil, configErrorf(OracleFailed, err, "simulation %s", spec)
		}
		out = append(out, pairs...)
	}
	return sortedInclusions(out), nil
}
