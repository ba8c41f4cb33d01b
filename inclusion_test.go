package nbadet

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInclusionMask(t *testing.T) {
	m := NewInclusionMask(4, []Inclusion{{1, 0}, {2, 0}, {1, 0}, {3, 2}, {7, 1}, {-1, 2}})
	assert.False(t, m.IsEmpty())
	assert.Equal(t, []Inclusion{{1, 0}, {2, 0}, {3, 2}}, m.Pairs())
	assert.Equal(t, "{1<=0, 2<=0, 3<=2}", m.String())

	set := setOf(0, 1, 2, 3)
	m.RemoveSubsumed(0, set)
	assert.Equal(t, "{0,3}", setString(set))
	m.RemoveSubsumed(1, set)
	assert.Equal(t, "{0,3}", setString(set))
	m.AddSubsumed(0, set)
	assert.Equal(t, "{0,1,2,3}", setString(set))

	var nilMask *InclusionMask
	assert.True(t, nilMask.IsEmpty())
	assert.Nil(t, nilMask.Pairs())
	assert.Equal(t, "{}", nilMask.String())
	nilMask.RemoveSubsumed(0, set)
	assert.Equal(t, "{0,1,2,3}", setString(set))
}

func TestFilterInclusions(t *testing.T) {
	// {0,1} is a cycle, 2 a sink below it
	nba := buildBuchi(t, 1, 3, []int{0}, []edgeSpec{
		{0, 1, True, false},
		{1, 0, True, true},
		{1, 2, True, false},
		{2, 2, True, true},
	})
	info := NewSccInfo(nba)
	pairs := []Inclusion{{0, 1}, {1, 0}, {0, 0}, {2, 0}, {0, 2}, {5, 1}}

	assert.Equal(t, []Inclusion{{0, 1}, {1, 0}}, FilterInternalInclusions(pairs, info))
	assert.Equal(t, []Inclusion{{0, 2}}, FilterExternalInclusions(pairs, info))
	assert.Empty(t, FilterInternalInclusions(nil, info))
}

func TestParseSimulationSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    SimulationSpec
		wantErr bool
	}{
		{"null", SimulationSpec{Name: "null"}, false},
		{" direct@3 ", SimulationSpec{Name: "direct", Arg: "3"}, false},
		{"fair@", SimulationSpec{Name: "fair"}, false},
		{"@2", SimulationSpec{}, true},
		{"", SimulationSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSimulationSpec(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidArgs))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "direct@3", SimulationSpec{Name: "direct", Arg: "3"}.String())
	assert.Equal(t, "null", SimulationSpec{Name: "null"}.String())
}

func TestParsePebbles(t *testing.T) {
	n, err := ParsePebbles("")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = ParsePebbles(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	_, err = ParsePebbles("many")
	assert.ErrorContains(t, err, "invalid pebble count")
}

func TestRunOracles(t *testing.T) {
	nba := (&Automata{}).MakeUniversal(1)
	oracles := builtinOracles()
	oracles["fixed"] = InclusionOracleFunc(func(NBA, string) ([]Inclusion, error) {
		return []Inclusion{{1, 0}, {0, 1}}, nil
	})
	oracles["broken"] = InclusionOracleFunc(func(NBA, string) ([]Inclusion, error) {
		return nil, errors.New("boom")
	})

	got, err := runOracles(nba, []SimulationSpec{{Name: "fixed"}, {Name: "null"}, {Name: "fixed"}}, oracles)
	require.NoError(t, err)
	assert.Equal(t, []Inclusion{{0, 1}, {1, 0}}, got)

	_, err = runOracles(nba, []SimulationSpec{{Name: "missing"}}, oracles)
	assert.True(t, errors.Is(err, ErrUnknownOracle))

	_, err = runOracles(nba, []SimulationSpec{{Name: "broken"}}, oracles)
	assert.True(t, errors.Is(err, ErrOracleFailed))
	assert.ErrorContains(t, err, "boom")
}
