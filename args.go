package nbadet

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// UpdateMode selects how a saturated node of a mixed slice absorbs its children.
type UpdateMode uint8

const (
	// MullerSchupp moves only the rightmost non-empty child up.
	MullerSchupp UpdateMode = iota
	// Safra moves the whole subtree up.
	Safra
	// MaxMerge leaves states in place and merges every run of entries above the
	// dominating rank once the step priority is known.
	MaxMerge
)

var updateModeNames = []string{"muller-schupp", "safra", "max-merge"}

func (m UpdateMode) String() string {
	if int(m) < len(updateModeNames) {
		return updateModeNames[m]
	}
	return fmt.Sprintf("UpdateMode(%d)", m)
}

func (m UpdateMode) valid() bool {
	return int(m) < len(updateModeNames)
}

// ParseUpdateMode accepts a mode name or its number.
func ParseUpdateMode(s string) (UpdateMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range updateModeNames {
		if s == name || s == strings.ReplaceAll(name, "-", "") || s == strings.ReplaceAll(name, "-", "_") {
			return UpdateMode(i), nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(updateModeNames) {
		return UpdateMode(i), nil
	}
	return 0, configErrorf(InvalidArgs, nil, "unknown update mode %q, expected one of %v", s, updateModeNames)
}

func (m UpdateMode) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, configErrorf(InvalidArgs, nil, "unknown update mode %d", m)
	}
	return []byte(m.String()), nil
}

func (m *UpdateMode) UnmarshalText(text []byte) error {
	mode, err := ParseUpdateMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Args are the user facing switches of a determinization run.
type Args struct {
	UpdateMode UpdateMode `mapstructure:"update_mode" yaml:"update_mode"`

	// Verbosity is a logrus level name for the default logger.
	Verbosity string `mapstructure:"verbosity" yaml:"verbosity,omitempty"`

	// Simulations are run on the NBA to obtain language inclusions.
	Simulations []SimulationSpec `mapstructure:"simulations" yaml:"simulations,omitempty"`

	UseExternalPruning  bool `mapstructure:"use_external_pruning" yaml:"use_external_pruning"`
	UseInternalPruning  bool `mapstructure:"use_internal_pruning" yaml:"use_internal_pruning"`
	UsePowersetTopology bool `mapstructure:"use_powerset_topology" yaml:"use_powerset_topology"`
	UseSmartSuccessor   bool `mapstructure:"use_smart_successor" yaml:"use_smart_successor"`

	SeparateRejecting        bool `mapstructure:"separate_rejecting" yaml:"separate_rejecting"`
	SeparateAccepting        bool `mapstructure:"separate_accepting" yaml:"separate_accepting"`
	CycleAcceptingComponents bool `mapstructure:"cycle_accepting_components" yaml:"cycle_accepting_components"`
	SeparateDeterministic    bool `mapstructure:"separate_deterministic" yaml:"separate_deterministic"`
	SeparateMixed            bool `mapstructure:"separate_mixed" yaml:"separate_mixed"`
}

// DefaultArgs has every optimization off and uses the Safra update.
func DefaultArgs() Args {
	return Args{
		UpdateMode: Safra,
		Verbosity:  logrus.WarnLevel.String(),
	}
}

// SuggestedArgs enables the optimizations that work well on most inputs. Accepting
// component separation is left off, it tends to hurt on automata obtained from LTL.
func SuggestedArgs() Args {
	a := DefaultArgs()
	a.UseExternalPruning = true
	a.UseInternalPruning = true
	a.UsePowersetTopology = true
	a.UseSmartSuccessor = true
	a.SeparateDeterministic = true
	a.SeparateMixed = true
	a.SeparateRejecting = true
	return a
}

// Validate rejects unsupported combinations.
func (a Args) Validate() error {
	if !a.UpdateMode.valid() {
		return configErrorf(InvalidArgs, nil, "unknown update mode %d", a.UpdateMode)
	}
	if a.CycleAcceptingComponents && !a.SeparateAccepting {
		return configErrorf(InvalidArgs, nil, "cycling accepting components requires separating them")
	}
	if a.Verbosity != "" {
		if _, err := logrus.ParseLevel(a.Verbosity); err != nil {
			return configErrorf(InvalidArgs, err, "bad verbosity")
		}
	}
	for _, sim := range a.Simulations {
		if sim.Name == "" {
			return configErrorf(InvalidArgs, nil, "simulation without a name")
		}
	}
	return nil
}

func (a Args) String() string {
	var on []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"ext", a.UseExternalPruning}, {"int", a.UseInternalPruning},
		{"topo", a.UsePowersetTopology}, {"smart", a.UseSmartSuccessor},
		{"rej", a.SeparateRejecting}, {"acc", a.SeparateAccepting},
		{"cyc", a.CycleAcceptingComponents}, {"det", a.SeparateDeterministic},
		{"mix", a.SeparateMixed},
	} {
		if f.set {
			on = append(on, f.name)
		}
	}
	sims := make([]string, len(a.Simulations))
	for i, s := range a.Simulations {
		sims[i] = s.String()
	}
	return fmt.Sprintf("mode=%s sims=[%s] opts=[%s]", a.UpdateMode, strings.Join(sims, ","), strings.Join(on, ","))
}

// UpdateModeHookFunc decodes update modes from names or numbers.
func UpdateModeHookFunc() mapstructure.DecodeHookFunc {
	return updateModeHookFunc
}

func updateModeHookFunc(f, t reflect.Type, data interface{}) (interface{}, error) {
	if t != reflect.TypeOf(UpdateMode(0)) {
		return data, nil
	}
	switch f.Kind() {
	case reflect.String:
		return ParseUpdateMode(data.(string))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ParseUpdateMode(strconv.FormatInt(reflect.ValueOf(data).Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ParseUpdateMode(strconv.FormatUint(reflect.ValueOf(data).Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return ParseUpdateMode(strconv.FormatFloat(reflect.ValueOf(data).Float(), 'f', -1, 64))
	default:
		return data, nil
	}
}

// SimulationSpecHookFunc decodes "name@arg" strings into simulation specs.
func SimulationSpecHookFunc() mapstructure.DecodeHookFunc {
	return simulationSpecHookFunc
}

func simulationSpecHookFunc(f, t reflect.Type, data interface{}) (interface{}, error) {
	if t != reflect.TypeOf(SimulationSpec{}) || f.Kind() != reflect.String {
		return data, nil
	}
	return ParseSimulationSpec(data.(string))
}

// DecodeArgs overlays the keys of raw on DefaultArgs. Unknown keys are errors.
func DecodeArgs(raw map[string]interface{}) (Args, error) {
	args := DefaultArgs()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			UpdateModeHookFunc(),
			SimulationSpecHookFunc(),
		),
		ErrorUnused: true,
		Result:      &args,
	})
	if err != nil {
		return Args{}, errors.Wrap(err, "creating args decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return Args{}, configErrorf(InvalidArgs, err, "decoding args")
	}
	if err := args.Validate(); err != nil {
		return Args{}, err
	}
	return args, nil
}

// LoadArgs reads a YAML document of arguments, see DecodeArgs.
func LoadArgs(r io.Reader) (Args, error) {
	raw := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return Args{}, configErrorf(InvalidArgs, err, "reading args document")
	}
	return DecodeArgs(raw)
}
