package nbadet

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
)

// SccSets partitions the reachable NBA states into determinization components.
type SccSets struct {
	// Rejecting holds the states of rejecting SCCs when they are separated.
	Rejecting *bitset.BitSet
	// Accepting is the union of AcceptingSccs.
	Accepting *bitset.BitSet
	// AcceptingSccs has one entry per accepting SCC when cycling, else at most one.
	AcceptingSccs []*bitset.BitSet
	// Deterministic has one entry per separated deterministic SCC.
	Deterministic []*bitset.BitSet
	// Mixed has one entry per remaining SCC when separating them, else at most one.
	Mixed []*bitset.BitSet
}

// NewSccSets classifies the SCCs of info in the order rejecting, accepting,
// deterministic, mixed. SCCs of a disabled group fall through to the next one.
func NewSccSets(info *SccInfo, args Args) SccSets {
	sets := SccSets{Rejecting: newSet(), Accepting: newSet()}
	var mixed []*bitset.BitSet
	for i := 0; i < info.NumSccs(); i++ {
		states := info.States(i)
		switch {
		case args.SeparateRejecting && info.IsRejecting(i):
			sets.Rejecting.InPlaceUnion(states)
		case args.SeparateAccepting && info.IsAccepting(i):
			sets.Accepting.InPlaceUnion(states)
			sets.AcceptingSccs = append(sets.AcceptingSccs, states)
		case args.SeparateDeterministic && info.IsDeterministic(i):
			sets.Deterministic = append(sets.Deterministic, states)
		default:
			mixed = append(mixed, states)
		}
	}
	if !args.CycleAcceptingComponents && len(sets.AcceptingSccs) > 1 {
		sets.AcceptingSccs = []*bitset.BitSet{cloneSet(sets.Accepting)}
	}
	if args.SeparateMixed || len(mixed) <= 1 {
		sets.Mixed = mixed
	} else {
		all := newSet()
		for _, m := range mixed {
			all.InPlaceUnion(m)
		}
		sets.Mixed = []*bitset.BitSet{all}
	}
	return sets
}

func (s SccSets) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rej: %s", setString(s.Rejecting))
	for _, a := range s.AcceptingSccs {
		fmt.Fprintf(&sb, " acc: %s", setString(a))
	}
	for _, d := range s.Deterministic {
		fmt.Fprintf(&sb, " det: %s", setString(d))
	}
	for _, m := range s.Mixed {
		fmt.Fprintf(&sb, " mix: %s", setString(m))
	}
	return sb.String()
}

// Config is everything a determinization needs to know about its input. It is
// immutable and shared by all engines built from it.
type Config struct {
	args     Args
	numProps int
	initial  *bitset.BitSet

	raw  *AdjacencyMatrix
	aut  *AdjacencyMatrix
	info *SccInfo
	sets SccSets

	accSinks *bitset.BitSet
	ext      *InclusionMask
	internal *InclusionMask

	log     *logrus.Entry
	metrics *Metrics
}

type configOptions struct {
	logger     *logrus.Logger
	inclusions []Inclusion
	oracles    map[string]InclusionOracle
	metrics    *Metrics
}

// ConfigOption customizes NewConfig.
type ConfigOption func(*configOptions)

// WithLogger logs to logger instead of a fresh logger at the Args verbosity.
func WithLogger(logger *logrus.Logger) ConfigOption {
	return func(o *configOptions) {
		o.logger = logger
	}
}

// WithInclusions adds known language inclusions to those of the simulation oracles.
func WithInclusions(pairs ...Inclusion) ConfigOption {
	return func(o *configOptions) {
		o.inclusions = append(o.inclusions, pairs...)
	}
}

// WithOracles registers additional simulation oracles by name.
func WithOracles(oracles map[string]InclusionOracle) ConfigOption {
	return func(o *configOptions) {
		for name, oracle := range oracles {
			o.oracles[name] = oracle
		}
	}
}

// WithMetrics records engine and cache activity in m.
func WithMetrics(m *Metrics) ConfigOption {
	return func(o *configOptions) {
		o.metrics = m
	}
}

// NewConfig analyses nba for determinization with args.
func NewConfig(nba NBA, args Args, opts ...ConfigOption) (*Config, error) {
	if nba.NumPropositions() > MaxPropositions || nba.NumPropositions() < 0 {
		return nil, configErrorf(TooManyPropositions, nil,
			"%d atomic propositions, at most %d are supported", nba.NumPropositions(), MaxPropositions)
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}

	o := &configOptions{oracles: builtinOracles()}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = logrus.New()
		level := logrus.WarnLevel
		if args.Verbosity != "" {
			var err error
			if level, err = logrus.ParseLevel(args.Verbosity); err != nil {
				return nil, configErrorf(InvalidArgs, err, "verbosity %q", args.Verbosity)
			}
		}
		logger.SetLevel(level)
	}

	simulated, err := runOracles(nba, args.Simulations, o.oracles)
	if err != nil {
		return nil, err
	}
	pairs := sortedInclusions(append(simulated, o.inclusions...))

	c := &Config{
		args:     args,
		numProps: nba.NumPropositions(),
		initial:  setOf(nba.InitialStates()...),
		raw:      newAdjacencyMatrix(nba),
		info:     NewSccInfo(nba),
		log:      logger.WithField("component", "nbadet"),
		metrics:  o.metrics,
	}
	c.sets = NewSccSets(c.info, args)
	// only reachable states are ever tracked
	c.accSinks = intersection(c.raw.AcceptingPseudoSinks(), c.info.ReachableStates())
	if args.UseExternalPruning {
		c.ext = NewInclusionMask(c.raw.NumStates(), FilterExternalInclusions(pairs, c.info))
	}
	if args.UseInternalPruning {
		c.internal = NewInclusionMask(c.raw.NumStates(), FilterInternalInclusions(pairs, c.info))
	}
	c.aut = c.raw.withPruning(c.accSinks, c.ext)

	if c.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		c.log.WithFields(logrus.Fields{
			"args":     args.String(),
			"states":   c.raw.NumStates(),
			"sccs":     c.info.NumSccs(),
			"accSinks": setString(c.accSinks),
			"ext":      c.ext.String(),
			"int":      c.internal.String(),
		}).Debugf("assembled configuration, components %s", c.sets)
	}
	if c.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		c.log.Tracef("adjacency matrix:\n%s", c.raw)
	}
	return c, nil
}

// WithUpdateMode returns a copy of c that uses mode.
func (c *Config) WithUpdateMode(mode UpdateMode) *Config {
	cp := *c
	cp.args.UpdateMode = mode
	return &cp
}

func (c *Config) Args() Args {
	return c.args
}

func (c *Config) NumPropositions() int {
	return c.numProps
}

// InitialStates returns the initial NBA states.
func (c *Config) InitialStates() *bitset.BitSet {
	return cloneSet(c.initial)
}

// Matrix is the adjacency matrix with the enabled optimizations applied.
func (c *Config) Matrix() *AdjacencyMatrix {
	return c.aut
}

func (c *Config) SccInfo() *SccInfo {
	return c.info
}

func (c *Config) Sets() SccSets {
	return c.sets
}

// AcceptingSinks are the reachable accepting pseudo-sinks.
func (c *Config) AcceptingSinks() *bitset.BitSet {
	return cloneSet(c.accSinks)
}

func (c *Config) ExternalMask() *InclusionMask {
	return c.ext
}

func (c *Config) InternalMask() *InclusionMask {
	return c.internal
}

func (c *Config) Logger() *logrus.Entry {
	return c.log
}

func (c *Config) Metrics() *Metrics {
	return c.metrics
}

// RankBound is an upper bound on the number of ranks a macro-state can hold.
func (c *Config) RankBound() int {
	return c.raw.NumStates()
}

// WeakestBadPriority is a bad priority that no rank can produce.
func (c *Config) WeakestBadPriority() int {
	return RankToPriority(c.RankBound()+1, false)
}

// Acceptance describes the min-even parity condition of the produced automaton.
func (c *Config) Acceptance() Acceptance {
	return Acceptance{NumPriorities: c.WeakestBadPriority() + 1, MinEven: true}
}
