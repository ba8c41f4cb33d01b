package nbadet

import (
	"sort"
	"strconv"

	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
)

// Engine computes macro-state successors for one configuration. It keeps no state
// besides the configuration and is safe for concurrent use.
type Engine struct {
	conf    *Config
	log     *logrus.Entry
	empty   *DetState
	accSink *DetState
}

func NewEngine(conf *Config) *Engine {
	return &Engine{
		conf:    conf,
		log:     conf.Logger().WithField("mode", conf.Args().UpdateMode.String()),
		empty:   NewDetState(conf, newSet()),
		accSink: NewDetState(conf, conf.AcceptingSinks()),
	}
}

func (e *Engine) Config() *Config {
	return e.conf
}

// Initial is the macro-state of the initial NBA states.
func (e *Engine) Initial() *DetState {
	return NewDetState(e.conf, e.conf.InitialStates())
}

// EmptyState is the rejecting sink, entered with WeakestBadPriority.
func (e *Engine) EmptyState() *DetState {
	return e.empty
}

// AcceptingSinkState is the accepting sink, entered with priority 0.
func (e *Engine) AcceptingSinkState() *DetState {
	return e.accSink
}

// stepState is the mutable copy of a macro-state a step works on.
type stepState struct {
	powerSet  *bitset.BitSet
	rejecting *bitset.BitSet
	buffer    *bitset.BitSet
	active    *RankedSet
	det       []RankedSlice
	mixed     []RankedSlice

	// seenGood[i][j] records that det[i][j] was entered through an accepting edge.
	seenGood [][]bool
}

func (s *stepState) freeze() *DetState {
	st := &DetState{
		powerSet:  s.powerSet,
		rejecting: s.rejecting,
		buffer:    s.buffer,
		det:       s.det,
		mixed:     s.mixed,
	}
	if s.active != nil {
		a := *s.active
		st.active = &a
	}
	st.hash = st.computeHash()
	return st
}

func (s *stepState) snapshot() *DetState {
	cp := &stepState{
		powerSet:  cloneSet(s.powerSet),
		rejecting: cloneSet(s.rejecting),
		buffer:    cloneSet(s.buffer),
		det:       cloneSlices(s.det),
		mixed:     cloneSlices(s.mixed),
	}
	if s.active != nil {
		a := s.active.clone()
		cp.active = &a
	}
	return cp.freeze()
}

// Successor computes the successor of st on v and the priority of the transition.
func (e *Engine) Successor(st *DetState, v Valuation) (*DetState, int) {
	trace := e.log.Logger.IsLevelEnabled(logrus.TraceLevel)
	if trace {
		e.log.Tracef("begin %d succ of: %s", v, st)
	}

	// temporary ranks never collide with the ranks of st
	ranks := &rankGen{next: e.conf.RankBound() + 1}

	s := e.applySucc(st, v, ranks)

	if isEmptySet(s.powerSet) {
		if trace {
			e.log.Trace("empty set reached")
		}
		e.conf.Metrics().observeStep(EmptySink)
		return e.empty, e.conf.WeakestBadPriority()
	}
	if !disjoint(s.powerSet, e.conf.accSinks) {
		if trace {
			e.log.Trace("accepting sink reached")
		}
		e.conf.Metrics().observeStep(AcceptSink)
		return e.accSink, 0
	}

	s.leftNormalize()
	e.pruneSimStates(s)
	if trace {
		e.log.Tracef("step+prune: %s", s.snapshot())
	}

	switchers := e.extractSwitchers(s)
	if trace {
		e.log.Tracef("-switchers: %s", s.snapshot())
	}

	prevActive := newSet()
	if st.active != nil {
		prevActive = st.active.States
	}
	priority := e.performActions(s, prevActive, ranks, trace)
	if trace {
		e.log.Tracef("merge: %s", s.snapshot())
	}

	e.integrateSwitchers(s, switchers, ranks)
	s.leftNormalize()
	if trace {
		e.log.Tracef("+switchers: %s", s.snapshot())
	}

	s.removeEmptySets()
	s.normalizeRanks()
	succ := s.freeze()
	if trace {
		e.log.Tracef("normalize: %s / %d", succ, priority)
	}
	if debugChecks {
		if err := succ.Validate(); err != nil {
			panic(err)
		}
	}
	e.conf.Metrics().observeStep(Regular)
	return succ, priority
}

// applySucc moves every component along v. Mixed slices are split into accepting
// and non-accepting successors, deterministic slices only remember whether an
// accepting edge inside their component was taken.
func (e *Engine) applySucc(st *DetState, v Valuation, ranks *rankGen) *stepState {
	aut := e.conf.Matrix()
	succ := func(set *bitset.BitSet) (*bitset.BitSet, *bitset.BitSet) {
		return aut.PowerSucc(set, v)
	}
	succAll := func(set *bitset.BitSet) *bitset.BitSet {
		all, _ := aut.PowerSucc(set, v)
		return all
	}

	s := &stepState{
		powerSet:  succAll(st.powerSet),
		rejecting: succAll(st.rejecting),
		buffer:    succAll(st.buffer),
		det:       make([]RankedSlice, len(st.det)),
		mixed:     make([]RankedSlice, len(st.mixed)),
		seenGood:  make([][]bool, len(st.det)),
	}
	if st.active != nil {
		s.active = &RankedSet{States: succAll(st.active.States), Rank: st.active.Rank}
	}
	detSets := e.conf.Sets().Deterministic
	for i, sl := range st.det {
		s.det[i] = make(RankedSlice, len(sl))
		s.seenGood[i] = make([]bool, len(sl))
		for j, el := range sl {
			all, acc := succ(el.States)
			s.det[i][j] = RankedSet{States: all, Rank: el.Rank}
			// accepting edges leaving the component do not count
			s.seenGood[i][j] = !disjoint(acc, detSets[i])
		}
	}
	for i, sl := range st.mixed {
		s.mixed[i] = sl.split(succ, ranks)
	}
	return s
}

// leftNormalize keeps the leftmost copy of every state inside each component.
func (s *stepState) leftNormalize() {
	if s.active != nil {
		s.buffer.InPlaceDifference(s.active.States)
	}
	for i := range s.det {
		s.det[i] = s.det[i].LeftNormalized()
	}
	for i := range s.mixed {
		s.mixed[i] = s.mixed[i].LeftNormalized()
	}
}

func (e *Engine) pruneSimStates(s *stepState) {
	if !e.conf.ExternalMask().IsEmpty() {
		// the power set is already pruned, the components are not
		s.rejecting.InPlaceIntersection(s.powerSet)
		s.buffer.InPlaceIntersection(s.powerSet)
		if s.active != nil {
			s.active.States.InPlaceIntersection(s.powerSet)
		}
		for _, group := range [][]RankedSlice{s.det, s.mixed} {
			for _, sl := range group {
				for _, el := range sl {
					el.States.InPlaceIntersection(s.powerSet)
				}
			}
		}
	}

	if mask := e.conf.InternalMask(); !mask.IsEmpty() {
		for i := range s.det {
			s.det[i] = s.det[i].PrunedWithSim(mask)
		}
		for i := range s.mixed {
			s.mixed[i] = s.mixed[i].PrunedWithSim(mask)
		}
		ps := union(s.rejecting, s.buffer)
		if s.active != nil {
			ps.InPlaceUnion(s.active.States)
		}
		for _, group := range [][]RankedSlice{s.det, s.mixed} {
			for _, sl := range group {
				ps.InPlaceUnion(sl.States())
			}
		}
		s.powerSet = ps
	}
}

// relocate moves the states of src outside allowed into target.
func relocate(src, allowed, target *bitset.BitSet) {
	target.InPlaceUnion(without(src, allowed))
	src.InPlaceIntersection(allowed)
}

// extractSwitchers removes the states that left their component and returns them.
func (e *Engine) extractSwitchers(s *stepState) *bitset.BitSet {
	sets := e.conf.Sets()
	switchers := newSet()
	relocate(s.rejecting, sets.Rejecting, switchers)
	relocate(s.buffer, sets.Accepting, switchers)
	if s.active != nil {
		relocate(s.active.States, sets.Accepting, switchers)
	}
	for i, sl := range s.det {
		for _, el := range sl {
			relocate(el.States, sets.Deterministic[i], switchers)
		}
	}
	for i, sl := range s.mixed {
		for _, el := range sl {
			relocate(el.States, sets.Mixed[i], switchers)
		}
	}
	return switchers
}

// performActions fires the rank events of the step, updates the breakpoint and the
// Safra trees and returns the dominating priority.
func (e *Engine) performActions(s *stepState, prevActive *bitset.BitSet, ranks *rankGen, trace bool) int {
	args := e.conf.Args()
	sets := e.conf.Sets()
	dom := e.conf.WeakestBadPriority()

	fire := func(rank int, good bool) int {
		dom = min(dom, RankToPriority(rank, good))
		if good {
			return rank
		}
		return ranks.fresh()
	}

	offset := -1
	if args.CycleAcceptingComponents {
		for i, scc := range sets.AcceptingSccs {
			if !disjoint(prevActive, scc) {
				offset = i
				break
			}
		}
		if offset > -1 && s.active != nil {
			cur := sets.AcceptingSccs[offset]
			s.buffer.InPlaceUnion(without(s.active.States, cur))
			s.active.States.InPlaceIntersection(cur)
		}
	}

	alive := s.active != nil && !isEmptySet(s.active.States)
	if s.active != nil {
		s.active.Rank = fire(s.active.Rank, alive)
	}
	if trace && args.SeparateAccepting {
		if alive {
			e.log.Trace("accepting set alive")
		} else {
			e.log.Trace("accepting set breakpoint")
		}
	}

	if !alive && !isEmptySet(s.buffer) {
		cur := s.active
		if cur == nil {
			cur = &RankedSet{Rank: ranks.fresh()}
		}
		if args.CycleAcceptingComponents {
			n := len(sets.AcceptingSccs)
			for i := 0; i < n; i++ {
				next := (offset + i + 1) % n
				cand := intersection(s.buffer, sets.AcceptingSccs[next])
				if !isEmptySet(cand) {
					s.active = &RankedSet{States: cand, Rank: cur.Rank}
					s.buffer.InPlaceDifference(cand)
					break
				}
			}
		} else {
			s.active = &RankedSet{States: s.buffer, Rank: cur.Rank}
			s.buffer = newSet()
		}
	}

	var events []string
	event := func(rank int, what string) {
		if trace {
			events = append(events, strconv.Itoa(rank)+": "+what)
		}
	}

	for i, sl := range s.det {
		for j := range sl {
			switch {
			case isEmptySet(sl[j].States):
				event(sl[j].Rank, "dead")
				sl[j].Rank = fire(sl[j].Rank, false)
			case s.seenGood[i][j]:
				event(sl[j].Rank, "strd")
				sl[j].Rank = fire(sl[j].Rank, true)
			default:
				event(sl[j].Rank, "neut")
			}
		}
	}

	for _, sl := range s.mixed {
		if len(sl) == 0 {
			continue
		}
		parent, lborder := sl.TreeRelations()
		nodeEmpty := make([]bool, len(sl))
		saturated := make([]bool, len(sl))
		rightmost := make([]int, len(sl))
		for i := range sl {
			nodeEmpty[i] = true
			rightmost[i] = -1
		}

		// children come before their parents, one pass left to right suffices
		for i := range sl {
			curEmpty := isEmptySet(sl[i].States)
			if (!curEmpty || !nodeEmpty[i]) && parent[i] != -1 {
				nodeEmpty[parent[i]] = false
			}
			if curEmpty && !nodeEmpty[i] {
				saturated[i] = true
			}

			switch {
			case curEmpty && saturated[i]:
				event(sl[i].Rank, "strd")
				fire(sl[i].Rank, true)
				switch args.UpdateMode {
				case MullerSchupp:
					child := sl[rightmost[i]].States
					sl[i].States.InPlaceUnion(child)
					child.ClearAll()
				case Safra:
					for j := lborder[i] + 1; j < i; j++ {
						sl[i].States.InPlaceUnion(sl[j].States)
						sl[j].States.ClearAll()
					}
				}
			case curEmpty:
				event(sl[i].Rank, "dead")
				sl[i].Rank = fire(sl[i].Rank, false)
			default:
				event(sl[i].Rank, "neut")
			}

			// after the merge, a saturated node is not empty anymore
			if !isEmptySet(sl[i].States) && parent[i] != -1 {
				rightmost[parent[i]] = i
			}
		}
	}

	if trace {
		e.log.WithField("events", events).Trace("scanned slices")
	}

	if args.UpdateMode == MaxMerge {
		domRank, _ := PriorityToRank(dom)
		for i := range s.det {
			s.det[i] = s.det[i].FullMerge(domRank)
		}
		for i := range s.mixed {
			s.mixed[i] = s.mixed[i].FullMerge(domRank)
		}
	}
	return dom
}

// integrateSwitchers puts the extracted states into their new components. States
// entering a slice get a fresh rank at its right end.
func (e *Engine) integrateSwitchers(s *stepState, switchers *bitset.BitSet, ranks *rankGen) {
	sets := e.conf.Sets()
	s.rejecting.InPlaceUnion(intersection(switchers, sets.Rejecting))
	s.buffer.InPlaceUnion(intersection(switchers, sets.Accepting))
	for i := range s.det {
		if tmp := intersection(switchers, sets.Deterministic[i]); !isEmptySet(tmp) {
			s.det[i] = append(s.det[i], RankedSet{States: tmp, Rank: ranks.fresh()})
		}
	}
	for i := range s.mixed {
		if tmp := intersection(switchers, sets.Mixed[i]); !isEmptySet(tmp) {
			s.mixed[i] = append(s.mixed[i], RankedSet{States: tmp, Rank: ranks.fresh()})
		}
	}
}

func (s *stepState) removeEmptySets() {
	if s.active != nil && isEmptySet(s.active.States) {
		s.active = nil
	}
	for i := range s.det {
		s.det[i] = s.det[i].WithoutEmptySets()
	}
	for i := range s.mixed {
		s.mixed[i] = s.mixed[i].WithoutEmptySets()
	}
}

// normalizeRanks renumbers the used ranks densely from 0, keeping their order.
func (s *stepState) normalizeRanks() {
	var used []int
	if s.active != nil {
		used = append(used, s.active.Rank)
	}
	for _, group := range [][]RankedSlice{s.det, s.mixed} {
		for _, sl := range group {
			used = append(used, sl.Ranks()...)
		}
	}
	sort.Ints(used)
	dense := make(map[int]int, len(used))
	for i, r := range used {
		dense[r] = i
	}

	if s.active != nil {
		s.active.Rank = dense[s.active.Rank]
	}
	for _, group := range [][]RankedSlice{s.det, s.mixed} {
		for _, sl := range group {
			for j := range sl {
				sl[j].Rank = dense[sl[j].Rank]
			}
		}
	}
}
