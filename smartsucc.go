package nbadet

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SuccessorCache decides every (macro-state, valuation) transition exactly once.
// With the smart successor enabled, it redirects a transition to an already built
// macro-state when that state refines the Muller-Schupp successor without moving
// any state to a worse rank. Redirected transitions carry the Muller-Schupp
// priority.
type SuccessorCache struct {
	engine  *Engine
	ref     *Engine
	enabled bool
	log     *logrus.Entry
	metrics *Metrics

	mu    sync.Mutex
	memo  *HashMap[cachedEdge]
	trie  *stateTrie
	stats CacheStats
}

// CacheStats counts what a SuccessorCache did.
type CacheStats struct {
	Lookups     int
	MemoHits    int
	Redirects   int
	Constructed int
}

type cachedEdge struct {
	succ     *DetState
	priority int
}

type cacheRequest struct {
	state *DetState
	v     Valuation
}

func (r cacheRequest) Hash() uint64 {
	return combineHash(r.state.Hash(), uint64(r.v))
}

func (r cacheRequest) Equals(other Hashable) bool {
	o, ok := other.(cacheRequest)
	return ok && r.v == o.v && r.state.Equals(o.state)
}

// NewSuccessorCache wraps engine, checking redirects against a Muller-Schupp engine
// on the same configuration.
func NewSuccessorCache(engine *Engine) *SuccessorCache {
	conf := engine.Config()
	return &SuccessorCache{
		engine:  engine,
		ref:     NewEngine(conf.WithUpdateMode(MullerSchupp)),
		enabled: conf.Args().UseSmartSuccessor,
		log:     conf.Logger().WithField("cache", "smart"),
		metrics: conf.Metrics(),
		memo:    NewHashMap[cachedEdge](WithCapacity(64)),
		trie:    newStateTrie(),
	}
}

// Successor returns the decided successor of st on v.
func (c *SuccessorCache) Successor(st *DetState, v Valuation) (*DetState, int) {
	if !c.enabled {
		return c.engine.Successor(st, v)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	req := cacheRequest{state: st, v: v}
	c.stats.Lookups++
	if e, ok := c.memo.Get(req); ok {
		c.stats.MemoHits++
		c.metrics.observeLookup(true)
		return e.succ, e.priority
	}
	c.metrics.observeLookup(false)

	if alt := c.suitable(st, v, false); len(alt) > 0 {
		e := alt[0]
		c.memo.Set(req, e)
		c.stats.Redirects++
		c.metrics.observeResolved(true)
		if c.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
			c.log.Tracef("redirect %s --%d--> %s", st, v, e.succ)
		}
		return e.succ, e.priority
	}

	succ, priority := c.engine.Successor(st, v)
	c.trie.Put(succ.TrieEncoding(), succ)
	c.memo.Set(req, cachedEdge{succ: succ, priority: priority})
	c.stats.Constructed++
	c.metrics.observeResolved(false)
	return succ, priority
}

// Suitable lists already built macro-states that may replace the successor of st
// on v, paired with the priority such a redirected edge gets. With all unset the
// search stops at the first candidate.
func (c *SuccessorCache) Suitable(st *DetState, v Valuation, all bool) ([]*DetState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	alt := c.suitable(st, v, all)
	out := make([]*DetState, len(alt))
	for i, e := range alt {
		out[i] = e.succ
	}
	_, priority := c.ref.Successor(st, v)
	return out, priority
}

func (c *SuccessorCache) suitable(st *DetState, v Valuation, all bool) []cachedEdge {
	refSucc, refPriority := c.ref.Successor(st, v)
	rank, _ := PriorityToRank(refPriority)
	th := refSucc.TrieEncoding()

	// one entry for the power set, one because ranks start at 0
	k := min(rank+2, len(th))
	forbidden, masks := kCutMask(th, k-1)
	prefix := th[:k]

	node := c.trie.SubTrie(prefix)
	if node == nil {
		return nil
	}
	s := &trieSearch{ref: refSucc, forbidden: forbidden, masks: masks, all: all}
	s.dfs(node, cloneSet(prefix[k-1]), 0)

	out := make([]cachedEdge, len(s.found))
	for i, cand := range s.found {
		out[i] = cachedEdge{succ: cand, priority: refPriority}
	}
	return out
}

type trieSearch struct {
	ref       *DetState
	forbidden *bitset.BitSet
	masks     []*bitset.BitSet
	all       bool
	found     []*DetState
}

// dfs collects the values below node whose sets never hold a forbidden state and
// contain every state of masks[i] by depth i.
func (s *trieSearch) dfs(node *trieNode, prefix *bitset.BitSet, depth int) bool {
	if node.size == 0 || !disjoint(prefix, s.forbidden) {
		return false
	}
	if depth < len(s.masks) && !subsetOf(s.masks[depth], prefix) {
		return false
	}
	if cand := node.value; cand != nil {
		allDown := subsetOf(s.masks[len(s.masks)-1], prefix)
		if allDown && s.ref.FinerOrEqual(cand) {
			s.found = append(s.found, cand)
			if !s.all {
				return true
			}
		}
	}
	done := false
	node.forEachChild(func(letter *bitset.BitSet, child *trieNode) bool {
		done = s.dfs(child, union(prefix, letter), depth+1)
		return !done
	})
	return done
}

// CheckRedirect verifies that using succ with priority as the successor of st on v
// is sound: it must carry the priority the configured engine would produce, refine
// the Muller-Schupp successor and keep every state at least as high in the tree.
// The configured successor itself always passes.
func (c *SuccessorCache) CheckRedirect(st *DetState, v Valuation, succ *DetState, priority int) error {
	usr, usrPriority := c.engine.Successor(st, v)
	if usr.Equals(succ) && usrPriority == priority {
		return nil
	}
	ref, refPriority := c.ref.Successor(st, v)
	rank, _ := PriorityToRank(refPriority)
	th := ref.TrieEncoding()
	level := min(rank+1, len(th)-1)
	if usrPriority != priority {
		return errors.Errorf("edge priority changed from %d to %d", usrPriority, priority)
	}
	if !ref.FinerOrEqual(succ) {
		return errors.Errorf("%s does not refine the Muller-Schupp successor %s", succ, ref)
	}
	if !notWorse(succ.TrieEncoding(), th, level) {
		return errors.Errorf("%s moves states below their Muller-Schupp ranks in %s", succ, ref)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *SuccessorCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
