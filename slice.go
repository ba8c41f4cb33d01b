package nbadet

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// RankedSet is a set of NBA states tagged with a rank. Lower ranks are older.
type RankedSet struct {
	States *bitset.BitSet
	Rank   int
}

func (e RankedSet) clone() RankedSet {
	return RankedSet{States: cloneSet(e.States), Rank: e.Rank}
}

func (e RankedSet) String() string {
	return setString(e.States) + ":" + strconv.Itoa(e.Rank)
}

// RankedSlice is a Safra tree stored as a flat list. The parent of entry i is the
// nearest later entry with a smaller rank, so every subtree is a contiguous run
// ending in its root. In a finished macro-state the sets are disjoint and non-empty
// and the ranks distinct.
//
// Operations never modify their receiver.
type RankedSlice []RankedSet

// SingletonSlice wraps one ranked set.
func SingletonSlice(states *bitset.BitSet, rank int) RankedSlice {
	return RankedSlice{{States: cloneSet(states), Rank: rank}}
}

// Clone copies the slice and its sets.
func (s RankedSlice) Clone() RankedSlice {
	if s == nil {
		return nil
	}
	out := make(RankedSlice, len(s))
	for i, e := range s {
		out[i] = e.clone()
	}
	return out
}

// LeftNormalized keeps only the leftmost occurrence of every state.
func (s RankedSlice) LeftNormalized() RankedSlice {
	seen := newSet()
	out := make(RankedSlice, len(s))
	for i, e := range s {
		set := without(e.States, seen)
		seen.InPlaceUnion(set)
		out[i] = RankedSet{States: set, Rank: e.Rank}
	}
	return out
}

// WithoutEmptySets drops the entries with an empty set.
func (s RankedSlice) WithoutEmptySets() RankedSlice {
	out := make(RankedSlice, 0, len(s))
	for _, e := range s {
		if !isEmptySet(e.States) {
			out = append(out, e.clone())
		}
	}
	return out
}

// PrunedWithSim removes a state from an entry when an entry to its left already
// holds the state or a state dominating it.
func (s RankedSlice) PrunedWithSim(mask *InclusionMask) RankedSlice {
	useless := newSet()
	out := make(RankedSlice, len(s))
	for i, e := range s {
		upd := without(e.States, useless)
		out[i] = RankedSet{States: upd, Rank: e.Rank}
		useless.InPlaceUnion(upd)
		forEachState(upd, func(q int) {
			mask.AddSubsumed(q, useless)
		})
	}
	return out
}

// FullMerge collapses every run of neighbours whose ranks are at least domRank,
// as long as the run started above domRank. The merged entry keeps the smallest
// rank of the run.
func (s RankedSlice) FullMerge(domRank int) RankedSlice {
	if len(s) == 0 {
		return RankedSlice{}
	}
	var out RankedSlice
	cur := s[0].clone()
	for _, e := range s[1:] {
		if cur.Rank > domRank && e.Rank >= domRank {
			cur.Rank = min(cur.Rank, e.Rank)
			cur.States.InPlaceUnion(e.States)
			continue
		}
		out = append(out, cur)
		cur = e.clone()
	}
	return append(out, cur)
}

// TreeRelations recovers the forest: parent[i] is the nearest later entry with a
// smaller rank, lborder[i] the entry just left of the subtree rooted at i. Both are
// -1 when missing.
func (s RankedSlice) TreeRelations() (parent []int, lborder []int) {
	parent = make([]int, len(s))
	lborder = make([]int, len(s))
	stack := make([]int, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		for len(stack) > 0 && s[i].Rank < s[stack[len(stack)-1]].Rank {
			lborder[stack[len(stack)-1]] = i
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			parent[i] = -1
		} else {
			parent[i] = stack[len(stack)-1]
		}
		stack = append(stack, i)
	}
	for _, i := range stack {
		lborder[i] = -1
	}
	return parent, lborder
}

// split replaces every entry by the states reached through an accepting edge under
// a fresh rank, followed by the remaining successors under the old rank.
func (s RankedSlice) split(succ func(*bitset.BitSet) (*bitset.BitSet, *bitset.BitSet), ranks *rankGen) RankedSlice {
	out := make(RankedSlice, 0, 2*len(s))
	for _, e := range s {
		all, acc := succ(e.States)
		out = append(out,
			RankedSet{States: acc, Rank: ranks.fresh()},
			RankedSet{States: without(all, acc), Rank: e.Rank})
	}
	return out
}

// States returns the union of all entries.
func (s RankedSlice) States() *bitset.BitSet {
	u := newSet()
	for _, e := range s {
		if e.States != nil {
			u.InPlaceUnion(e.States)
		}
	}
	return u
}

func (s RankedSlice) Ranks() []int {
	out := make([]int, len(s))
	for i, e := range s {
		out[i] = e.Rank
	}
	return out
}

// Equal compares sets and ranks entry by entry.
func (s RankedSlice) Equal(o RankedSlice) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i].Rank != o[i].Rank || !sameSet(s[i].States, o[i].States) {
			return false
		}
	}
	return true
}

func (s RankedSlice) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Unprune labels every entry with the states of its whole subtree. Unpruned entries
// in rank order determine the slice uniquely.
func (s RankedSlice) Unprune() RankedSlice {
	out := make(RankedSlice, 0, len(s))
	var stack RankedSlice
	for _, e := range s {
		tmp := cloneSet(e.States)
		for len(stack) > 0 && e.Rank < stack[len(stack)-1].Rank {
			tmp.InPlaceUnion(stack[len(stack)-1].States)
			stack = stack[:len(stack)-1]
		}
		el := RankedSet{States: tmp, Rank: e.Rank}
		out = append(out, el)
		stack = append(stack, el)
	}
	return out
}

// Prune is the inverse of Unprune.
func (s RankedSlice) Prune() RankedSlice {
	out := make(RankedSlice, 0, len(s))
	var stack RankedSlice
	for _, e := range s {
		tmp := cloneSet(e.States)
		for len(stack) > 0 && e.Rank < stack[len(stack)-1].Rank {
			tmp.InPlaceDifference(stack[len(stack)-1].States)
			stack = stack[:len(stack)-1]
		}
		out = append(out, RankedSet{States: tmp, Rank: e.Rank})
		stack = append(stack, e)
	}
	return out
}

// sortByRank orders the entries by rank, stable for equal ranks.
func sortByRank(s RankedSlice) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Rank < s[j].Rank })
}

// TrieEncoding lists the unpruned sets in rank order.
func (s RankedSlice) TrieEncoding() []*bitset.BitSet {
	unpruned := s.Unprune()
	sortByRank(unpruned)
	out := make([]*bitset.BitSet, len(unpruned))
	for i, e := range unpruned {
		out[i] = e.States
	}
	return out
}

// SliceFromTrieEncoding reverses TrieEncoding for the encoding of a single slice.
// Entry i of the result gets rank i.
func SliceFromTrieEncoding(word []*bitset.BitSet) RankedSlice {
	children := make([][]int, len(word))
	var roots []int
	for i := range word {
		parent := -1
		for j := i - 1; j >= 0; j-- {
			if subsetOf(word[i], word[j]) {
				parent = j
				break
			}
		}
		if parent == -1 {
			roots = append(roots, i)
		} else {
			children[parent] = append(children[parent], i)
		}
	}

	var postorder RankedSlice
	var visit func(int)
	visit = func(i int) {
		for _, c := range children[i] {
			visit(c)
		}
		postorder = append(postorder, RankedSet{States: cloneSet(word[i]), Rank: i})
	}
	for _, r := range roots {
		visit(r)
	}
	return postorder.Prune()
}

// FinerOrEqual reports whether o can be obtained from s by merging neighbouring
// entries, ignoring ranks.
func (s RankedSlice) FinerOrEqual(o RankedSlice) bool {
	if len(s) == 0 || len(o) == 0 {
		return len(s) == 0 && len(o) == 0
	}
	pref1, pref2 := newSet(), newSet()
	i, j := 0, 0
	for ; j < len(o); j++ {
		pref2.InPlaceUnion(o[j].States)
		for i < len(s) && subsetOf(union(pref1, s[i].States), pref2) {
			pref1.InPlaceUnion(s[i].States)
			i++
		}
		if !sameSet(pref1, pref2) {
			return false
		}
	}
	return i == len(s)
}

// KEquivalent reports that two trie encodings agree on their first k+1 sets, the
// powerset and the k oldest ranks.
func KEquivalent(th1, th2 []*bitset.BitSet, k int) bool {
	if k >= len(th1) || k >= len(th2) {
		return false
	}
	for i := 0; i <= k; i++ {
		if !sameSet(th1[i], th2[i]) {
			return false
		}
	}
	return true
}

// kCutMask returns the states that must stay above level k and, for every level
// from k on, the states that must have appeared by then.
func kCutMask(th []*bitset.BitSet, k int) (*bitset.BitSet, []*bitset.BitSet) {
	var masks []*bitset.BitSet
	tmp := newSet()
	for i := k; i < len(th); i++ {
		tmp.InPlaceUnion(th[i])
		masks = append(masks, tmp.Clone())
	}
	return without(th[0], tmp), masks
}

// notWorse reports that th1 keeps the k-cut of th2: it is k-equivalent, no state
// kept above level k in th2 sinks to level k or below, and every state appears no
// later than in th2.
func notWorse(th1, th2 []*bitset.BitSet, k int) bool {
	if !KEquivalent(th1, th2, k) {
		return false
	}
	forbidden, masks := kCutMask(th2, k)
	tmp := newSet()
	for i := k; i < len(th1); i++ {
		if !disjoint(th1[i], forbidden) {
			return false
		}
		tmp.InPlaceUnion(th1[i])
		if i-k < len(masks) && !subsetOf(masks[i-k], tmp) {
			return false
		}
	}
	return true
}

// rankGen hands out increasing ranks.
type rankGen struct {
	next int
}

func (g *rankGen) fresh() int {
	r := g.next
	g.next++
	return r
}
