package nbadet

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Helpers on top of bitset. Sets in this package may have different lengths, so
// equality and emptiness never look at Len().

func newSet() *bitset.BitSet {
	return bitset.New(0)
}

func setOf(states ...int) *bitset.BitSet {
	b := bitset.New(0)
	for _, s := range states {
		b.Set(uint(s))
	}
	return b
}

func cloneSet(b *bitset.BitSet) *bitset.BitSet {
	if b == nil {
		return newSet()
	}
	return b.Clone()
}

func isEmptySet(b *bitset.BitSet) bool {
	return b == nil || b.None()
}

func sameSet(a, b *bitset.BitSet) bool {
	if isEmptySet(a) || isEmptySet(b) {
		return isEmptySet(a) && isEmptySet(b)
	}
	return a.SymmetricDifferenceCardinality(b) == 0
}

func disjoint(a, b *bitset.BitSet) bool {
	if isEmptySet(a) || isEmptySet(b) {
		return true
	}
	return a.IntersectionCardinality(b) == 0
}

// subsetOf reports a ⊆ b.
func subsetOf(a, b *bitset.BitSet) bool {
	if isEmptySet(a) {
		return true
	}
	if b == nil {
		return false
	}
	return a.DifferenceCardinality(b) == 0
}

func union(a, b *bitset.BitSet) *bitset.BitSet {
	r := cloneSet(a)
	if b != nil {
		r.InPlaceUnion(b)
	}
	return r
}

func intersection(a, b *bitset.BitSet) *bitset.BitSet {
	r := cloneSet(a)
	if b == nil {
		r.ClearAll()
		return r
	}
	r.InPlaceIntersection(b)
	return r
}

// without returns a \ b.
func without(a, b *bitset.BitSet) *bitset.BitSet {
	r := cloneSet(a)
	if b != nil {
		r.InPlaceDifference(b)
	}
	return r
}

func forEachState(b *bitset.BitSet, fn func(s int)) {
	if b == nil {
		return
	}
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		fn(int(i))
	}
}

func setToSlice(b *bitset.BitSet) []int {
	out := make([]int, 0, countSet(b))
	forEachState(b, func(s int) {
		out = append(out, s)
	})
	return out
}

func countSet(b *bitset.BitSet) int {
	if b == nil {
		return 0
	}
	return int(b.Count())
}

func setString(b *bitset.BitSet) string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	forEachState(b, func(s int) {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		sb.WriteString(strconv.Itoa(s))
	})
	sb.WriteByte('}')
	return sb.String()
}
