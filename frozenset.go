package nbadet

import "github.com/bits-and-blooms/bitset"

var _ Hashable = FrozenSet{}

// FrozenSet is an immutable set of NBA states usable as a HashMap key.
type FrozenSet struct {
	set      *bitset.BitSet
	hashCode uint64
}

// Freeze copies b into a FrozenSet.
func Freeze(b *bitset.BitSet) FrozenSet {
	c := cloneSet(b)
	return FrozenSet{set: c, hashCode: hashSet(c)}
}

// FreezeStates builds a FrozenSet from explicit members.
func FreezeStates(states ...int) FrozenSet {
	return Freeze(setOf(states...))
}

func (f FrozenSet) Hash() uint64 {
	return f.hashCode
}

func (f FrozenSet) Equals(other Hashable) bool {
	o, ok := other.(FrozenSet)
	if !ok {
		return false
	}
	return f.hashCode == o.hashCode && sameSet(f.set, o.set)
}

// Set returns a copy of the members.
func (f FrozenSet) Set() *bitset.BitSet {
	return cloneSet(f.set)
}

func (f FrozenSet) Contains(s int) bool {
	return f.set != nil && f.set.Test(uint(s))
}

func (f FrozenSet) Size() int {
	return countSet(f.set)
}

func (f FrozenSet) IsEmpty() bool {
	return isEmptySet(f.set)
}

// States lists the members in increasing order.
func (f FrozenSet) States() []int {
	return setToSlice(f.set)
}

func (f FrozenSet) String() string {
	return setString(f.set)
}
