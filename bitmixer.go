package nbadet

import "github.com/bits-and-blooms/bitset"

const (
	// Golden ratio bit mixers.
	phiC32 = uint32(0x9e3779b9)
	phiC64 = uint64(0x9e3779b97f4a7c15)
)

// mix32 is the 32 bit finalization step of MurmurHash3.
func mix32(v int) int {
	k := uint32(v)
	k = (k ^ (k >> 16)) * 0x85ebca6b
	k = (k ^ (k >> 13)) * 0xc2b2ae35
	return int(k ^ (k >> 16))
}

// mix64 is the 64 bit finalization step of MurmurHash3.
func mix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// combineHash folds v into h.
func combineHash(h, v uint64) uint64 {
	return mix64(h*phiC64 + v)
}

// hashSet hashes the members of b. Sets with equal members hash equally whatever
// their capacity.
func hashSet(b *bitset.BitSet) uint64 {
	h := uint64(phiC32)
	forEachState(b, func(s int) {
		h = combineHash(h, uint64(mix32(s)))
	})
	return h
}
