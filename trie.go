package nbadet

import (
	"github.com/bits-and-blooms/bitset"
)

// stateTrie stores macro-states under their trie encodings. Children are kept in
// insertion order so that searches are deterministic.
type stateTrie struct {
	root *trieNode
}

type trieNode struct {
	value    *DetState
	children *HashMap[*trieNode]
	keys     []FrozenSet
	// number of values in this subtree
	size int
}

func newTrieNode() *trieNode {
	return &trieNode{children: NewHashMap[*trieNode](WithCapacity(4))}
}

func newStateTrie() *stateTrie {
	return &stateTrie{root: newTrieNode()}
}

func (n *trieNode) child(key *bitset.BitSet) *trieNode {
	c, _ := n.children.Get(Freeze(key))
	return c
}

// Put stores st under word, replacing a previous value.
func (t *stateTrie) Put(word []*bitset.BitSet, st *DetState) {
	path := []*trieNode{t.root}
	node := t.root
	for _, letter := range word {
		next := node.child(letter)
		if next == nil {
			key := Freeze(letter)
			next = newTrieNode()
			node.children.Set(key, next)
			node.keys = append(node.keys, key)
		}
		node = next
		path = append(path, node)
	}
	fresh := node.value == nil
	node.value = st
	if fresh {
		for _, n := range path {
			n.size++
		}
	}
}

// Get returns the value stored exactly under word.
func (t *stateTrie) Get(word []*bitset.BitSet) (*DetState, bool) {
	n := t.SubTrie(word)
	if n == nil || n.value == nil {
		return nil, false
	}
	return n.value, true
}

// SubTrie returns the node reached by prefix, or nil if no value has that prefix.
func (t *stateTrie) SubTrie(prefix []*bitset.BitSet) *trieNode {
	node := t.root
	for _, letter := range prefix {
		if node = node.child(letter); node == nil {
			return nil
		}
	}
	if node.size == 0 {
		return nil
	}
	return node
}

// Size is the number of stored values.
func (t *stateTrie) Size() int {
	return t.root.size
}

// forEachChild visits the children in insertion order until fn returns false.
func (n *trieNode) forEachChild(fn func(letter *bitset.BitSet, child *trieNode) bool) {
	for _, key := range n.keys {
		c, _ := n.children.Get(key)
		if !fn(key.set, c) {
			return
		}
	}
}
