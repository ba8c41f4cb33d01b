package nbadet

import (
	"fmt"
	"strings"
)

// MaxPropositions is the largest number of atomic propositions supported. Valuations
// are packed into machine integers and index the per-symbol adjacency table.
const MaxPropositions = 30

// Valuation is a concrete assignment of the atomic propositions, bit i holds the
// value of proposition i.
type Valuation uint32

// Has reports whether proposition ap is true in v.
func (v Valuation) Has(ap int) bool {
	return v&(1<<uint(ap)) != 0
}

// NumValuations returns 2^numProps.
func NumValuations(numProps int) int {
	return 1 << uint(numProps)
}

// Label is a cube over the atomic propositions: a valuation matches if it agrees with
// Value on every bit set in Care. The zero Label matches every valuation.
type Label struct {
	Care  Valuation
	Value Valuation
}

// True matches every valuation.
var True = Label{}

// Literal returns the label of a single proposition, negated if positive is false.
func Literal(ap int, positive bool) Label {
	bit := Valuation(1) << uint(ap)
	if positive {
		return Label{Care: bit, Value: bit}
	}
	return Label{Care: bit}
}

// And conjoins two labels. The second result is false if they contradict each other.
func (l Label) And(o Label) (Label, bool) {
	common := l.Care & o.Care
	if l.Value&common != o.Value&common {
		return Label{}, false
	}
	return Label{Care: l.Care | o.Care, Value: (l.Value & l.Care) | (o.Value & o.Care)}, true
}

// Matches reports whether v satisfies l.
func (l Label) Matches(v Valuation) bool {
	return v&l.Care == l.Value&l.Care
}

func (l Label) String() string {
	if l.Care == 0 {
		return "t"
	}
	var parts []string
	for ap := 0; ap < MaxPropositions; ap++ {
		bit := Valuation(1) << uint(ap)
		if l.Care&bit == 0 {
			continue
		}
		if l.Value&bit != 0 {
			parts = append(parts, fmt.Sprintf("%d", ap))
		} else {
			parts = append(parts, fmt.Sprintf("!%d", ap))
		}
	}
	return strings.Join(parts, " & ")
}
