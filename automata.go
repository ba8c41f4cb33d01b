package nbadet

// Automata builds small well-known NBAs.
type Automata struct {
}

// MakeEmpty returns an NBA with a single initial state and no edges.
func (*Automata) MakeEmpty(numProps int) *Buchi {
	a := NewBuchi(numProps)
	s := a.CreateState()
	a.SetInitial(s, true)
	a.FinishState()
	return a
}

// MakeUniversal returns the one-state NBA accepting every word.
func (*Automata) MakeUniversal(numProps int) *Buchi {
	a := NewBuchi(numProps)
	s := a.CreateState()
	a.SetInitial(s, true)
	a.MustAddEdge(s, s, True, true)
	a.FinishState()
	return a
}

// MakeInfinitelyOften accepts the words in which proposition ap holds infinitely often.
func (*Automata) MakeInfinitelyOften(numProps, ap int) *Buchi {
	a := NewBuchi(numProps)
	s := a.CreateState()
	a.SetInitial(s, true)
	a.MustAddEdge(s, s, Literal(ap, true), true)
	a.MustAddEdge(s, s, Literal(ap, false), false)
	a.FinishState()
	return a
}

// MakeEventuallyAlways accepts the words in which proposition ap eventually holds
// forever. The automaton is the classic nondeterministic guess of the switch point.
func (*Automata) MakeEventuallyAlways(numProps, ap int) *Buchi {
	a := NewBuchi(numProps)
	wait := a.CreateState()
	hold := a.CreateState()
	a.SetInitial(wait, true)
	a.MustAddEdge(wait, wait, True, false)
	a.MustAddEdge(wait, hold, Literal(ap, true), false)
	a.MustAddEdge(hold, hold, Literal(ap, true), true)
	a.FinishState()
	return a
}
