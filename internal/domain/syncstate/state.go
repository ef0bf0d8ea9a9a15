// Package syncstate models the lifecycle of one synchronization batch.
package syncstate

import "fmt"

// State is a batch's position in the store-then-index protocol.
type State string

// Batch states.
const (
	Collected         State = "collected"
	Submitted         State = "submitted"
	Rejected          State = "rejected"
	PartiallyAccepted State = "partially_accepted"
	Accepted          State = "accepted"
	Indexing          State = "indexing"
	Indexed           State = "indexed"
	IndexFailed       State = "index_failed"
)

var transitions = map[State][]State{
	Collected:         {Submitted},
	Submitted:         {Rejected, PartiallyAccepted, Accepted},
	PartiallyAccepted: {Indexing},
	Accepted:          {Indexing},
	Indexing:          {Indexed, IndexFailed},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == Rejected || s == Indexed || s == IndexFailed
}

// Next validates a transition and returns the target state.
func (s State) Next(to State) (State, error) {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return to, nil
		}
	}
	return s, fmt.Errorf("illegal sync transition %s -> %s", s, to)
}

// Machine tracks one batch and records every state it passes through.
type Machine struct {
	current State
	history []State
}

// NewMachine starts a batch in Collected.
func NewMachine() *Machine {
	return &Machine{current: Collected, history: []State{Collected}}
}

// Current returns the present state.
func (m *Machine) Current() State { return m.current }

// History returns the visited states in order.
func (m *Machine) History() []State {
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// Advance moves to the given state or returns an error for an illegal edge.
func (m *Machine) Advance(to State) error {
	next, err := m.current.Next(to)
	if err != nil {
		return err
	}
	m.current = next
	m.history = append(m.history, next)
	return nil
}
