package domain

import "fmt"

// ActionKind is the closed set of action behaviors the engine knows how to
// dispatch. Unrecognized triggers parse to ActionUnknown instead of failing,
// so a definition written for a newer engine does not brick in-flight loans.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionFirstDisbursement
	ActionSecondDisbursement
)

// Action trigger names as they appear in process definition documents.
const (
	TriggerFirstDisbursement  = "DISBURSEMENT_1"
	TriggerSecondDisbursement = "DISBURSEMENT_2"
)

// ParseActionKind maps a definition trigger name to an ActionKind.
func ParseActionKind(trigger string) ActionKind {
	switch trigger {
	case TriggerFirstDisbursement:
		return ActionFirstDisbursement
	case TriggerSecondDisbursement:
		return ActionSecondDisbursement
	default:
		return ActionUnknown
	}
}

// Action is a named side-effecting step attached to a transition.
type Action struct {
	Trigger string
}

// Transition maps an inbound event type to a destination state, with the
// actions to run before the state change commits.
type Transition struct {
	On      string
	To      string
	Actions []Action
}

// State is one node in the process graph.
type State struct {
	ID          string
	Transitions []Transition
}

// Transition returns the first transition triggered by the given event type,
// in definition order. First match wins when a state declares the same
// trigger twice; definition authors are responsible for disambiguation.
func (s State) Transition(eventType string) (Transition, bool) {
	for _, t := range s.Transitions {
		if t.On == eventType {
			return t, true
		}
	}
	return Transition{}, false
}

// Definition is a named, versioned process graph. It is built once at load
// time, validated, and shared read-only across all concurrent engine calls.
type Definition struct {
	Name    string
	Version int
	Initial string
	States  []State
}

// State looks up a state by identifier.
func (d *Definition) State(id string) (State, bool) {
	for _, s := range d.States {
		if s.ID == id {
			return s, true
		}
	}
	return State{}, false
}

// Validate checks structural integrity: identifiers present, the initial
// state declared, no duplicate state ids, and every transition destination
// declared. Loaders must call this so definition faults surface at startup
// rather than mid-workflow.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("process definition has no name")
	}
	if len(d.States) == 0 {
		return fmt.Errorf("process definition %q declares no states", d.Name)
	}

	declared := make(map[string]bool, len(d.States))
	for _, s := range d.States {
		if s.ID == "" {
			return fmt.Errorf("process definition %q contains a state with no id", d.Name)
		}
		if declared[s.ID] {
			return fmt.Errorf("state %q declared twice", s.ID)
		}
		declared[s.ID] = true
	}

	if d.Initial == "" {
		return fmt.Errorf("process definition %q has no initial state", d.Name)
	}
	if !declared[d.Initial] {
		return fmt.Errorf("initial state %q is not declared", d.Initial)
	}

	for _, s := range d.States {
		for _, t := range s.Transitions {
			if t.On == "" {
				return fmt.Errorf("state %q has a transition with no trigger event", s.ID)
			}
			if !declared[t.To] {
				return fmt.Errorf("transition %q from state %q targets undeclared state %q", t.On, s.ID, t.To)
			}
		}
	}

	return nil
}
