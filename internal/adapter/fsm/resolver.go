package fsm

import (
	"context"
	"errors"
	"fmt"

	loopfsm "github.com/looplab/fsm"

	"github.com/gitdigital/loanflow/internal/domain"
)

// Compile-time check: Resolver implements domain.TransitionResolver.
var _ domain.TransitionResolver = (*Resolver)(nil)

// Resolver implements domain.TransitionResolver using looplab/fsm, compiled
// once from a process definition. It creates a short-lived FSM instance per
// Resolve call, initialized with the loan's current state. This is necessary
// because looplab/fsm is stateful (it tracks the current state internally).
type Resolver struct {
	def    *domain.Definition
	events []loopfsm.EventDesc
	states map[string]bool
}

// New compiles a validated process definition into a resolver. Beyond
// Definition.Validate, construction exercises every declared transition
// through the state machine, so a definition the FSM cannot represent is
// rejected at startup rather than mid-workflow.
func New(def *domain.Definition) (*Resolver, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid process definition: %w", err)
	}

	states := make(map[string]bool, len(def.States))
	for _, s := range def.States {
		states[s.ID] = true
	}

	r := &Resolver{
		def:    def,
		events: buildEvents(def),
		states: states,
	}

	if err := r.verify(); err != nil {
		return nil, err
	}

	return r, nil
}

// buildEvents converts the definition's transitions into looplab/fsm
// EventDesc format. It consolidates transitions with the same event and
// destination into a single EventDesc with multiple source states, and
// applies the first-match rule: when a state declares the same trigger
// twice, only the first declaration is compiled.
func buildEvents(def *domain.Definition) []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, s := range def.States {
		seen := make(map[string]bool, len(s.Transitions))
		for _, t := range s.Transitions {
			if seen[t.On] {
				continue
			}
			seen[t.On] = true

			k := key{event: t.On, dst: t.To}
			if _, exists := grouped[k]; !exists {
				order = append(order, k)
			}
			grouped[k] = append(grouped[k], s.ID)
		}
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// verify fires every declared transition once and checks the machine lands
// on the declared destination.
func (r *Resolver) verify() error {
	ctx := context.Background()
	for _, s := range r.def.States {
		for _, t := range s.Transitions {
			declared, _ := s.Transition(t.On)

			resolved, err := r.Resolve(ctx, s.ID, t.On)
			if err != nil {
				return fmt.Errorf("transition %q from state %q: %w", t.On, s.ID, err)
			}
			if resolved.To != declared.To {
				return fmt.Errorf("transition %q from state %q resolves to %q, definition declares %q", t.On, s.ID, resolved.To, declared.To)
			}
		}
	}
	return nil
}

// Resolve returns the transition for (current, eventType), or a
// NoTransitionError when the state declares none for that event, or an
// InvalidStateError when the state is not part of the definition.
func (r *Resolver) Resolve(ctx context.Context, current, eventType string) (domain.Transition, error) {
	if !r.states[current] {
		return domain.Transition{}, &domain.InvalidStateError{State: current}
	}

	state, _ := r.def.State(current)
	transition, declared := state.Transition(eventType)

	// looplab reports any fired event with src == dst as NoTransitionError,
	// so declared self-loops bypass the machine. The transition is still
	// real: its actions run and its audit entry is written.
	if declared && transition.To == current {
		return transition, nil
	}

	machine := loopfsm.NewFSM(current, r.events, nil)

	if err := machine.Event(ctx, eventType); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return domain.Transition{}, &domain.NoTransitionError{State: current, Event: eventType}
		}
		return domain.Transition{}, err
	}

	if !declared {
		// The machine fired but the definition has no matching entry; the
		// compiled events and the definition have drifted.
		return domain.Transition{}, fmt.Errorf("state %q resolved event %q with no declared transition", current, eventType)
	}
	if transition.To != machine.Current() {
		return domain.Transition{}, fmt.Errorf("state %q event %q: machine landed on %q, definition declares %q", current, eventType, machine.Current(), transition.To)
	}

	return transition, nil
}
