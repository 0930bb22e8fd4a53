package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// events converts domain.Transitions into looplab/fsm EventDesc format.
// Each event is named after its destination status and lists every source
// status allowed to reach it (e.g. "active" is reachable from "pending",
// "setting_up" and "suspended").
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	grouped := make(map[domain.AdminStatus][]string)
	order := make([]domain.AdminStatus, 0)

	for _, t := range domain.Transitions {
		if _, exists := grouped[t.Dst]; !exists {
			order = append(order, t.Dst)
		}
		grouped[t.Dst] = append(grouped[t.Dst], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, dst := range order {
		out = append(out, loopfsm.EventDesc{
			Name: string(dst),
			Src:  grouped[dst],
			Dst:  string(dst),
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Validate call, initialized with
// the admin's current status, since looplab/fsm tracks state internally.
type Validator struct{}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Validate reports whether an admin may move from one status to another.
// It returns a domain.InvalidTransitionError for anything outside the table,
// including unknown statuses and same-status requests.
func (v *Validator) Validate(ctx context.Context, from, to domain.AdminStatus) error {
	if from == to || !from.Valid() || !to.Valid() {
		return &domain.InvalidTransitionError{From: from, To: to}
	}

	machine := loopfsm.NewFSM(string(from), events, nil)

	if err := machine.Event(ctx, string(to)); err != nil {
		var unknownEvent loopfsm.UnknownEventError
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &unknownEvent) || errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return &domain.InvalidTransitionError{From: from, To: to}
		}
		return err
	}

	return nil
}
