package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// ErrIllegalTransition matches every TransitionError.
var ErrIllegalTransition = errors.New("illegal status transition")

// TransitionError describes an action attempted from the wrong status.
type TransitionError struct {
	Action   Action
	Current  Status
	Expected Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Document is in status %s, expected %s", e.Current, e.Expected)
}

func (e *TransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// lifecycleEvents is the complete edge set: DRAFT -submit-> SUBMITTED -approve-> APPROVED.
// APPROVED has no outgoing edge.
var lifecycleEvents = fsm.Events{
	{Name: string(ActionSubmit), Src: []string{string(StatusDraft)}, Dst: string(StatusSubmitted)},
	{Name: string(ActionApprove), Src: []string{string(StatusSubmitted)}, Dst: string(StatusApproved)},
}

// Precondition returns the only status from which action may fire.
func Precondition(action Action) (Status, bool) {
	for _, e := range lifecycleEvents {
		if e.Name == string(action) {
			return Status(e.Src[0]), true
		}
	}
	return "", false
}

// Next applies action to current and returns the resulting status. Any edge
// outside the lifecycle yields a *TransitionError.
func Next(current Status, action Action) (Status, error) {
	expected, ok := Precondition(action)
	if !ok {
		return current, fmt.Errorf("unknown action %q", action)
	}
	machine := fsm.NewFSM(string(current), lifecycleEvents, fsm.Callbacks{})
	if err := machine.Event(context.Background(), string(action)); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return current, &TransitionError{Action: action, Current: current, Expected: expected}
		}
		return current, fmt.Errorf("%s from %s: %w", action, current, err)
	}
	return Status(machine.Current()), nil
}
