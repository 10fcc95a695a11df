package contracts

import (
	"fmt"
	"time"
)

// ExecutionState is the state machine a TestExecution moves through.
// Valid transitions: Pending -> Running -> {Completed, Failed, TimedOut};
// Pending/Running -> Cancelled.
type ExecutionState string

const (
	ExecutionPending   ExecutionState = "PENDING"
	ExecutionRunning   ExecutionState = "RUNNING"
	ExecutionCompleted ExecutionState = "COMPLETED"
	ExecutionFailed    ExecutionState = "FAILED"
	ExecutionTimedOut  ExecutionState = "TIMED_OUT"
	ExecutionCancelled ExecutionState = "CANCELLED"
)

// validExecutionTransitions enumerates every allowed ExecutionState move.
var validExecutionTransitions = map[ExecutionState][]ExecutionState{
	ExecutionPending: {ExecutionRunning, ExecutionCancelled},
	ExecutionRunning: {ExecutionCompleted, ExecutionFailed, ExecutionTimedOut, ExecutionCancelled},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal
// ExecutionState transition.
func CanTransition(from, to ExecutionState) bool {
	for _, s := range validExecutionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether an ExecutionState has no outgoing transitions.
func (s ExecutionState) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionTimedOut || s == ExecutionCancelled
}

// TestExecution tracks one run of a TestScenario from submission to
// terminal state.
type TestExecution struct {
	ID         string         `json:"id"`
	ScenarioID string         `json:"scenario_id"`
	SessionID  string         `json:"session_id"`
	State      ExecutionState `json:"state"`

	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Attempt    int `json:"attempt"`
	MaxRetries int `json:"max_retries"`

	Error string `json:"error,omitempty"`
}

// Transition moves the execution to 'to', returning an error if the move
// is illegal. Stamps StartedAt/CompletedAt on the well-known edges.
func (e *TestExecution) Transition(to ExecutionState) error {
	if !CanTransition(e.State, to) {
		return &InvalidTransitionError{From: e.State, To: to}
	}
	if to == ExecutionRunning && e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if to.IsTerminal() {
		now := time.Now()
		e.CompletedAt = &now
	}
	e.State = to
	return nil
}

// InvalidTransitionError reports a rejected ExecutionState/Alert/Notification
// state transition.
type InvalidTransitionError struct {
	From, To fmt.Stringer
}

func (e *InvalidTransitionError) Error() string {
	return "invalid transition from " + e.From.String() + " to " + e.To.String()
}

func (s ExecutionState) String() string { return string(s) }
