// Package normalize maps raw Dataform invocation actions into flat
// assertion records ready for the warehouse.
package normalize

import (
	"time"
)

// State represents the terminal (or current) state of an invocation action.
type State string

const (
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateRunning   State = "RUNNING"
	StateCancelled State = "CANCELLED"
	StateSkipped   State = "SKIPPED"
	StateDisabled  State = "DISABLED"
	StateUnknown   State = "UNKNOWN"
)

// Failing reports whether the state counts as a failure for reporting.
func (s State) Failing() bool {
	return s == StateFailed
}

// AssertionRecord is one row of the assertion_data table: a single
// assertion action's outcome within a single workflow invocation.
type AssertionRecord struct {
	// StartTime and EndTime bound the action's execution.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// InvocationName is the fully qualified parent invocation resource name.
	InvocationName string `json:"invocation_name"`

	// ActionName is the assertion's target name within the invocation.
	ActionName string `json:"action_name"`

	// Database and Schema locate the data the assertion checked.
	Database string `json:"database"`
	Schema   string `json:"schema"`

	// State is the action's reported state.
	State State `json:"state"`

	// FailureReason is non-empty exactly when State is failing.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Duration returns the action's execution time.
func (r *AssertionRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
