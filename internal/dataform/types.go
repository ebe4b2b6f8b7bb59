package dataform

import "time"

// Target identifies the database object an action acted on.
type Target struct {
	// Database is the project or catalog holding the target.
	Database string `json:"database"`

	// Schema is the dataset or schema holding the target.
	Schema string `json:"schema"`

	// Name is the target's name. Assertion targets carry "assertion"
	// in their name by convention.
	Name string `json:"name"`
}

// Interval bounds an action's execution.
type Interval struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// WorkflowInvocation is one execution run of a workflow definition.
type WorkflowInvocation struct {
	// Name is the fully qualified resource name
	// (projects/{p}/locations/{l}/repositories/{r}/workflowInvocations/{id}).
	Name string `json:"name"`

	// State is the invocation-level state reported by the API.
	State string `json:"state"`

	// InvocationTiming bounds the whole invocation.
	InvocationTiming Interval `json:"invocationTiming"`
}

// WorkflowInvocationAction is a single step within an invocation.
type WorkflowInvocationAction struct {
	// Target is the database object the action ran against.
	Target Target `json:"target"`

	// State is the action's reported state (SUCCEEDED, FAILED, ...).
	State string `json:"state"`

	// FailureReason explains a FAILED state. Empty otherwise.
	FailureReason string `json:"failureReason,omitempty"`

	// InvocationTiming bounds this action's execution.
	InvocationTiming Interval `json:"invocationTiming"`
}

// RawAction pairs an action with its parent invocation. One raw pair
// yields exactly one normalized record downstream.
type RawAction struct {
	Invocation *WorkflowInvocation
	Action     *WorkflowInvocationAction
}

// listInvocationsResponse is one page of the invocation list endpoint.
type listInvocationsResponse struct {
	WorkflowInvocations []*WorkflowInvocation `json:"workflowInvocations"`
	NextPageToken       string                `json:"nextPageToken"`
}

// queryActionsResponse is one page of the {invocation}:query endpoint.
type queryActionsResponse struct {
	WorkflowInvocationActions []*WorkflowInvocationAction `json:"workflowInvocationActions"`
	NextPageToken             string                      `json:"nextPageToken"`
}
