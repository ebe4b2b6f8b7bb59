package normalize

import (
	"fmt"

	"github.com/good-yellow-bee/assguard/internal/dataform"
)

// fallbackFailureReason keeps the non-empty-iff-failed invariant when the
// API reports a FAILED action without a failure reason.
const fallbackFailureReason = "assertion failed without a reported reason"

// NormalizationError reports a raw pair missing a required field.
type NormalizationError struct {
	// Field is the missing or invalid field.
	Field string

	// Invocation is the parent invocation name, when known.
	Invocation string
}

func (e *NormalizationError) Error() string {
	if e.Invocation != "" {
		return fmt.Sprintf("normalize: invocation %s: missing required field %q", e.Invocation, e.Field)
	}
	return fmt.Sprintf("normalize: missing required field %q", e.Field)
}

// ParseState maps an API state string onto a known State.
func ParseState(raw string) State {
	switch State(raw) {
	case StateSucceeded, StateFailed, StateRunning, StateCancelled, StateSkipped, StateDisabled:
		return State(raw)
	default:
		return StateUnknown
	}
}

// Record maps one raw (invocation, action) pair to one AssertionRecord.
// The mapping is pure and 1:1: it never drops, merges, or mutates input.
// FailureReason is non-empty exactly when the action state is failing.
func Record(pair dataform.RawAction) (*AssertionRecord, error) {
	if pair.Invocation == nil || pair.Invocation.Name == "" {
		return nil, &NormalizationError{Field: "invocation.name"}
	}
	if pair.Action == nil {
		return nil, &NormalizationError{Field: "action", Invocation: pair.Invocation.Name}
	}
	if pair.Action.Target.Name == "" {
		return nil, &NormalizationError{Field: "action.target.name", Invocation: pair.Invocation.Name}
	}
	if pair.Action.State == "" {
		return nil, &NormalizationError{Field: "action.state", Invocation: pair.Invocation.Name}
	}

	state := ParseState(pair.Action.State)

	failureReason := ""
	if state.Failing() {
		failureReason = pair.Action.FailureReason
		if failureReason == "" {
			failureReason = fallbackFailureReason
		}
	}

	return &AssertionRecord{
		StartTime:      pair.Action.InvocationTiming.StartTime,
		EndTime:        pair.Action.InvocationTiming.EndTime,
		InvocationName: pair.Invocation.Name,
		ActionName:     pair.Action.Target.Name,
		Database:       pair.Action.Target.Database,
		Schema:         pair.Action.Target.Schema,
		State:          state,
		FailureReason:  failureReason,
	}, nil
}

// Records maps a batch of raw pairs, preserving input order. N pairs in,
// N records out; the first invalid pair aborts the batch.
func Records(pairs []dataform.RawAction) ([]*AssertionRecord, error) {
	records := make([]*AssertionRecord, 0, len(pairs))
	for _, pair := range pairs {
		record, err := Record(pair)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
