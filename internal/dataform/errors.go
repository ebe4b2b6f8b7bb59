package dataform

import "fmt"

// ExtractionError reports a non-recoverable upstream API failure. There is
// no retry layer: transient failures surface through this type as well.
type ExtractionError struct {
	// Op is the failing operation ("list_invocations" or "query_actions").
	Op string

	// Resource is the resource path the operation targeted.
	Resource string

	// StatusCode is the HTTP status returned by the API, 0 when the
	// request never produced a response.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dataform: %s %s: status %d: %v", e.Op, e.Resource, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dataform: %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
