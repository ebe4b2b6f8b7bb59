package warehouse

import "fmt"

// LoadError reports a failed append into the warehouse table. The driver
// does not distinguish per-row failures inside a batch, so the whole
// batch is reported as failed.
type LoadError struct {
	// Table is the destination table.
	Table string

	// Records is the size of the failed batch.
	Records int

	// Err is the underlying cause.
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("warehouse: load %d records into %s: %v", e.Records, e.Table, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ViewError reports a rejected view definition statement.
type ViewError struct {
	// View is the view being created or replaced.
	View string

	// Err is the underlying cause.
	Err error
}

func (e *ViewError) Error() string {
	return fmt.Sprintf("warehouse: create or replace view %s: %v", e.View, e.Err)
}

func (e *ViewError) Unwrap() error {
	return e.Err
}
