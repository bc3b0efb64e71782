// Package store persists finished optimization runs.
package store

// Store persists run records. Implementations must be safe for concurrent use.
//
// Load and Delete return an error matching ErrNotFound when no record exists.
type Store interface {
	// Save writes the record, replacing any record with the same ID.
	Save(record *RunRecord) error

	// Load returns the record with the given ID.
	Load(id string) (*RunRecord, error)

	// List returns summaries of every stored record, newest first.
	List() ([]RunInfo, error)

	// Delete removes the record with the given ID.
	Delete(id string) error
}

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing run record.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "run not found: " + e.ID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
