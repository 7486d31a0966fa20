package index

import "fmt"

// CorruptError reports a persisted index that could not be read or parsed.
// The store recovers from it by starting with an empty index; it is only
// ever logged.
type CorruptError struct {
	Path    string
	Message string
	Cause   error
}

func (e *CorruptError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("index corrupt (%s): %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("index corrupt (%s): %s", e.Path, e.Message)
}

func (e *CorruptError) Unwrap() error {
	return e.Cause
}

// PersistError reports a failed write of the index document. The in-memory
// index is left as it was before the failed mutation.
type PersistError struct {
	Path    string
	Message string
	Cause   error
}

func (e *PersistError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("index persist (%s): %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("index persist (%s): %s", e.Path, e.Message)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}
