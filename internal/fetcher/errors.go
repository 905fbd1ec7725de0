package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInFlight is returned when the extension is already being
	// acquired. Retrying after the current acquisition ends is safe.
	ErrAlreadyInFlight = errors.New("extension is already in flight")

	// ErrUnknownPackage is returned for IDs that were never acquired.
	ErrUnknownPackage = errors.New("unknown extension")

	// ErrEmptyID is returned for an empty extension ID.
	ErrEmptyID = errors.New("extension id must not be empty")

	// ErrAutoUpdateRunning is returned by StartAutoUpdate when the loop is already active.
	ErrAutoUpdateRunning = errors.New("auto-update is already running")
)

// StepError records which pipeline step failed for an extension. The
// collaborator's error is kept as the cause so errors.Is/As see through it.
type StepError struct {
	ID   string
	Step Status
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.ID, e.Err)
}

// Unwrap returns the collaborator error.
func (e *StepError) Unwrap() error { return e.Err }
