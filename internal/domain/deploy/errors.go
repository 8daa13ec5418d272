package deploy

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch indicates a transport or storage failure while downloading the
	// release artifact. Retryable with the same artifact.
	ErrFetch = errors.New("artifact fetch failed")

	// ErrExtract indicates a corrupt or incompatible artifact. Not retryable
	// without a new artifact.
	ErrExtract = errors.New("artifact extraction failed")

	// ErrConfigRender indicates missing or invalid template inputs while
	// rendering release configuration.
	ErrConfigRender = errors.New("configuration rendering failed")

	// ErrCutover indicates the atomic repoint of the live root failed.
	// The prior release stays live.
	ErrCutover = errors.New("cutover failed")

	// ErrLinkReconcile indicates the delete or link step of shared-resource
	// reconciliation failed.
	ErrLinkReconcile = errors.New("shared resource reconciliation failed")

	// ErrMigration indicates database setup, upgrade or cache flush failed.
	// The system stays in maintenance.
	ErrMigration = errors.New("migration failed")

	// ErrServiceReload indicates the runtime restart failed or the process
	// did not come back. A stale process may be serving traffic.
	ErrServiceReload = errors.New("service reload failed")
)

// StepError attributes a failure to a named pipeline step.
type StepError struct {
	// Step is the pipeline step name, e.g. "cutover".
	Step string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError wraps err with the step name, or returns nil when err is nil.
func NewStepError(step string, err error) error {
	if err == nil {
		return nil
	}

	return &StepError{Step: step, Err: err}
}
