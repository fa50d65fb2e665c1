package foresttune

import "fmt"

//////
// Error taxonomy.
//
// All four error kinds are typed so callers can branch with errors.As. Every
// fatal error carries enough context (parameter name, iteration index, file
// path) to support manual inspection and resume.
//////

// ConfigurationError reports invalid caller input: a fixed/tuned name
// collision, an unknown dimension name, an empty tuning set, or non-finite
// bounds. Always raised before any evaluation occurs.
type ConfigurationError struct {
	// Name is the offending parameter name, when one applies.
	Name string

	// Reason describes what was wrong.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("foresttune: invalid configuration: %s", e.Reason)
	}

	return fmt.Sprintf("foresttune: invalid configuration: parameter %q: %s", e.Name, e.Reason)
}

// EvaluationError reports a failed external learner or measure call for one
// configuration. The loop treats it as fatal and preserves the last good
// checkpoint; a silent skip would corrupt the surrogate's view of the space.
type EvaluationError struct {
	// Iteration is the zero-based index the failed evaluation would have
	// occupied in the log.
	Iteration int

	// Config is the configuration whose evaluation failed.
	Config Configuration

	// Err is the underlying collaborator error.
	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("foresttune: evaluation %d failed: %v", e.Iteration, e.Err)
}

// Unwrap exposes the underlying collaborator error.
func (e *EvaluationError) Unwrap() error { return e.Err }

// SurrogateFitError reports that the surrogate could not be fitted even after
// the built-in retry with increased numerical stabilization.
type SurrogateFitError struct {
	// Observations is the size of the log the fit was attempted on.
	Observations int

	// Err is the underlying numerical failure.
	Err error
}

// Error implements the error interface.
func (e *SurrogateFitError) Error() string {
	return fmt.Sprintf("foresttune: surrogate fit failed on %d observations: %v", e.Observations, e.Err)
}

// Unwrap exposes the underlying numerical failure.
func (e *SurrogateFitError) Unwrap() error { return e.Err }

// CheckpointIOError reports that the persisted evaluation log could not be
// written, read, or removed. Fatal: the loop never proceeds with an
// unpersisted observation silently discarded.
type CheckpointIOError struct {
	// Path is the checkpoint file path.
	Path string

	// Op is the failing operation: "write", "read", or "remove".
	Op string

	// Err is the underlying I/O error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointIOError) Error() string {
	return fmt.Sprintf("foresttune: checkpoint %s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes the underlying I/O error.
func (e *CheckpointIOError) Unwrap() error { return e.Err }
