package apply

import (
	"errors"
	"fmt"

	"github.com/tsera-dev/tsera/internal/plan"
)

// ErrorCode categorizes step execution failures.
type ErrorCode string

const (
	// ErrCodeMissingTarget indicates a step with no usable path.
	ErrCodeMissingTarget ErrorCode = "MISSING_TARGET"

	// ErrCodeMissingContent indicates a create/update step with no bytes
	// to write.
	ErrCodeMissingContent ErrorCode = "MISSING_CONTENT"

	// ErrCodeUnknownStepKind indicates a step kind the applier does not
	// recognize.
	ErrCodeUnknownStepKind ErrorCode = "UNKNOWN_STEP_KIND"
)

// StepError is a fatal defect in a plan step. It aborts the remaining
// steps of the apply call; plain I/O errors propagate unchanged instead.
type StepError struct {
	Code    ErrorCode
	Step    plan.StepKind
	NodeID  string
	Message string
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s (step=%s, node=%s)", e.Code, e.Message, e.Step, e.NodeID)
}

// IsStepError reports whether err is a plan step defect, as opposed to
// an I/O failure. Uses errors.As to handle wrapped errors.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
