package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/chronolog/internal/compiler"
)

// RuntimeError represents an error detected during a Reason call.
//
// Runtime errors include:
//   - Pass ceiling exceeded: the fixpoint did not quiesce within the ceiling
//   - Dispatch failure: a timestep failed even on the sequential re-run
//
// Configuration errors never reach this type. They are rejected by
// AddRule/AddFact as compiler.ValidationError values.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected Reason call.
	RunID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePassCeiling indicates the fixpoint exceeded its pass ceiling.
	ErrCodePassCeiling RuntimeErrorCode = "PASS_CEILING_EXCEEDED"

	// ErrCodeDispatchFailed indicates a rule evaluation failed sequentially.
	ErrCodeDispatchFailed RuntimeErrorCode = "DISPATCH_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPassCeilingError returns true if the error is a pass ceiling error.
// Uses errors.As to handle wrapped errors.
func IsPassCeilingError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodePassCeiling
	}
	return false
}

// IsDispatchError returns true if the error is a dispatch failure.
func IsDispatchError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDispatchFailed
	}
	return false
}

// IsConfigError returns true if the error rejects a rule or fact.
func IsConfigError(err error) bool {
	return compiler.IsValidationError(err)
}

// NewPassCeilingError creates a RuntimeError for an exceeded pass ceiling.
func NewPassCeilingError(runID string, passes, ceiling int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePassCeiling,
		Message: fmt.Sprintf("fixpoint did not quiesce within %d passes", ceiling),
		RunID:   runID,
		Details: map[string]string{
			"passes":  strconv.Itoa(passes),
			"ceiling": strconv.Itoa(ceiling),
		},
	}
}

// NewDispatchError creates a RuntimeError for a failed sequential evaluation.
func NewDispatchError(runID, rule string, t int, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDispatchFailed,
		Message: fmt.Sprintf("rule %s failed at t=%d: %v", rule, t, cause),
		RunID:   runID,
		Details: map[string]string{
			"rule":     rule,
			"timestep": strconv.Itoa(t),
		},
	}
}
