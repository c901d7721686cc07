package harness

import (
	"fmt"

	"github.com/roach88/chronolog/internal/engine"
)

// WorkerRun is the outcome of reasoning a scenario at one worker count.
type WorkerRun struct {
	Workers int    `json:"workers"`
	Digest  string `json:"digest"`
	Passes  int    `json:"passes"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds and every worker count agreed.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Digest is the interpretation digest shared by all runs.
	Digest string `json:"digest"`

	// Runs has one entry per worker count, in scenario order.
	Runs []WorkerRun `json:"runs"`

	// Interpretation is the result of the first run. Assertions and golden
	// output are evaluated against it.
	Interpretation *engine.Interpretation `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Runs:   []WorkerRun{},
	}
}

// AddError appends an error message and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
