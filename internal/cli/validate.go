package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chronolog/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                         `json:"valid"`
	Rules    int                          `json:"rules"`
	Facts    int                          `json:"facts"`
	Errors   []compiler.ValidationError   `json:"errors,omitempty"`
	Warnings []compiler.DependencyWarning `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <program>",
		Short: "Validate a program without reasoning",
		Long: `Validate the rules and facts of a program without reasoning it.

Reports every syntax, safety and interval error with its entry position,
then analyzes the predicate dependency graph. Recursion through negation
is reported as a warning; with --strict warnings fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat dependency warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, programPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	compiled, compileErrs, err := loadProgram(programPath)
	if err != nil {
		return formatter.Fail(err)
	}

	result := ValidationResult{Valid: true}
	for _, e := range compileErrs {
		result.Errors = append(result.Errors, toValidationErrors(e)...)
	}

	if compiled != nil {
		result.Rules = len(compiled.Rules)
		result.Facts = len(compiled.Facts)
		formatter.VerboseLog("Compiled %d rule(s) and %d fact(s) from %s", result.Rules, result.Facts, programPath)

		if result.Rules == 0 && result.Facts == 0 {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "program",
				Message: "no rules or facts found in program",
				Code:    ErrCodeGeneric,
			})
		}

		for _, w := range compiler.AnalyzeDependencies(compiled.Rules) {
			formatter.VerboseLog("Dependency %s: %s", w.Level, w.Message)
			if w.Level == "warning" {
				result.Warnings = append(result.Warnings, w)
			}
		}
	}

	if len(result.Errors) > 0 || (opts.Strict && len(result.Warnings) > 0) {
		result.Valid = false
		return outputValidationErrors(formatter, result)
	}

	return outputValidateSuccess(formatter, result)
}

// toValidationErrors flattens a compile error into validation errors.
func toValidationErrors(err error) []compiler.ValidationError {
	var many compiler.ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var one compiler.ValidationError
	if errors.As(err, &one) {
		return []compiler.ValidationError{one}
	}
	return []compiler.ValidationError{{Field: "program", Message: err.Error(), Code: ErrCodeGeneric}}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s (rules: %v)\n", warn.Message, warn.Rules)
	}
	fmt.Fprintf(w, "✓ Program valid (%d rules, %d facts)\n", result.Rules, result.Facts)
	return nil
}

// outputValidationErrors outputs validation errors and warnings.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failures := len(result.Errors)
	if failures == 0 {
		failures = len(result.Warnings)
	}

	if formatter.Format == "json" {
		cliErr := &CLIError{Code: "E_STRICT", Message: "dependency warnings in strict mode"}
		if len(result.Errors) > 0 {
			cliErr = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
		}
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error:  cliErr,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", failures))
	}

	// Text format
	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)

	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(w, "entry %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s (rules: %v)\n", warn.Message, warn.Rules)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", failures))
}
