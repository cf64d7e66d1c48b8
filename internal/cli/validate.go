package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results for a set of scenario files.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Files  int          `json:"files"`
	Errors []*LoadError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files without running them.

Checks the YAML against the scenario format (unknown fields are errors),
compiles the CUE schema if there is one, and checks the initial state
against it.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - A file could not be found`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result := ValidationResult{Files: len(paths)}
	missing := false
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		_, errs := loadScenario(path)
		for _, e := range errs {
			if e.Code == ErrCodeNotFound {
				missing = true
			}
		}
		result.Errors = append(result.Errors, errs...)
	}
	result.Valid = len(result.Errors) == 0

	if result.Valid {
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ %d scenario file(s) valid\n", result.Files)
		return nil
	}

	if formatter.Format == "json" {
		first := result.Errors[0]
		if err := formatter.Failure(first.Code, first.Message, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(formatter.Writer, "%s line %d\n", e.File, e.Line)
			} else {
				fmt.Fprintln(formatter.Writer, e.File)
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
		}
	}

	code := ExitFailure
	if missing {
		code = ExitCommandError
	}
	return NewExitError(code, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
