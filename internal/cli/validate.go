package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/linkgraph/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Types  []string                 `json:"types,omitempty"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema.cue>",
		Short: "Validate an entity schema",
		Long: `Compile a CUE entity schema and check that every type can form keys
and every declared kind is supported.

Exit codes:
  0 - Schema is valid
  1 - Schema has errors
  2 - Command error (missing file, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	src, err := os.ReadFile(path)
	if err != nil {
		code := "E_READ"
		if errors.Is(err, fs.ErrNotExist) {
			code = "E_NOT_FOUND"
		}
		_ = formatter.Error(code, fmt.Sprintf("cannot read schema %s", path), err.Error())
		return WrapExitError(ExitCommandError, "failed to read schema", err)
	}

	formatter.VerboseLog("Compiling %s", path)
	s, err := schema.CompileString(string(src), path)
	if err != nil {
		return outputValidationErrors(formatter, schema.ValidationErrors{compileErrorToValidation(err)})
	}

	formatter.VerboseLog("Checking %d type(s)", len(s.Types))
	if errs := schema.Check(s); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	return outputValidateSuccess(formatter, s)
}

func compileErrorToValidation(err error) schema.ValidationError {
	var cErr *schema.CompileError
	if errors.As(err, &cErr) {
		line := 0
		if cErr.Pos.IsValid() {
			line = cErr.Pos.Line()
		}
		return schema.ValidationError{
			Field:   cErr.Field,
			Message: cErr.Message,
			Code:    schema.ErrCompile,
			Line:    line,
		}
	}
	return schema.ValidationError{Field: "schema", Message: err.Error(), Code: schema.ErrCompile}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, s *schema.Schema) error {
	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Types: s.TypeNames()})
	}

	fmt.Fprintf(formatter.Writer, "✓ Schema valid (%d types)\n", len(s.Types))
	for _, name := range s.TypeNames() {
		formatter.VerboseLog("  %s", name)
	}
	return nil
}

// outputValidationErrors outputs every validation error found.
func outputValidationErrors(formatter *OutputFormatter, errs schema.ValidationErrors) error {
	if formatter.IsJSON() {
		err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
