package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/linkgraph/internal/engine"
	"github.com/roach88/linkgraph/internal/harness"
	"github.com/roach88/linkgraph/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario against a fresh cache and print every step and
notification it produced, followed by any failed expectations.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (missing scenario or schema, malformed step, etc.)

Examples:
  linkgraph run ./scenarios/diamond_cascade.yaml
  linkgraph run ./scenarios/diamond_cascade.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())

	scenario, result, err := executeScenario(opts.RootOptions, path, logger)
	if err != nil {
		return err
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if formatter.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_SCENARIO_FAILED",
				Message: fmt.Sprintf("scenario %s failed", scenario.Name),
				Details: result.Errors,
			}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		writeTrace(cmd.OutOrStdout(), scenario, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// executeScenario loads a scenario, folds in the config and runs it with
// logger attached to the cache. Load and execution failures are command
// errors; failed expectations are reported in the result.
func executeScenario(opts *RootOptions, path string, logger *slog.Logger) (*harness.Scenario, *harness.Result, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("scenario file not found: %s", path))
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	cacheOpts := opts.Config.apply(scenario)
	cacheOpts = append(cacheOpts, engine.WithLogger(logger))

	logger.Debug("running scenario",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"assertions", len(scenario.Assertions),
	)

	result, err := harness.Run(scenario, cacheOpts...)
	if err != nil {
		return scenario, nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to run scenario %s", scenario.Name), err)
	}

	logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return scenario, result, nil
}

// writeTrace prints one line per trace event, then the verdict.
func writeTrace(w io.Writer, scenario *harness.Scenario, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
	for _, event := range result.Trace {
		switch event.Type {
		case harness.EventNotification:
			direct := "indirect"
			if event.Direct {
				direct = "direct"
			}
			fmt.Fprintf(w, "  [%d] notify %s <- %s (%s, %s #%d) %s\n",
				event.Step, event.Subscription, event.Key, direct, event.Flow, event.Seq, valueString(event.Value))
		default:
			line := fmt.Sprintf("  [%d] %s", event.Step, event.Op)
			if event.Key != "" {
				line += " " + event.Key
			}
			if len(event.Removed) > 0 {
				line += " removed=" + strings.Join(event.Removed, ",")
			}
			if event.Error != "" {
				line += " error=" + event.Error
			}
			fmt.Fprintln(w, line)
		}
	}

	if result.Pass {
		fmt.Fprintf(w, "✓ %s passed\n", scenario.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s failed\n", scenario.Name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func valueString(v ir.Value) string {
	if v == nil {
		v = ir.Null{}
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
