package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/linkgraph/internal/ir"
	"github.com/roach88/linkgraph/internal/store"
)

// DumpResult is the final state of a scenario run.
type DumpResult struct {
	Scenario string      `json:"scenario"`
	Digest   string      `json:"digest"`
	Stats    store.Stats `json:"stats"`
	Records  ir.Object   `json:"records"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <scenario.yaml>",
		Short: "Run a scenario and print the normalized store",
		Long: `Run a scenario and print every normalized record it left behind, keyed
by cache key, with the store digest and counts. Assertions are evaluated
but do not affect the exit code.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDump(opts *RootOptions, path string, cmd *cobra.Command) error {
	scenario, result, err := executeScenario(opts, path, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	records := make(ir.Object, len(result.Snapshot))
	for key, rec := range result.Snapshot {
		records[key] = rec
	}
	dump := DumpResult{
		Scenario: scenario.Name,
		Digest:   result.Digest,
		Stats:    result.Stats,
		Records:  records,
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if formatter.IsJSON() {
		return formatter.Success(dump)
	}

	body, err := ir.MarshalCanonical(records)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode records", err)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "Scenario: %s\n", dump.Scenario)
	fmt.Fprintf(w, "Digest:   %s\n", dump.Digest)
	fmt.Fprintf(w, "Records:  %d  Edges: %d  Garbage: %d\n", dump.Stats.Records, dump.Stats.Edges, dump.Stats.Garbage)
	fmt.Fprintln(w, string(body))
	return nil
}
