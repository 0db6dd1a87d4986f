// Command linkgraph runs cache scenarios and validates entity schemas.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/linkgraph/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
