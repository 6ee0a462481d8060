// Command qopt rewrites query plans with optimizer passes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/qopt/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qopt:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
