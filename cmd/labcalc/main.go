// Command labcalc is a laboratory calculation helper with a lab history.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/labcalc/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Command failures were already reported through the output
	// formatter; flag and usage errors were not.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", cli.ErrCodeGeneric, err)
		os.Exit(cli.ExitCommandError)
	}
	if exitErr.Err == nil {
		fmt.Fprintln(os.Stderr, exitErr.Message)
	}
	os.Exit(exitErr.Code)
}
