// metcheck checks, formats and serves Paradyn session configuration files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const (
	exitInvalid = 1 // invalid configuration or I/O failure
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Message != "" {
			fmt.Fprintf(stderr, "metcheck: %s\n", ee.Message)
		}
		return ee.Code
	}
	fmt.Fprintf(stderr, "metcheck: %v\n", err)
	if strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	return exitInvalid
}
