package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/core"
)

// runTamperCmd corrupts the last ledger line. It exists only as an
// integrity-demo fixture: a real deployment never calls this.
func runTamperCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tamper", flag.ContinueOnError)
	fs.SetOutput(stderr)
	field := fs.String("field", "decision.reason", "dotted field path to tamper with")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ok, detail, err := c.TamperLast(*field)
	if err != nil {
		fmt.Fprintf(stderr, "pat tamper: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(stdout, "nothing to tamper: ledger is empty")
		return 1
	}
	fmt.Fprintf(stdout, "tampered: %s\n", detail)
	return 0
}

func runResetCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := c.Reset(); err != nil {
		fmt.Fprintf(stderr, "pat reset: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "ledger reset")
	return 0
}
