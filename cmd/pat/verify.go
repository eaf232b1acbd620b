package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/core"
)

func runVerifyCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ok, errors, err := c.VerifyChain()
	if err != nil {
		fmt.Fprintf(stderr, "pat verify: %v\n", err)
		return 1
	}
	if ok {
		fmt.Fprintln(stdout, "chain OK")
		return 0
	}
	fmt.Fprintln(stdout, "chain INVALID")
	for _, e := range errors {
		fmt.Fprintf(stdout, "  %s\n", e)
	}
	return 1
}
