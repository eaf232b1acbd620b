package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/core"
)

func runListCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	receipts, err := c.ReadAll()
	if err != nil {
		fmt.Fprintf(stderr, "pat list: %v\n", err)
		return 1
	}
	return printReceipt(stdout, receipts)
}

func runFindCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventID := fs.String("event-id", "", "event_id to find the latest receipt for")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *eventID == "" {
		fmt.Fprintln(stderr, "pat find: -event-id is required")
		return 2
	}

	r, ok, err := c.FindLatestByEventID(*eventID)
	if err != nil {
		fmt.Fprintf(stderr, "pat find: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(stderr, "pat find: no receipt for event_id %q\n", *eventID)
		return 1
	}
	return printReceipt(stdout, r)
}
