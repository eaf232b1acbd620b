package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/core"
)

func runReplayCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventID := fs.String("event-id", "", "event_id of the receipt to replay")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *eventID == "" {
		fmt.Fprintln(stderr, "pat replay: -event-id is required")
		return 2
	}

	r, ok, err := c.FindLatestByEventID(*eventID)
	if err != nil {
		fmt.Fprintf(stderr, "pat replay: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(stderr, "pat replay: no receipt for event_id %q\n", *eventID)
		return 1
	}

	cmp, err := c.ReplayAndCompare(r)
	if err != nil {
		fmt.Fprintf(stderr, "pat replay: %v\n", err)
		return 1
	}
	printReceipt(stdout, cmp)
	if cmp.Match {
		return 0
	}
	return 1
}
