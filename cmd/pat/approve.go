package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/core"
)

func runApproveCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventID := fs.String("event-id", "", "event_id of the receipt to approve")
	approverID := fs.String("approver", "", "approver_id signing the approval")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *eventID == "" || *approverID == "" {
		fmt.Fprintln(stderr, "pat approve: -event-id and -approver are required")
		return 2
	}

	r, err := c.Approve(*eventID, *approverID)
	if err != nil {
		fmt.Fprintf(stderr, "pat approve: %v\n", err)
		return 1
	}
	return printReceipt(stdout, r)
}
