package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/core"
	"github.com/kilnworks/pat/pkg/receipt"
)

func runNewCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prompt := fs.String("prompt", "", "the prompt presented to the model")
	modelOutput := fs.String("model-output", "", "the model's raw output, e.g. \"confidence: 0.92\"")
	actionType := fs.String("action", "", "proposed action type, e.g. NOTIFY or DISPATCH_POLICE")
	actionTarget := fs.String("target", "", "proposed action target")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *actionType == "" {
		fmt.Fprintln(stderr, "pat new: -action is required")
		return 2
	}

	r, err := c.BuildNew(receipt.NewReceiptInput{
		Prompt:         *prompt,
		ModelOutputRaw: *modelOutput,
		ActionType:     *actionType,
		ActionTarget:   *actionTarget,
	})
	if err != nil {
		fmt.Fprintf(stderr, "pat new: %v\n", err)
		return 1
	}
	return printReceipt(stdout, r)
}

func printReceipt(w io.Writer, v interface{}) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return 0
}
