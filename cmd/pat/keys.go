package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/core"
)

func runKeysCmd(c *core.Core, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "pat keys: expected a subcommand (new|show|demo)")
		return 2
	}

	switch args[0] {
	case "new":
		fs := flag.NewFlagSet("keys new", flag.ContinueOnError)
		fs.SetOutput(stderr)
		approverID := fs.String("approver", "", "approver_id to generate a key pair for")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *approverID == "" {
			fmt.Fprintln(stderr, "pat keys new: -approver is required")
			return 2
		}
		if err := c.NewKeypair(*approverID); err != nil {
			fmt.Fprintf(stderr, "pat keys new: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "created key pair for %s\n", *approverID)
		return 0

	case "show":
		fs := flag.NewFlagSet("keys show", flag.ContinueOnError)
		fs.SetOutput(stderr)
		approverID := fs.String("approver", "", "approver_id to show the public key of")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *approverID == "" {
			fmt.Fprintln(stderr, "pat keys show: -approver is required")
			return 2
		}
		pub, ok, err := c.GetPublicKeyB64(*approverID)
		if err != nil {
			fmt.Fprintf(stderr, "pat keys show: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintf(stderr, "pat keys show: unknown approver %q\n", *approverID)
			return 1
		}
		fmt.Fprintln(stdout, pub)
		return 0

	case "demo":
		approverID, err := c.EnsureDemoApprover()
		if err != nil {
			fmt.Fprintf(stderr, "pat keys demo: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, approverID)
		return 0

	default:
		fmt.Fprintf(stderr, "pat keys: unknown subcommand %q\n", args[0])
		return 2
	}
}
