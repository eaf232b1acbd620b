package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/config"
	"github.com/kilnworks/pat/pkg/core"
	"github.com/kilnworks/pat/pkg/store"
)

// runMirrorCmd manages the SQLite read index mirror: rebuilding it
// from the ledger, and querying it by event_id or decision. The
// mirror is never authoritative — the ledger file is — so "rebuild"
// is always safe to rerun.
func runMirrorCmd(c *core.Core, cfg config.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "pat mirror: expected a subcommand (rebuild|find|list|count)")
		return 2
	}

	m, err := store.Open(cfg.MirrorDBPath)
	if err != nil {
		fmt.Fprintf(stderr, "pat mirror: %v\n", err)
		return 1
	}
	defer m.Close()

	ctx := context.Background()

	switch args[0] {
	case "rebuild":
		fs := flag.NewFlagSet("mirror rebuild", flag.ContinueOnError)
		fs.SetOutput(stderr)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		all, err := c.ReadAll()
		if err != nil {
			fmt.Fprintf(stderr, "pat mirror rebuild: %v\n", err)
			return 1
		}
		if err := m.Rebuild(ctx, all); err != nil {
			fmt.Fprintf(stderr, "pat mirror rebuild: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "rebuilt mirror with %d receipts\n", len(all))
		return 0

	case "find":
		fs := flag.NewFlagSet("mirror find", flag.ContinueOnError)
		fs.SetOutput(stderr)
		eventID := fs.String("event-id", "", "event_id to look up in the mirror")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *eventID == "" {
			fmt.Fprintln(stderr, "pat mirror find: -event-id is required")
			return 2
		}
		r, ok, err := m.GetByEventID(ctx, *eventID)
		if err != nil {
			fmt.Fprintf(stderr, "pat mirror find: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintf(stderr, "pat mirror find: no mirrored receipt for event_id %q\n", *eventID)
			return 1
		}
		return printReceipt(stdout, r)

	case "list":
		fs := flag.NewFlagSet("mirror list", flag.ContinueOnError)
		fs.SetOutput(stderr)
		decision := fs.String("decision", "", "decision to filter by, e.g. PERMITTED or BLOCKED")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *decision == "" {
			fmt.Fprintln(stderr, "pat mirror list: -decision is required")
			return 2
		}
		receipts, err := m.ListByDecision(ctx, *decision)
		if err != nil {
			fmt.Fprintf(stderr, "pat mirror list: %v\n", err)
			return 1
		}
		return printReceipt(stdout, receipts)

	case "count":
		fs := flag.NewFlagSet("mirror count", flag.ContinueOnError)
		fs.SetOutput(stderr)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		n, err := m.Count(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "pat mirror count: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, n)
		return 0

	default:
		fmt.Fprintf(stderr, "pat mirror: unknown subcommand %q\n", args[0])
		return 2
	}
}
