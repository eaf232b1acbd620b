// Command pat is the CLI front door to the policy/approval/traceability
// core: it builds receipts for proposed actions, records approvals,
// verifies the ledger's hash chain, replays policy for determinism
// checking, manages the demo approver keyring, and exports archived
// batches.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kilnworks/pat/pkg/config"
	"github.com/kilnworks/pat/pkg/core"
	"github.com/kilnworks/pat/pkg/observability"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches args[1] to a subcommand and returns the process exit
// code. Kept separate from main so tests can drive it without os.Exit.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "pat: load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTELEnabled
	obsCfg.OTLPEndpoint = cfg.OTELEndpoint
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		fmt.Fprintf(stderr, "pat: init observability: %v\n", err)
		return 1
	}
	defer obs.Shutdown(ctx)

	c, err := core.New(core.Config{
		LogPath:       cfg.LogPath,
		KeyringPath:   cfg.KeyringPath,
		Policy:        cfg.Policy,
		Observability: obs,
	})
	if err != nil {
		fmt.Fprintf(stderr, "pat: init core: %v\n", err)
		return 1
	}

	switch args[1] {
	case "new":
		return runNewCmd(c, args[2:], stdout, stderr)
	case "approve":
		return runApproveCmd(c, args[2:], stdout, stderr)
	case "list":
		return runListCmd(c, args[2:], stdout, stderr)
	case "find":
		return runFindCmd(c, args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(c, args[2:], stdout, stderr)
	case "replay":
		return runReplayCmd(c, args[2:], stdout, stderr)
	case "keys":
		return runKeysCmd(c, args[2:], stdout, stderr)
	case "tamper":
		return runTamperCmd(c, args[2:], stdout, stderr)
	case "reset":
		return runResetCmd(c, args[2:], stdout, stderr)
	case "export":
		return runExportCmd(c, cfg, args[2:], stdout, stderr)
	case "mirror":
		return runMirrorCmd(c, cfg, args[2:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "pat: unknown subcommand %q\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `usage: pat <subcommand> [flags]

subcommands:
  new       build and append the initial receipt for a proposed action
  approve   record an approver's authorization transition
  list      print every receipt in the ledger
  find      print the latest receipt for an event_id
  verify    verify the ledger's hash chain
  replay    re-run policy for a receipt and compare against what was recorded
  keys      manage the approver keyring (new|show|demo)
  tamper    corrupt the last ledger line (fixture, not a production operation)
  reset     truncate the ledger
  export    batch receipts into a content-addressed archive with a Merkle manifest
  mirror    manage the SQLite read-index mirror (rebuild|find|list|count)`)
}
