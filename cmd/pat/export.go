package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/kilnworks/pat/pkg/archive"
	"github.com/kilnworks/pat/pkg/artifacts"
	"github.com/kilnworks/pat/pkg/config"
	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/core"
)

// runExportCmd batches receipts into a content-addressed archive with
// a Merkle-rooted manifest. With -event-id it archives just the
// latest receipt for that event; otherwise it archives the whole
// ledger. The destination store is picked from cfg: an S3 bucket when
// ARCHIVE_S3_BUCKET is set, a local directory otherwise.
func runExportCmd(c *core.Core, cfg config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventID := fs.String("event-id", "", "archive only the latest receipt for this event_id")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var receipts []contracts.Receipt
	if *eventID != "" {
		r, ok, err := c.FindLatestByEventID(*eventID)
		if err != nil {
			fmt.Fprintf(stderr, "pat export: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintf(stderr, "pat export: no receipt for event_id %q\n", *eventID)
			return 1
		}
		receipts = []contracts.Receipt{r}
	} else {
		all, err := c.ReadAll()
		if err != nil {
			fmt.Fprintf(stderr, "pat export: %v\n", err)
			return 1
		}
		receipts = all
	}

	ctx := context.Background()
	store, err := openArchiveStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "pat export: %v\n", err)
		return 1
	}

	exporter := archive.NewExporter(store, nil, nil)
	manifest, manifestHash, err := exporter.ExportBatch(ctx, receipts)
	if err != nil {
		fmt.Fprintf(stderr, "pat export: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "manifest_hash: %s\n", manifestHash)
	return printReceipt(stdout, manifest)
}

func openArchiveStore(ctx context.Context, cfg config.Config) (artifacts.Store, error) {
	if cfg.ArchiveS3Bucket != "" {
		return artifacts.NewS3Store(ctx, artifacts.S3StoreConfig{
			Bucket:   cfg.ArchiveS3Bucket,
			Region:   cfg.ArchiveS3Region,
			Endpoint: cfg.ArchiveS3Endpoint,
			Prefix:   cfg.ArchiveS3Prefix,
		})
	}
	return artifacts.NewFileStore(cfg.ArchiveDir)
}
