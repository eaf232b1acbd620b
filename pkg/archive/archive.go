// Package archive exports a batch of ledger receipts to a
// content-addressed Store (local filesystem or S3), alongside a
// manifest carrying a Merkle root over the batch and a per-receipt
// inclusion proof. This is a supplemental export path: the JSONL
// ledger file remains the sole source of truth: an archive lets an
// auditor hold an offline, independently-verifiable copy of a range of
// receipts without trusting the archiving process itself.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilnworks/pat/pkg/artifacts"
	"github.com/kilnworks/pat/pkg/canonicalize"
	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/errs"
	"github.com/kilnworks/pat/pkg/merkle"
)

// Manifest describes one archived batch.
type Manifest struct {
	BatchID     string           `json:"batch_id"`
	CreatedUTC  string           `json:"created_utc"`
	Count       int              `json:"count"`
	MerkleRoot  string           `json:"merkle_root"`
	ReceiptRefs []ReceiptRef     `json:"receipt_refs"`
}

// ReceiptRef names the content-addressed blob an archived receipt was
// stored under, plus its Merkle inclusion proof.
type ReceiptRef struct {
	EventID string                `json:"event_id"`
	Hash    string                `json:"hash"`
	Proof   merkle.InclusionProof `json:"proof"`
}

// Exporter writes receipt batches to a backing Store.
type Exporter struct {
	store     artifacts.Store
	nowUTC    func() string
	newBatchID func() string
}

// NewExporter returns an Exporter backed by store. nowUTC and
// newBatchID default to real time/uuid generation when nil; tests may
// override them for determinism.
func NewExporter(store artifacts.Store, nowUTC func() string, newBatchID func() string) *Exporter {
	if newBatchID == nil {
		newBatchID = func() string { return uuid.NewString() }
	}
	if nowUTC == nil {
		nowUTC = func() string { return time.Now().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z") }
	}
	return &Exporter{store: store, nowUTC: nowUTC, newBatchID: newBatchID}
}

// ExportBatch canonicalizes and stores each receipt individually under
// its content hash, builds a Merkle tree over the batch keyed by
// event_id, and stores the resulting manifest under its own content
// hash. It returns the manifest and the hash it was stored under.
func (e *Exporter) ExportBatch(ctx context.Context, receipts []contracts.Receipt) (Manifest, string, error) {
	if len(receipts) == 0 {
		return Manifest{}, "", errs.New(errs.KindInvalidInput, "archive.ExportBatch", fmt.Errorf("empty batch"))
	}

	leaves := make([]merkle.Leaf, len(receipts))
	hashes := make([]string, len(receipts))
	raws := make([][]byte, len(receipts))
	for i, r := range receipts {
		leaves[i] = merkle.Leaf{Path: r.EventID, Value: r}

		raw, err := canonicalize.JCS(r)
		if err != nil {
			return Manifest{}, "", errs.New(errs.KindCanonError, "archive.ExportBatch", err)
		}
		hash, err := e.store.Store(ctx, raw)
		if err != nil {
			return Manifest{}, "", errs.New(errs.KindIoError, "archive.ExportBatch", err)
		}
		hashes[i] = hash
		raws[i] = raw
	}

	tree, err := merkle.Build(leaves)
	if err != nil {
		return Manifest{}, "", errs.New(errs.KindCanonError, "archive.ExportBatch", err)
	}

	refs := make([]ReceiptRef, len(receipts))
	for i, r := range receipts {
		proof, ok := tree.InclusionProof(indexOfLeaf(tree, r.EventID, raws[i]))
		if !ok {
			return Manifest{}, "", errs.New(errs.KindCanonError, "archive.ExportBatch", fmt.Errorf("missing inclusion proof for %s", r.EventID))
		}
		refs[i] = ReceiptRef{EventID: r.EventID, Hash: hashes[i], Proof: proof}
	}

	manifest := Manifest{
		BatchID:     e.newBatchID(),
		CreatedUTC:  e.nowUTC(),
		Count:       len(receipts),
		MerkleRoot:  tree.Root,
		ReceiptRefs: refs,
	}

	manifestBytes, err := canonicalize.JCS(manifest)
	if err != nil {
		return Manifest{}, "", errs.New(errs.KindCanonError, "archive.ExportBatch", err)
	}
	manifestHash, err := e.store.Store(ctx, manifestBytes)
	if err != nil {
		return Manifest{}, "", errs.New(errs.KindIoError, "archive.ExportBatch", err)
	}

	return manifest, manifestHash, nil
}

// indexOfLeaf finds the leaf built from this exact receipt: several
// receipts can share an event_id (an approval transition reuses it), so
// the leaf's canonical bytes are matched as well as its path.
func indexOfLeaf(t *merkle.Tree, path string, canonical []byte) int {
	for i, l := range t.Leaves {
		if l.Path == path && bytes.HasSuffix(l.LeafBytes, canonical) {
			return i
		}
	}
	return -1
}
