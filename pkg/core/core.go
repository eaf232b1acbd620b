// Package core wires Canon, Keyring, Policy, Ledger, Receipt Builder and
// Replay into a single Core value: the explicit owner of LedgerLock,
// KeyringLock and the two on-disk paths, constructed once at process
// startup, exposing every operation the host glue (CLI, HTTP handler,
// whatever presents receipts) is allowed to call.
package core

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/errs"
	"github.com/kilnworks/pat/pkg/keyring"
	"github.com/kilnworks/pat/pkg/ledger"
	"github.com/kilnworks/pat/pkg/observability"
	"github.com/kilnworks/pat/pkg/policy"
	"github.com/kilnworks/pat/pkg/receipt"
	"github.com/kilnworks/pat/pkg/replay"
)

// Core owns the two on-disk resources (ledger, keyring) and the pure
// policy snapshot in force for this process.
type Core struct {
	Ledger  *ledger.Ledger
	Keyring *keyring.Keyring
	Builder *receipt.Builder
	Policy  contracts.PolicyRuleSet
	obs     *observability.Provider
}

// Config selects the on-disk paths and the active policy ruleset.
type Config struct {
	LogPath     string
	KeyringPath string
	Policy      contracts.PolicyRuleSet
	// Observability is optional; a nil value disables tracing and
	// metrics entirely rather than forcing callers to construct a
	// no-op provider.
	Observability *observability.Provider
}

// New constructs a Core and ensures both backing files exist.
func New(cfg Config) (*Core, error) {
	l := ledger.New(cfg.LogPath)
	if err := l.EnsureExists(); err != nil {
		return nil, err
	}
	kr := keyring.New(cfg.KeyringPath)
	if err := kr.EnsureExists(); err != nil {
		return nil, err
	}
	return &Core{
		Ledger:  l,
		Keyring: kr,
		Builder: receipt.NewBuilder(l, kr, nil),
		Policy:  cfg.Policy,
		obs:     cfg.Observability,
	}, nil
}

// track is a no-op when the core was built without an observability
// provider, so every call site below stays identical either way.
func (c *Core) track(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if c.obs == nil {
		return ctx, func(error) {}
	}
	return c.obs.TrackOperation(ctx, name, attrs...)
}

// BuildNew assembles and appends the initial receipt for a new event.
func (c *Core) BuildNew(in receipt.NewReceiptInput) (contracts.Receipt, error) {
	_, end := c.track(context.Background(), "receipt.build_new", attribute.String("pat.action_type", in.ActionType))
	var err error
	defer func() { end(err) }()

	in.Policy = c.Policy
	r, err := c.Builder.BuildNew(in)
	if err != nil {
		return contracts.Receipt{}, err
	}
	if err = c.Ledger.Append(r); err != nil {
		return contracts.Receipt{}, err
	}
	return r, nil
}

// Approve runs the approval transition for the latest receipt of
// eventID and appends the resulting receipt.
func (c *Core) Approve(eventID, approverID string) (contracts.Receipt, error) {
	_, end := c.track(context.Background(), "receipt.build_approval_transition", attribute.String("pat.event_id", eventID))
	var err error
	defer func() { end(err) }()

	latest, ok, err := c.Ledger.FindLatestByEventID(eventID)
	if err != nil {
		return contracts.Receipt{}, err
	}
	if !ok {
		err = errs.New(errs.KindNotFound, "core.Approve", nil)
		return contracts.Receipt{}, err
	}
	transitioned, err := c.Builder.BuildApprovalTransition(latest, approverID, c.Policy)
	if err != nil {
		return contracts.Receipt{}, err
	}
	if err = c.Ledger.Append(transitioned); err != nil {
		return contracts.Receipt{}, err
	}
	return transitioned, nil
}

// ReadAll returns every receipt in ledger order.
func (c *Core) ReadAll() ([]contracts.Receipt, error) { return c.Ledger.ReadAll() }

// FindLatestByEventID returns the most recent receipt for eventID.
func (c *Core) FindLatestByEventID(eventID string) (contracts.Receipt, bool, error) {
	return c.Ledger.FindLatestByEventID(eventID)
}

// VerifyChain verifies the entire ledger's hash chain.
func (c *Core) VerifyChain() (bool, []string, error) {
	_, end := c.track(context.Background(), "ledger.verify_chain")
	var err error
	defer func() { end(err) }()

	receipts, err := c.Ledger.ReadAll()
	if err != nil {
		return false, nil, err
	}
	ok, errList := ledger.VerifyChain(receipts)
	return ok, errList, nil
}

// ReplayAndCompare re-runs policy for r under the active ruleset.
func (c *Core) ReplayAndCompare(r contracts.Receipt) (replay.Comparison, error) {
	_, end := c.track(context.Background(), "replay.replay_and_compare", attribute.String("pat.event_id", r.EventID))
	var err error
	defer func() { end(err) }()

	cmp, err := replay.ReplayAndCompare(r, c.Policy)
	return cmp, err
}

// NewKeypair generates a fresh approver key pair.
func (c *Core) NewKeypair(approverID string) error { return c.Keyring.NewKeypair(approverID) }

// EnsureDemoApprover returns (or creates) the demo approver id.
func (c *Core) EnsureDemoApprover() (string, error) { return c.Keyring.EnsureDemoApprover() }

// GetPublicKeyB64 returns an approver's public key.
func (c *Core) GetPublicKeyB64(approverID string) (string, bool, error) {
	return c.Keyring.GetPublicKeyB64(approverID)
}

// VerifySignature reports whether signature is a valid signature by
// approverID over message.
func (c *Core) VerifySignature(approverID, message, signature string) bool {
	return c.Keyring.Verify(approverID, message, signature)
}

// TamperLast corrupts the last ledger line; a fixture for integrity
// demos, not a production operation.
func (c *Core) TamperLast(fieldPath string) (bool, string, error) { return c.Ledger.TamperLast(fieldPath) }

// Reset truncates the ledger to empty.
func (c *Core) Reset() error { return c.Ledger.Reset() }

// ExtractConfidence exposes the pure confidence-parsing helper for
// callers that want to preview it before building a receipt.
func ExtractConfidence(raw string) (float64, bool) { return policy.ExtractConfidence(raw) }
