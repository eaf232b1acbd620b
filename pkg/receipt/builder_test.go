package receipt_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/keyring"
	"github.com/kilnworks/pat/pkg/ledger"
	"github.com/kilnworks/pat/pkg/receipt"
)

func testPolicy() contracts.PolicyRuleSet {
	return contracts.PolicyRuleSet{
		PolicyID:            "TEST_001",
		Version:             "1.0.0",
		HighStakesActions:   []string{"DISPATCH_POLICE"},
		ConfidenceThreshold: 0.8,
	}
}

func newBuilder(t *testing.T) (*receipt.Builder, *ledger.Ledger, *keyring.Keyring) {
	t.Helper()
	l := ledger.New(filepath.Join(t.TempDir(), "log.jsonl"))
	require.NoError(t, l.EnsureExists())
	kr := keyring.New(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, kr.EnsureExists())

	fixedClock := func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	b := receipt.NewBuilder(l, kr, fixedClock)
	return b, l, kr
}

func TestBuildNewLowStakesPermitted(t *testing.T) {
	b, _, _ := newBuilder(t)
	r, err := b.BuildNew(receipt.NewReceiptInput{
		Prompt:         "do a thing",
		ModelOutputRaw: "confidence: 0.95",
		ActionType:     "notify",
		ActionTarget:   "channel-1",
		Policy:         testPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, "NOTIFY", r.ProposedAction.Type)
	assert.Equal(t, "PERMITTED", r.Decision.Result)
	assert.Equal(t, "sha256:0000000000000000000000000000000000000000000000000000000000000000", r.Integrity.PrevHash)
	assert.NotEmpty(t, r.Integrity.CanonicalHash)
	assert.NotEmpty(t, r.Integrity.ThisHash)
	require.NotNil(t, r.ModelOutput.ParsedConfidence)
	assert.InDelta(t, 0.95, *r.ModelOutput.ParsedConfidence, 1e-9)
}

func TestBuildNewHighStakesBlockedWithoutApproval(t *testing.T) {
	b, _, _ := newBuilder(t)
	r, err := b.BuildNew(receipt.NewReceiptInput{
		ModelOutputRaw: "confidence: 0.99",
		ActionType:     "DISPATCH_POLICE",
		Policy:         testPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, "BLOCKED", r.Decision.Result)
	assert.True(t, r.Approval.Required)
	assert.False(t, r.Approval.Approved)
}

func TestBuildApprovalTransitionSignsAndPermits(t *testing.T) {
	b, l, kr := newBuilder(t)
	require.NoError(t, kr.NewKeypair("approver-1"))

	r, err := b.BuildNew(receipt.NewReceiptInput{
		ModelOutputRaw: "confidence: 0.9",
		ActionType:     "DISPATCH_POLICE",
		Policy:         testPolicy(),
	})
	require.NoError(t, err)
	require.NoError(t, l.Append(r))

	transitioned, err := b.BuildApprovalTransition(r, "approver-1", testPolicy())
	require.NoError(t, err)

	assert.True(t, transitioned.Approval.Approved)
	require.NotNil(t, transitioned.Approval.Signature)
	assert.Contains(t, *transitioned.Approval.Signature, "ed25519:")
	assert.Equal(t, "PERMITTED", transitioned.Decision.Result)
	assert.Equal(t, r.Integrity.ThisHash, transitioned.Integrity.PrevHash)

	pub, ok, err := kr.GetPublicKeyB64("approver-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, kr.Verify("approver-1", transitioned.Integrity.CanonicalHash, *transitioned.Approval.Signature))
	_ = pub
}

func TestBuildApprovalTransitionFailsForUnknownApprover(t *testing.T) {
	b, l, _ := newBuilder(t)
	r, err := b.BuildNew(receipt.NewReceiptInput{
		ModelOutputRaw: "confidence: 0.9",
		ActionType:     "DISPATCH_POLICE",
		Policy:         testPolicy(),
	})
	require.NoError(t, err)
	require.NoError(t, l.Append(r))

	_, err = b.BuildApprovalTransition(r, "ghost", testPolicy())
	require.Error(t, err)
}
