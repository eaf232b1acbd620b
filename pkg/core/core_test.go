package core_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/core"
	"github.com/kilnworks/pat/pkg/errs"
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

func newTestCore(t *testing.T) *core.Core {
	t.Helper()
	dir := t.TempDir()
	c, err := core.New(core.Config{
		LogPath:     filepath.Join(dir, "log.jsonl"),
		KeyringPath: filepath.Join(dir, "keys.json"),
		Policy:      testPolicy(),
	})
	require.NoError(t, err)
	return c
}

func TestFullLifecycleApprovedHighStakesAction(t *testing.T) {
	c := newTestCore(t)

	approver, err := c.EnsureDemoApprover()
	require.NoError(t, err)

	r, err := c.BuildNew(receipt.NewReceiptInput{
		ModelOutputRaw: "confidence: 0.93",
		ActionType:     "DISPATCH_POLICE",
		ActionTarget:   "precinct-9",
	})
	require.NoError(t, err)
	assert.Equal(t, "BLOCKED", r.Decision.Result)

	approved, err := c.Approve(r.EventID, approver)
	require.NoError(t, err)
	assert.Equal(t, "PERMITTED", approved.Decision.Result)
	assert.True(t, approved.Approval.Approved)

	ok, verifyErrs, err := c.VerifyChain()
	require.NoError(t, err)
	assert.True(t, ok, "verify errors: %v", verifyErrs)

	cmp, err := c.ReplayAndCompare(approved)
	require.NoError(t, err)
	assert.True(t, cmp.Match)
}

func TestApproveFailsForUnknownEventID(t *testing.T) {
	c := newTestCore(t)
	_, err := c.EnsureDemoApprover()
	require.NoError(t, err)

	_, err = c.Approve("does-not-exist", "j.wells")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestTamperThenVerifyFails(t *testing.T) {
	c := newTestCore(t)
	_, err := c.BuildNew(receipt.NewReceiptInput{
		ModelOutputRaw: "confidence: 0.9",
		ActionType:     "NOTIFY",
	})
	require.NoError(t, err)

	ok, detail, err := c.TamperLast("decision.reason")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, detail)

	chainOK, _, err := c.VerifyChain()
	require.NoError(t, err)
	assert.False(t, chainOK)
}

func TestResetEmptiesLedger(t *testing.T) {
	c := newTestCore(t)
	_, err := c.BuildNew(receipt.NewReceiptInput{ModelOutputRaw: "confidence: 0.9", ActionType: "NOTIFY"})
	require.NoError(t, err)

	require.NoError(t, c.Reset())

	all, err := c.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}
