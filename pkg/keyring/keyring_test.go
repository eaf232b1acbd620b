package keyring_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/pat/pkg/errs"
	"github.com/kilnworks/pat/pkg/keyring"
)

func newTestKeyring(t *testing.T) *keyring.Keyring {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.json")
	fixedClock := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	k := keyring.New(path).WithClock(fixedClock)
	require.NoError(t, k.EnsureExists())
	return k
}

func TestEnsureDemoApproverCreatesOnEmptyKeyring(t *testing.T) {
	k := newTestKeyring(t)
	id, err := k.EnsureDemoApprover()
	require.NoError(t, err)
	assert.Equal(t, "j.wells", id)

	pub, ok, err := k.GetPublicKeyB64(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, pub)
}

func TestEnsureDemoApproverReturnsExistingSmallestID(t *testing.T) {
	k := newTestKeyring(t)
	require.NoError(t, k.NewKeypair("z.somebody"))
	require.NoError(t, k.NewKeypair("a.first"))

	id, err := k.EnsureDemoApprover()
	require.NoError(t, err)
	assert.Equal(t, "a.first", id)
}

func TestNewKeypairFailsOnDuplicate(t *testing.T) {
	k := newTestKeyring(t)
	require.NoError(t, k.NewKeypair("approver-1"))
	err := k.NewKeypair("approver-1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindKeyExists))
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	k := newTestKeyring(t)
	require.NoError(t, k.NewKeypair("approver-1"))

	sig, err := k.Sign("approver-1", "hello world")
	require.NoError(t, err)
	assert.Contains(t, sig, "ed25519:")
	assert.True(t, k.Verify("approver-1", "hello world", sig))
}

func TestVerifyFailsOnTamperedMessage(t *testing.T) {
	k := newTestKeyring(t)
	require.NoError(t, k.NewKeypair("approver-1"))

	sig, err := k.Sign("approver-1", "original message")
	require.NoError(t, err)
	assert.False(t, k.Verify("approver-1", "tampered message", sig))
}

func TestVerifyFailsOnUnknownApprover(t *testing.T) {
	k := newTestKeyring(t)
	assert.False(t, k.Verify("ghost", "message", "ed25519:AAAA"))
}

func TestVerifyFailsOnMalformedSignature(t *testing.T) {
	k := newTestKeyring(t)
	require.NoError(t, k.NewKeypair("approver-1"))
	assert.False(t, k.Verify("approver-1", "msg", "not-a-signature"))
	assert.False(t, k.Verify("approver-1", "msg", "ed25519:not-base64!!"))
}

func TestSignFailsOnUnknownApprover(t *testing.T) {
	k := newTestKeyring(t)
	_, err := k.Sign("ghost", "msg")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUnknownApprover))
}
