package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilnworks/pat/pkg/errs"
)

func TestErrorMessage(t *testing.T) {
	e := errs.New(errs.KindNotFound, "ledger.Find", errors.New("boom"))
	assert.Equal(t, "ledger.Find: NotFound: boom", e.Error())
}

func TestErrorMessageNoCause(t *testing.T) {
	e := errs.New(errs.KindKeyExists, "keyring.NewKeypair", nil)
	assert.Equal(t, "keyring.NewKeypair: KeyExists", e.Error())
}

func TestIsMatchesKind(t *testing.T) {
	e := errs.New(errs.KindUnknownApprover, "receipt.Approve", errors.New("nope"))
	assert.True(t, errs.Is(e, errs.KindUnknownApprover))
	assert.False(t, errs.Is(e, errs.KindKeyExists))
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, errs.Is(errors.New("plain"), errs.KindIoError))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := errs.New(errs.KindCanonError, "canon.Hash", cause)
	assert.ErrorIs(t, e, cause)
}
