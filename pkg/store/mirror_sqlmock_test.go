package store_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/pat/pkg/store"
)

// TestUpsertIssuesExpectedStatement exercises the mirror against a
// mocked driver to pin down the exact upsert statement shape, without
// opening a real SQLite database.
func TestUpsertIssuesExpectedStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := store.FromDB(db)

	mock.ExpectExec("INSERT INTO receipts").
		WithArgs("e1", "2026-01-01T00:00:00Z", "NOTIFY", "PERMITTED", 0, 0, "sha256:1", "sha256:0", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = m.Upsert(context.Background(), sampleReceipt("e1", "PERMITTED"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestGetByEventIDPropagatesDriverError confirms a raw driver failure
// surfaces as an IoError rather than being swallowed.
func TestGetByEventIDPropagatesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := store.FromDB(db)

	mock.ExpectQuery("SELECT receipt_json FROM receipts").
		WithArgs("e1").
		WillReturnError(assert.AnError)

	_, _, err = m.GetByEventID(context.Background(), "e1")
	require.Error(t, err)
}
