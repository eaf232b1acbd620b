// Package store maintains an optional, queryable SQLite mirror of the
// ledger's receipts. The JSONL ledger file is the sole source of
// truth; this mirror exists only to let a caller query by event_id,
// action type, or decision without scanning the whole file, and must
// be rebuilt (via Rebuild) if it ever drifts from the ledger.
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/errs"
)

// Mirror is a SQLite-backed read index over receipts.
type Mirror struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "store.Open", err)
	}
	m := &Mirror{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Close closes the underlying database handle.
func (m *Mirror) Close() error { return m.db.Close() }

// FromDB wraps an already-open database handle as a Mirror without
// running migrations, for tests that drive the handle with a mock
// driver and assert on the exact SQL the mirror issues.
func FromDB(db *sql.DB) *Mirror { return &Mirror{db: db} }

func (m *Mirror) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	event_id       TEXT PRIMARY KEY,
	ts_utc         TEXT NOT NULL,
	action_type    TEXT NOT NULL,
	decision       TEXT NOT NULL,
	approval_req   INTEGER NOT NULL,
	approval_done  INTEGER NOT NULL,
	this_hash      TEXT NOT NULL,
	prev_hash      TEXT NOT NULL,
	receipt_json   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_action_type ON receipts(action_type);
CREATE INDEX IF NOT EXISTS idx_receipts_decision ON receipts(decision);
`
	if _, err := m.db.Exec(schema); err != nil {
		return errs.New(errs.KindIoError, "store.migrate", err)
	}
	return nil
}

// Upsert inserts or replaces the mirrored row for r.
func (m *Mirror) Upsert(ctx context.Context, r contracts.Receipt) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return errs.New(errs.KindCanonError, "store.Upsert", err)
	}

	const stmt = `
INSERT INTO receipts (event_id, ts_utc, action_type, decision, approval_req, approval_done, this_hash, prev_hash, receipt_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(event_id) DO UPDATE SET
	ts_utc=excluded.ts_utc, action_type=excluded.action_type, decision=excluded.decision,
	approval_req=excluded.approval_req, approval_done=excluded.approval_done,
	this_hash=excluded.this_hash, prev_hash=excluded.prev_hash, receipt_json=excluded.receipt_json
`
	_, err = m.db.ExecContext(ctx, stmt,
		r.EventID, r.TSUTC, r.ProposedAction.Type, r.Decision.Result,
		boolToInt(r.Approval.Required), boolToInt(r.Approval.Approved),
		r.Integrity.ThisHash, r.Integrity.PrevHash, string(raw))
	if err != nil {
		return errs.New(errs.KindIoError, "store.Upsert", err)
	}
	return nil
}

// Rebuild truncates the mirror and upserts every receipt in all, in
// order. Rows are keyed by event_id, so a later receipt for an event
// replaces an earlier one and the mirror ends up holding the latest
// receipt per event. Use this to resynchronize after detecting drift.
func (m *Mirror) Rebuild(ctx context.Context, all []contracts.Receipt) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM receipts"); err != nil {
		return errs.New(errs.KindIoError, "store.Rebuild", err)
	}
	for _, r := range all {
		if err := m.Upsert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// GetByEventID returns the mirrored receipt for eventID.
func (m *Mirror) GetByEventID(ctx context.Context, eventID string) (contracts.Receipt, bool, error) {
	row := m.db.QueryRowContext(ctx, "SELECT receipt_json FROM receipts WHERE event_id = ?", eventID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return contracts.Receipt{}, false, nil
		}
		return contracts.Receipt{}, false, errs.New(errs.KindIoError, "store.GetByEventID", err)
	}
	var r contracts.Receipt
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return contracts.Receipt{}, false, errs.New(errs.KindLedgerCorruption, "store.GetByEventID", err)
	}
	return r, true, nil
}

// ListByDecision returns every mirrored receipt whose decision matches.
func (m *Mirror) ListByDecision(ctx context.Context, decision string) ([]contracts.Receipt, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT receipt_json FROM receipts WHERE decision = ? ORDER BY ts_utc ASC", decision)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "store.ListByDecision", err)
	}
	defer rows.Close()

	var out []contracts.Receipt
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.New(errs.KindIoError, "store.ListByDecision", err)
		}
		var r contracts.Receipt
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, errs.New(errs.KindLedgerCorruption, "store.ListByDecision", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.KindIoError, "store.ListByDecision", err)
	}
	return out, nil
}

// Count returns the number of mirrored rows: one per distinct event_id,
// which is fewer than the ledger's Length() whenever an event has more
// than one receipt (for example after an approval transition).
func (m *Mirror) Count(ctx context.Context) (int, error) {
	row := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM receipts")
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, errs.New(errs.KindIoError, "store.Count", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
