// Package ledger is the append-only, hash-chained store of receipts: a
// line-oriented file of canonical-JSON records, one per line, guarded by
// a single mutex (LedgerLock) so that the read-last-hash/assemble/append
// sequence is atomic with respect to concurrent callers.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kilnworks/pat/pkg/canonicalize"
	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/errs"
)

// Ledger guards one on-disk JSONL file with LedgerLock.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// New returns a Ledger backed by the file at path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// EnsureExists creates an empty ledger file if absent.
func (l *Ledger) EnsureExists() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureExistsLocked()
}

func (l *Ledger) ensureExistsLocked() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errs.New(errs.KindIoError, "ledger.EnsureExists", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.New(errs.KindIoError, "ledger.EnsureExists", err)
	}
	return f.Close()
}

// ReadAll parses every non-empty line of the ledger as a Receipt, in
// file order. A malformed line fails the whole call with
// LedgerCorruption, naming the offending line number.
func (l *Ledger) ReadAll() ([]contracts.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAllLocked()
}

func (l *Ledger) readAllLocked() ([]contracts.Receipt, error) {
	if err := l.ensureExistsLocked(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "ledger.ReadAll", err)
	}
	defer f.Close()

	var out []contracts.Receipt
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r contracts.Receipt
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, errs.New(errs.KindLedgerCorruption, "ledger.ReadAll",
				fmt.Errorf("line %d: %w", lineNo, err))
		}
		out = append(out, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindIoError, "ledger.ReadAll", err)
	}
	return out, nil
}

// LastHash returns the integrity.this_hash of the most recent receipt,
// or the genesis zero-hash if the ledger is empty.
func (l *Ledger) LastHash() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHashLocked()
}

func (l *Ledger) lastHashLocked() (string, error) {
	receipts, err := l.readAllLocked()
	if err != nil {
		return "", err
	}
	if len(receipts) == 0 {
		return canonicalize.ZeroHash, nil
	}
	return receipts[len(receipts)-1].Integrity.ThisHash, nil
}

// Length returns the number of receipts currently in the ledger. It
// takes LedgerLock itself, so it cannot be called from inside
// WithLedgerLock; the receipt builder counts through LockedView.ReadAll
// instead.
func (l *Ledger) Length() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipts, err := l.readAllLocked()
	if err != nil {
		return 0, err
	}
	return len(receipts), nil
}

// Append serializes receipt canonically and appends it with a trailing
// newline under LedgerLock. The caller must already have populated
// integrity.prev_hash/canonical_hash/this_hash.
func (l *Ledger) Append(receipt contracts.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(receipt)
}

func (l *Ledger) appendLocked(receipt contracts.Receipt) error {
	if err := l.ensureExistsLocked(); err != nil {
		return err
	}
	line, err := canonicalize.JCSString(receipt)
	if err != nil {
		return errs.New(errs.KindCanonError, "ledger.Append", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.New(errs.KindIoError, "ledger.Append", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return errs.New(errs.KindIoError, "ledger.Append", err)
	}
	return f.Sync()
}

// WithLedgerLock runs fn while holding LedgerLock, exposing the
// snapshot-last-hash / build / append sequence the receipt builder needs
// to perform atomically so event_id and prev_hash never race against a
// concurrent Append.
func (l *Ledger) WithLedgerLock(fn func(snapshot LockedView) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(LockedView{l: l})
}

// LockedView exposes the subset of Ledger operations safe to call while
// already holding LedgerLock (re-entrant deadlock avoidance).
type LockedView struct{ l *Ledger }

func (v LockedView) ReadAll() ([]contracts.Receipt, error) { return v.l.readAllLocked() }
func (v LockedView) LastHash() (string, error)             { return v.l.lastHashLocked() }
func (v LockedView) Append(r contracts.Receipt) error       { return v.l.appendLocked(r) }

// FindLatestByEventID reverse-scans the ledger for the most recent
// receipt with the given event_id; returns (zero, false, nil) on miss.
func (l *Ledger) FindLatestByEventID(eventID string) (contracts.Receipt, bool, error) {
	receipts, err := l.ReadAll()
	if err != nil {
		return contracts.Receipt{}, false, err
	}
	for i := len(receipts) - 1; i >= 0; i-- {
		if receipts[i].EventID == eventID {
			return receipts[i], true, nil
		}
	}
	return contracts.Receipt{}, false, nil
}

// VerifyChain recomputes prev_hash/canonical_hash/this_hash for every
// receipt in order and compares against the stored values, collecting
// every discrepancy rather than stopping at the first one. It works on
// receipts already read, does no I/O and returns no error: a corrupt
// chain is reported only through the (false, messages) result, so
// verification always runs to completion.
func VerifyChain(receipts []contracts.Receipt) (bool, []string) {
	var errors []string
	prev := canonicalize.ZeroHash

	for idx, r := range receipts {
		if r.Integrity.PrevHash != prev {
			errors = append(errors, fmt.Sprintf("Line %d: prev_hash mismatch (expected %s, got %s)", idx+1, prev, r.Integrity.PrevHash))
		}

		recomputedCanon, err := recomputeCanonicalHash(r)
		if err != nil {
			errors = append(errors, fmt.Sprintf("Line %d: failed to recompute canonical_hash: %v", idx+1, err))
			prev = r.Integrity.ThisHash
			continue
		}
		if r.Integrity.CanonicalHash != recomputedCanon {
			errors = append(errors, fmt.Sprintf("Line %d: canonical_hash mismatch (expected %s, got %s)", idx+1, recomputedCanon, r.Integrity.CanonicalHash))
		}

		recomputedThis, err := canonicalize.ThisHash(prev, recomputedCanon)
		if err != nil {
			errors = append(errors, fmt.Sprintf("Line %d: failed to recompute this_hash: %v", idx+1, err))
			prev = r.Integrity.ThisHash
			continue
		}
		if r.Integrity.ThisHash != recomputedThis {
			errors = append(errors, fmt.Sprintf("Line %d: this_hash mismatch (expected %s, got %s)", idx+1, recomputedThis, r.Integrity.ThisHash))
		}

		if r.Integrity.ThisHash != "" {
			prev = r.Integrity.ThisHash
		} else {
			prev = recomputedThis
		}
	}

	return len(errors) == 0, errors
}

func recomputeCanonicalHash(r contracts.Receipt) (string, error) {
	raw, err := canonicalize.JCS(r)
	if err != nil {
		return "", err
	}
	return canonicalize.CanonicalReceiptHash(raw)
}

// TamperLast mutates the last line of the ledger in place to simulate
// corruption for integrity-check demos and tests. It exists solely as a
// fixture; production deployments should gate or omit this operation.
func (l *Ledger) TamperLast(fieldPath string) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureExistsLocked(); err != nil {
		return false, "", err
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return false, "", errs.New(errs.KindIoError, "ledger.TamperLast", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return false, "Log is empty; nothing to tamper.", nil
	}

	lastIdx := len(lines) - 1
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(lines[lastIdx]), &generic); err != nil {
		return false, "", errs.New(errs.KindLedgerCorruption, "ledger.TamperLast", err)
	}

	switch fieldPath {
	case "decision.reason":
		if decision, ok := generic["decision"].(map[string]interface{}); ok {
			reason, _ := decision["reason"].(string)
			decision["reason"] = reason + " [TAMPERED]"
		}
	case "model_output.raw":
		if mo, ok := generic["model_output"].(map[string]interface{}); ok {
			raw, _ := mo["raw"].(string)
			mo["raw"] = raw + "\n[TAMPERED]"
		}
	default:
		generic["tampered"] = true
	}

	newLine, err := canonicalize.JCSString(generic)
	if err != nil {
		return false, "", errs.New(errs.KindCanonError, "ledger.TamperLast", err)
	}
	lines[lastIdx] = newLine

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(l.path, []byte(out), 0o644); err != nil {
		return false, "", errs.New(errs.KindIoError, "ledger.TamperLast", err)
	}
	return true, "Last log entry corrupted. Verification should now fail.", nil
}

// Reset truncates the ledger file to empty.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.WriteFile(l.path, []byte{}, 0o644); err != nil {
		return errs.New(errs.KindIoError, "ledger.Reset", err)
	}
	return nil
}
