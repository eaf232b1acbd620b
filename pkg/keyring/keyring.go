// Package keyring manages the persistent ed25519 approver keys used to
// sign approval transitions: a single canonical-JSON document on disk,
// all access serialized by one mutex, exactly as the ledger package
// serializes the log file through its own lock.
package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kilnworks/pat/pkg/canonicalize"
	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/errs"
)

const demoApproverID = "j.wells"

const sigPrefix = "ed25519:"

// Clock is injectable for deterministic tests; production code leaves it
// at time.Now.
type Clock func() time.Time

// Keyring guards a single on-disk keyring document with KeyringLock.
type Keyring struct {
	mu   sync.Mutex
	path string
	clock Clock
}

// New returns a Keyring backed by the file at path.
func New(path string) *Keyring {
	return &Keyring{path: path, clock: time.Now}
}

// WithClock overrides the clock used for created_utc/signed_ts_utc, for
// deterministic tests.
func (k *Keyring) WithClock(c Clock) *Keyring {
	k.clock = c
	return k
}

// EnsureExists creates an empty keyring document if the file is absent.
func (k *Keyring) EnsureExists() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ensureExistsLocked()
}

func (k *Keyring) ensureExistsLocked() error {
	if _, err := os.Stat(k.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errs.New(errs.KindIoError, "keyring.EnsureExists", err)
	}
	return k.saveLocked(contracts.KeyringDocument{Keys: map[string]contracts.KeyringEntry{}})
}

func (k *Keyring) loadLocked() (contracts.KeyringDocument, error) {
	if err := k.ensureExistsLocked(); err != nil {
		return contracts.KeyringDocument{}, err
	}
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return contracts.KeyringDocument{}, errs.New(errs.KindIoError, "keyring.load", err)
	}
	if len(raw) == 0 {
		return contracts.KeyringDocument{Keys: map[string]contracts.KeyringEntry{}}, nil
	}
	var doc contracts.KeyringDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return contracts.KeyringDocument{}, errs.New(errs.KindIoError, "keyring.load", err)
	}
	if doc.Keys == nil {
		doc.Keys = map[string]contracts.KeyringEntry{}
	}
	return doc, nil
}

func (k *Keyring) saveLocked(doc contracts.KeyringDocument) error {
	b, err := canonicalize.JCS(doc)
	if err != nil {
		return errs.New(errs.KindCanonError, "keyring.save", err)
	}
	if err := os.WriteFile(k.path, b, 0o600); err != nil {
		return errs.New(errs.KindIoError, "keyring.save", err)
	}
	return nil
}

func (k *Keyring) nowUTC() string {
	return k.clock().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// EnsureDemoApprover returns the lexicographically smallest existing
// approver id, or generates one named "j.wells" with a fresh key pair
// if the keyring is empty.
func (k *Keyring) EnsureDemoApprover() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.loadLocked()
	if err != nil {
		return "", err
	}
	if len(doc.Keys) > 0 {
		ids := make([]string, 0, len(doc.Keys))
		for id := range doc.Keys {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids[0], nil
	}

	entry, err := k.generateEntry()
	if err != nil {
		return "", err
	}
	doc.Keys[demoApproverID] = entry
	if err := k.saveLocked(doc); err != nil {
		return "", err
	}
	return demoApproverID, nil
}

// NewKeypair generates and persists a fresh ed25519 key pair for
// approverID. Fails with KeyExists if the id is already present.
func (k *Keyring) NewKeypair(approverID string) error {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return errs.New(errs.KindInvalidInput, "keyring.NewKeypair", fmt.Errorf("approver_id required"))
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.loadLocked()
	if err != nil {
		return err
	}
	if _, exists := doc.Keys[approverID]; exists {
		return errs.New(errs.KindKeyExists, "keyring.NewKeypair", fmt.Errorf("approver_id already exists: %s", approverID))
	}

	entry, err := k.generateEntry()
	if err != nil {
		return err
	}
	doc.Keys[approverID] = entry
	return k.saveLocked(doc)
}

func (k *Keyring) generateEntry() (contracts.KeyringEntry, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return contracts.KeyringEntry{}, errs.New(errs.KindIoError, "keyring.generateEntry", err)
	}
	return contracts.KeyringEntry{
		Alg:           "ed25519",
		PrivateKeyB64: base64.StdEncoding.EncodeToString(priv.Seed()),
		PublicKeyB64:  base64.StdEncoding.EncodeToString(pub),
		CreatedUTC:    k.nowUTC(),
	}, nil
}

// GetPublicKeyB64 returns the base64-encoded public key for approverID,
// or ("", false) if unknown.
func (k *Keyring) GetPublicKeyB64(approverID string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.loadLocked()
	if err != nil {
		return "", false, err
	}
	entry, ok := doc.Keys[approverID]
	if !ok {
		return "", false, nil
	}
	return entry.PublicKeyB64, true, nil
}

// Sign signs message with approverID's private key, returning
// "ed25519:" + base64(signature). Fails with UnknownApprover if the id
// is not present.
func (k *Keyring) Sign(approverID, message string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.loadLocked()
	if err != nil {
		return "", err
	}
	entry, ok := doc.Keys[approverID]
	if !ok {
		return "", errs.New(errs.KindUnknownApprover, "keyring.Sign", fmt.Errorf("unknown approver_id: %s", approverID))
	}

	seed, err := base64.StdEncoding.DecodeString(entry.PrivateKeyB64)
	if err != nil || len(seed) != ed25519.SeedSize {
		return "", errs.New(errs.KindIoError, "keyring.Sign", fmt.Errorf("corrupt private key for %s", approverID))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	sig := ed25519.Sign(priv, []byte(message))
	return sigPrefix + base64.StdEncoding.EncodeToString(sig), nil
}

// Verify reports whether signature is a valid ed25519 signature by
// approverID over message. It never errors: any malformed input —
// unknown approver, bad prefix, bad base64, bad key size, or a failed
// cryptographic check — simply yields false.
func (k *Keyring) Verify(approverID, message, signature string) bool {
	if !strings.HasPrefix(signature, sigPrefix) {
		return false
	}
	sigB64 := strings.TrimPrefix(signature, sigPrefix)
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}

	pubB64, ok, err := k.GetPublicKeyB64(approverID)
	if err != nil || !ok {
		return false
	}
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig)
}
