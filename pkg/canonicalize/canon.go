package canonicalize

import (
	"encoding/json"
	"fmt"
)

// ZeroHash is the genesis prev_hash: "sha256:" followed by 64 zero hex
// digits, the predecessor of the first receipt ever appended.
const ZeroHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Sha256Hex computes the canonical hash of v and returns it with the
// "sha256:" prefix used throughout the ledger and keyring formats.
func Sha256Hex(v interface{}) (string, error) {
	h, err := CanonicalHash(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return "sha256:" + h, nil
}

// RulesHash computes the fingerprint of a policy ruleset snapshot: the
// canonical JSON of its public fields plus the fixed notes string,
// hashed and prefixed. Two PolicyRuleSet values with identical fields
// always produce the same rules_hash, on any machine.
func RulesHash(policyID, version string, highStakesActions []string, confidenceThreshold float64, notes string) (string, error) {
	payload := map[string]interface{}{
		"policy_id":            policyID,
		"version":              version,
		"high_stakes_actions":  highStakesActions,
		"confidence_threshold": confidenceThreshold,
		"notes":                notes,
	}
	return Sha256Hex(payload)
}

// CanonicalReceiptHash computes canonical_hash over a receipt already
// marshaled to a generic map: integrity.this_hash, integrity.verified_at
// and approval.signature are removed (not nulled) before hashing, so
// that signing the canonical_hash never invalidates the hash it signs.
//
// receipt is consumed as a map rather than a typed struct because the
// "remove these keys" transform is most naturally expressed as a map
// delete, mirroring the reference implementation's deep-copy-then-pop.
func CanonicalReceiptHash(receiptJSON []byte) (string, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(receiptJSON, &generic); err != nil {
		return "", fmt.Errorf("canonicalize: decode receipt: %w", err)
	}

	if integ, ok := generic["integrity"].(map[string]interface{}); ok {
		delete(integ, "this_hash")
		delete(integ, "verified_at")
	}
	if appr, ok := generic["approval"].(map[string]interface{}); ok {
		delete(appr, "signature")
	}

	return Sha256Hex(generic)
}

// ThisHash computes the hash-chain link: sha256(prevHash + "|" + canonicalHash).
func ThisHash(prevHash, canonicalHash string) (string, error) {
	msg := prevHash + "|" + canonicalHash
	h := HashBytes([]byte(msg))
	return "sha256:" + h, nil
}
