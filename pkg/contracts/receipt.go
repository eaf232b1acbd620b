// Package contracts defines the wire-level data model for policy-attested
// transaction receipts: the PolicyRuleSet evaluated against a proposed
// action, the Receipt produced by that evaluation, and the Keyring entry
// used to sign approval transitions.
//
// Every struct in this package round-trips through canonical JSON
// (pkg/canonicalize) bit-for-bit: field names and nesting mirror the
// on-disk ledger format exactly, because the ledger file is the normative
// contract, not the Go type.
package contracts

// PolicyRuleSet is the immutable ruleset snapshot embedded in every
// receipt via its rules_hash. HighStakesActions is kept as an ordered
// slice (not a set) so its canonical serialization is deterministic.
type PolicyRuleSet struct {
	PolicyID             string   `json:"policy_id"`
	Version              string   `json:"version"`
	HighStakesActions    []string `json:"high_stakes_actions"`
	ConfidenceThreshold  float64  `json:"confidence_threshold"`
}

// LowStakesActions is the fixed universe of actions that never require
// human approval, independent of any PolicyRuleSet.
var LowStakesActions = map[string]bool{
	"NOTIFY":   true,
	"LOG_ONLY": true,
	"NOOP":     true,
}

// IsHighStakes reports whether actionType is a member of the ruleset's
// high-stakes set. actionType must already be normalized (trimmed, upper).
func (p PolicyRuleSet) IsHighStakes(actionType string) bool {
	for _, a := range p.HighStakesActions {
		if a == actionType {
			return true
		}
	}
	return false
}

// IsKnownAction reports whether actionType belongs to the ruleset's
// high-stakes set or the fixed low-stakes universe.
func (p PolicyRuleSet) IsKnownAction(actionType string) bool {
	return p.IsHighStakes(actionType) || LowStakesActions[actionType]
}

// RulesHashNotes is the fixed constant string folded into rules_hash so
// that the hash changes only with substantive ruleset fields, never with
// incidental metadata.
const RulesHashNotes = "Demo policy: high-stakes require human approval; confidence threshold gate."

// Inputs captures what was fed into the model for this event.
type Inputs struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context"`
}

// ModelOutput captures the raw model text plus the confidence values
// derived from it. ParsedConfidence and EffectiveConfidence are pointers
// because "absent" (null) is a distinct, meaningful state from 0.0.
type ModelOutput struct {
	Raw                 string   `json:"raw"`
	Model               string   `json:"model"`
	Temperature         float64  `json:"temperature"`
	ParsedConfidence    *float64 `json:"parsed_confidence"`
	EffectiveConfidence *float64 `json:"effective_confidence"`
}

// ProposedAction is the action the host asked the policy engine to gate.
type ProposedAction struct {
	Type   string         `json:"type"`
	Target string         `json:"target"`
	Params map[string]any `json:"params"`
}

// PolicySnapshot is the {policy_id, version, rules_hash} triple embedded
// in a receipt, fixing which ruleset version produced the decision.
type PolicySnapshot struct {
	PolicyID  string `json:"policy_id"`
	Version   string `json:"version"`
	RulesHash string `json:"rules_hash"`
}

// PolicyCheck is one entry in the ordered policy_checks sequence.
type PolicyCheck struct {
	CheckID string         `json:"check_id"`
	Result  string         `json:"result"` // "PASS" | "FAIL"
	Details map[string]any `json:"details"`
}

// Decision is the terminal policy verdict.
type Decision struct {
	Result     string `json:"result"` // "PERMITTED" | "BLOCKED"
	Reason     string `json:"reason"`
	DecisionBy string `json:"decision_by"`
}

// Approval carries the human-authorization state. All pointer fields are
// null (present-but-empty) until an approval transition populates them —
// they are never omitted, since the Python original always allocates the
// key in the dict.
type Approval struct {
	Required      bool    `json:"required"`
	Approved      bool    `json:"approved"`
	ApproverID    *string `json:"approver_id"`
	PublicKeyB64  *string `json:"public_key_b64"`
	SignatureAlg  *string `json:"signature_alg"`
	Signature     *string `json:"signature"`
	SignedTSUTC   *string `json:"signed_ts_utc"`
}

// Actuation is always inert in this core: attempted mirrors the decision,
// executed is always false, and actuation_event_id always null.
type Actuation struct {
	Attempted        bool    `json:"attempted"`
	Executed         bool    `json:"executed"`
	ActuationEventID *string `json:"actuation_event_id"`
}

// Integrity is the hash-chain linkage for this receipt. VerifiedAt is a
// supplemental, genuinely optional field: it is stamped by a verify
// operation that wants to cache "last verified" and is omitted (not
// null) when no verification has run, unlike the other integrity fields.
type Integrity struct {
	PrevHash      string `json:"prev_hash"`
	CanonicalHash string `json:"canonical_hash"`
	ThisHash      string `json:"this_hash"`
	VerifiedAt    string `json:"verified_at,omitempty"`
}

// Receipt is the immutable-once-appended unit of the ledger.
type Receipt struct {
	EventID       string         `json:"event_id"`
	TSUTC         string         `json:"ts_utc"`
	Inputs        Inputs         `json:"inputs"`
	ModelOutput   ModelOutput    `json:"model_output"`
	ProposedAction ProposedAction `json:"proposed_action"`
	Policy        PolicySnapshot `json:"policy"`
	PolicyChecks  []PolicyCheck  `json:"policy_checks"`
	Decision      Decision       `json:"decision"`
	Approval      Approval       `json:"approval"`
	Actuation     Actuation      `json:"actuation"`
	Integrity     Integrity      `json:"integrity"`
}

// KeyringEntry is one approver's persisted key material.
type KeyringEntry struct {
	Alg           string `json:"alg"`
	PrivateKeyB64 string `json:"private_key_b64"`
	PublicKeyB64  string `json:"public_key_b64"`
	CreatedUTC    string `json:"created_utc"`
}

// KeyringDocument is the full on-disk keyring file.
type KeyringDocument struct {
	Keys map[string]KeyringEntry `json:"keys"`
}
