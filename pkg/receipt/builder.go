// Package receipt assembles Receipt values: the initial receipt for a
// new event, and the approval transition that re-evaluates policy with
// approval present and binds a detached signature over the canonical
// hash.
package receipt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kilnworks/pat/pkg/canonicalize"
	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/errs"
	"github.com/kilnworks/pat/pkg/ledger"
	"github.com/kilnworks/pat/pkg/policy"
)

// Clock is injectable for deterministic tests.
type Clock func() time.Time

// Builder assembles receipts against a specific ledger (for prev_hash /
// event_id snapshotting) and signer (for the approval transition).
type Builder struct {
	Ledger *ledger.Ledger
	Signer Signer
	Clock  Clock
}

// Signer is the subset of keyring.Keyring the builder needs to bind an
// approval signature, kept as an interface so tests can substitute a
// fake without touching the filesystem.
type Signer interface {
	GetPublicKeyB64(approverID string) (string, bool, error)
	Sign(approverID, message string) (string, error)
}

// NewBuilder returns a Builder; clock defaults to time.Now if nil.
func NewBuilder(l *ledger.Ledger, signer Signer, clock Clock) *Builder {
	if clock == nil {
		clock = time.Now
	}
	return &Builder{Ledger: l, Signer: signer, Clock: clock}
}

// NewReceiptInput bundles the arguments for BuildNew.
type NewReceiptInput struct {
	Prompt               string
	ModelOutputRaw       string
	ActionType           string
	ActionTarget         string
	ActionParams         map[string]any
	ConfidenceOverride   *float64
	Policy               contracts.PolicyRuleSet
}

// BuildNew assembles the first receipt for a new event. event_id and
// prev_hash are both snapshotted under a single LedgerLock acquisition
// so concurrent builders can never duplicate an event_id or observe a
// stale prev_hash — this resolves, rather than reproduces, the counter
// race present when the ledger length is read outside the lock.
func (b *Builder) BuildNew(in NewReceiptInput) (contracts.Receipt, error) {
	var result contracts.Receipt
	err := b.Ledger.WithLedgerLock(func(view ledger.LockedView) error {
		prevHash, err := view.LastHash()
		if err != nil {
			return err
		}
		count, err := lockedLength(view)
		if err != nil {
			return err
		}

		nowUTC := b.Clock().UTC().Truncate(time.Second)
		tsUTC := nowUTC.Format("2006-01-02T15:04:05Z")
		eventID := fmt.Sprintf("%s_%05d", tsUTC, count+1)

		parsed, hasParsed := policy.ExtractConfidence(in.ModelOutputRaw)
		var parsedPtr *float64
		if hasParsed {
			v := parsed
			parsedPtr = &v
		}
		effective := parsedPtr
		if in.ConfidenceOverride != nil {
			effective = in.ConfidenceOverride
		}

		actionType := in.ActionType
		outcome := policy.RunChecks(actionType, effective, false, in.Policy)

		rulesHash, err := canonicalize.RulesHash(in.Policy.PolicyID, in.Policy.Version, in.Policy.HighStakesActions, in.Policy.ConfidenceThreshold, contracts.RulesHashNotes)
		if err != nil {
			return errs.New(errs.KindCanonError, "receipt.BuildNew", err)
		}

		r := contracts.Receipt{
			EventID: eventID,
			TSUTC:   tsUTC,
			Inputs: contracts.Inputs{
				Prompt:  in.Prompt,
				Context: map[string]any{"source": "sim", "channel": "demo"},
			},
			ModelOutput: contracts.ModelOutput{
				Raw:                 in.ModelOutputRaw,
				Model:               "demo-model",
				Temperature:         0.2,
				ParsedConfidence:    parsedPtr,
				EffectiveConfidence: effective,
			},
			ProposedAction: normalizedAction(in.ActionType, in.ActionTarget, in.ActionParams),
			Policy: contracts.PolicySnapshot{
				PolicyID:  in.Policy.PolicyID,
				Version:   in.Policy.Version,
				RulesHash: rulesHash,
			},
			PolicyChecks: outcome.Checks,
			Decision: contracts.Decision{
				Result:     outcome.Decision,
				Reason:     outcome.Reason,
				DecisionBy: "policy_engine",
			},
			Approval: contracts.Approval{
				Required: outcome.ApprovalRequired,
				Approved: false,
			},
			Actuation: contracts.Actuation{
				Attempted: outcome.Decision == "PERMITTED",
				Executed:  false,
			},
			Integrity: contracts.Integrity{
				PrevHash: prevHash,
			},
		}

		if err := stampHashes(&r); err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func normalizedAction(actionType, target string, params map[string]any) contracts.ProposedAction {
	if params == nil {
		params = map[string]any{}
	}
	return contracts.ProposedAction{
		Type:   strings.ToUpper(strings.TrimSpace(actionType)),
		Target: strings.TrimSpace(target),
		Params: params,
	}
}

// BuildApprovalTransition deep-clones the latest receipt via a
// canonical-JSON round-trip, applies the approver's authorization,
// re-evaluates policy with approval present, and signs the resulting
// canonical_hash — never the raw receipt, so resigning never disturbs
// the hash an auditor recomputes.
func (b *Builder) BuildApprovalTransition(latest contracts.Receipt, approverID string, rules contracts.PolicyRuleSet) (contracts.Receipt, error) {
	cloned, err := deepClone(latest)
	if err != nil {
		return contracts.Receipt{}, err
	}

	pubKeyB64, ok, err := b.Signer.GetPublicKeyB64(approverID)
	if err != nil {
		return contracts.Receipt{}, err
	}
	if !ok {
		return contracts.Receipt{}, errs.New(errs.KindUnknownApprover, "receipt.BuildApprovalTransition", fmt.Errorf("unknown approver_id: %s", approverID))
	}

	signedTS := b.Clock().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
	alg := "ed25519"
	approverCopy := approverID
	pubKeyCopy := pubKeyB64

	cloned.Approval.Required = true
	cloned.Approval.Approved = true
	cloned.Approval.ApproverID = &approverCopy
	cloned.Approval.SignatureAlg = &alg
	cloned.Approval.PublicKeyB64 = &pubKeyCopy
	cloned.Approval.SignedTSUTC = &signedTS
	cloned.Approval.Signature = nil

	outcome := policy.RunChecks(cloned.ProposedAction.Type, cloned.ModelOutput.EffectiveConfidence, true, rules)
	cloned.PolicyChecks = outcome.Checks
	cloned.Decision.Result = outcome.Decision
	cloned.Decision.Reason = outcome.Reason

	cloned.Actuation.Attempted = outcome.Decision == "PERMITTED"
	cloned.Actuation.Executed = false

	var prevHash string
	err = b.Ledger.WithLedgerLock(func(view ledger.LockedView) error {
		prevHash, err = view.LastHash()
		return err
	})
	if err != nil {
		return contracts.Receipt{}, err
	}
	cloned.Integrity.PrevHash = prevHash

	canonHash, err := recomputeCanonicalHash(cloned)
	if err != nil {
		return contracts.Receipt{}, err
	}
	cloned.Integrity.CanonicalHash = canonHash

	sig, err := b.Signer.Sign(approverID, canonHash)
	if err != nil {
		return contracts.Receipt{}, err
	}
	cloned.Approval.Signature = &sig

	thisHash, err := canonicalize.ThisHash(prevHash, canonHash)
	if err != nil {
		return contracts.Receipt{}, errs.New(errs.KindCanonError, "receipt.BuildApprovalTransition", err)
	}
	cloned.Integrity.ThisHash = thisHash

	return cloned, nil
}

func stampHashes(r *contracts.Receipt) error {
	canonHash, err := recomputeCanonicalHash(*r)
	if err != nil {
		return err
	}
	r.Integrity.CanonicalHash = canonHash

	thisHash, err := canonicalize.ThisHash(r.Integrity.PrevHash, canonHash)
	if err != nil {
		return errs.New(errs.KindCanonError, "receipt.stampHashes", err)
	}
	r.Integrity.ThisHash = thisHash
	return nil
}

func recomputeCanonicalHash(r contracts.Receipt) (string, error) {
	raw, err := canonicalize.JCS(r)
	if err != nil {
		return "", errs.New(errs.KindCanonError, "receipt.canonicalHash", err)
	}
	h, err := canonicalize.CanonicalReceiptHash(raw)
	if err != nil {
		return "", errs.New(errs.KindCanonError, "receipt.canonicalHash", err)
	}
	return h, nil
}

func deepClone(r contracts.Receipt) (contracts.Receipt, error) {
	b, err := canonicalize.JCS(r)
	if err != nil {
		return contracts.Receipt{}, errs.New(errs.KindCanonError, "receipt.deepClone", err)
	}
	var clone contracts.Receipt
	if err := json.Unmarshal(b, &clone); err != nil {
		return contracts.Receipt{}, errs.New(errs.KindCanonError, "receipt.deepClone", err)
	}
	return clone, nil
}

func lockedLength(view ledger.LockedView) (int, error) {
	receipts, err := view.ReadAll()
	if err != nil {
		return 0, err
	}
	return len(receipts), nil
}
