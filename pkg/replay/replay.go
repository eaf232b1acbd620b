// Package replay re-runs the policy engine against a stored receipt and
// compares the result canonically against what was recorded, verifying
// policy determinism independent of chain or signature verification.
package replay

import (
	"github.com/kilnworks/pat/pkg/canonicalize"
	"github.com/kilnworks/pat/pkg/contracts"
	"github.com/kilnworks/pat/pkg/errs"
	"github.com/kilnworks/pat/pkg/policy"
)

// Side holds one side (recomputed or stored) of a replay comparison.
type Side struct {
	PolicyChecks     []contracts.PolicyCheck `json:"policy_checks"`
	Decision         string                  `json:"decision"`
	Reason           string                  `json:"reason"`
	ApprovalRequired bool                    `json:"approval_required,omitempty"`
}

// Comparison is the result of ReplayAndCompare.
type Comparison struct {
	Recomputed Side
	Stored     Side
	Match      bool
}

// ReplayAndCompare recomputes policy_checks/decision/reason for receipt
// under rules and compares a canonical digest of {checks, decision,
// reason} between the recomputed and stored values. It does not consult
// keys or hash-chain state; that is the ledger's job.
func ReplayAndCompare(r contracts.Receipt, rules contracts.PolicyRuleSet) (Comparison, error) {
	outcome := policy.RunChecks(r.ProposedAction.Type, r.ModelOutput.EffectiveConfidence, r.Approval.Approved, rules)

	recomputed := Side{
		PolicyChecks:     outcome.Checks,
		Decision:         outcome.Decision,
		Reason:           outcome.Reason,
		ApprovalRequired: outcome.ApprovalRequired,
	}
	stored := Side{
		PolicyChecks: r.PolicyChecks,
		Decision:     r.Decision.Result,
		Reason:       r.Decision.Reason,
	}

	recomputedHash, err := digestOf(recomputed.PolicyChecks, recomputed.Decision, recomputed.Reason)
	if err != nil {
		return Comparison{}, errs.New(errs.KindCanonError, "replay.ReplayAndCompare", err)
	}
	storedHash, err := digestOf(stored.PolicyChecks, stored.Decision, stored.Reason)
	if err != nil {
		return Comparison{}, errs.New(errs.KindCanonError, "replay.ReplayAndCompare", err)
	}

	return Comparison{
		Recomputed: recomputed,
		Stored:     stored,
		Match:      recomputedHash == storedHash,
	}, nil
}

func digestOf(checks []contracts.PolicyCheck, decision, reason string) (string, error) {
	payload := map[string]any{
		"checks":   checks,
		"decision": decision,
		"reason":   reason,
	}
	return canonicalize.CanonicalHash(payload)
}
