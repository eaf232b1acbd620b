// Package policy is the pure decision engine: confidence extraction from
// free text and an ordered sequence of checks producing a terminal
// PERMITTED/BLOCKED verdict. No I/O, no clock reads — every result is a
// deterministic function of its arguments, so it can be replayed byte-
// for-byte from a stored receipt (see pkg/replay).
package policy

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kilnworks/pat/pkg/contracts"
)

var confidenceRe = regexp.MustCompile(`confidence\s*[:=]\s*([0-9]*\.?[0-9]+)\s*(%?)`)

// ExtractConfidence searches raw (case-insensitively) for the first
// "confidence: N" or "confidence = N%" occurrence and returns the value
// clamped to [0,1]. A bare number greater than 1.0 is treated as a
// percentage, same as an explicit "%" suffix. Returns (0, false) when no
// match is found.
func ExtractConfidence(raw string) (float64, bool) {
	m := confidenceRe.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] == "%" || val > 1.0 {
		val = val / 100.0
	}
	if val < 0 {
		val = 0
	}
	if val > 1 {
		val = 1
	}
	return val, true
}

// Result is the outcome of running the check sequence: the ordered
// checks, the terminal decision, its reason, and whether the action's
// type required human authorization.
type Result struct {
	Checks           []contracts.PolicyCheck
	Decision         string
	Reason           string
	ApprovalRequired bool
}

const (
	decisionPermitted = "PERMITTED"
	decisionBlocked   = "BLOCKED"
)

// RunChecks evaluates the fixed check sequence against a normalized
// action type, an optional confidence value, whether approval is
// currently present, and the policy snapshot in force.
func RunChecks(actionType string, confidence *float64, approvalPresent bool, rules contracts.PolicyRuleSet) Result {
	actionType = strings.ToUpper(strings.TrimSpace(actionType))

	approvalRequired := rules.IsHighStakes(actionType)
	allowed := rules.IsKnownAction(actionType)

	checks := []contracts.PolicyCheck{
		{
			CheckID: "ALLOWED_ACTIONS",
			Result:  passFail(allowed),
			Details: map[string]any{"action_type": actionType, "allowed": allowed},
		},
	}
	if !allowed {
		return Result{
			Checks:           checks,
			Decision:         decisionBlocked,
			Reason:           "Action not in allowed list",
			ApprovalRequired: approvalRequired,
		}
	}

	if confidence == nil {
		checks = append(checks, contracts.PolicyCheck{
			CheckID: "CONFIDENCE_PRESENT",
			Result:  "FAIL",
			Details: map[string]any{"confidence": nil, "note": "No confidence provided/parsed"},
		})
	} else {
		checks = append(checks, contracts.PolicyCheck{
			CheckID: "CONFIDENCE_THRESHOLD",
			Result:  passFail(*confidence >= rules.ConfidenceThreshold),
			Details: map[string]any{"confidence": *confidence, "threshold": rules.ConfidenceThreshold},
		})
	}

	if approvalRequired {
		checks = append(checks, contracts.PolicyCheck{
			CheckID: "HUMAN_AUTH_REQUIRED",
			Result:  passFail(approvalPresent),
			Details: map[string]any{"required": true, "present": approvalPresent},
		})
	} else {
		checks = append(checks, contracts.PolicyCheck{
			CheckID: "HUMAN_AUTH_NOT_REQUIRED",
			Result:  "PASS",
			Details: map[string]any{"required": false, "present": approvalPresent},
		})
	}

	decision, reason := terminalDecision(approvalRequired, approvalPresent, confidence, rules.ConfidenceThreshold)
	return Result{Checks: checks, Decision: decision, Reason: reason, ApprovalRequired: approvalRequired}
}

func terminalDecision(approvalRequired, approvalPresent bool, confidence *float64, threshold float64) (string, string) {
	belowThreshold := confidence == nil || *confidence < threshold

	if approvalRequired {
		if !approvalPresent {
			return decisionBlocked, "High-stakes action requires human authorization"
		}
		if belowThreshold {
			return decisionBlocked, "Confidence < threshold for high-stakes action"
		}
		return decisionPermitted, "Approved + confidence >= threshold"
	}

	if confidence == nil {
		return decisionBlocked, "No confidence available"
	}
	if belowThreshold {
		return decisionBlocked, "Confidence < threshold"
	}
	return decisionPermitted, "Confidence >= threshold"
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
