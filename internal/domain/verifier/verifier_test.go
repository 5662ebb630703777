package verifier

import (
	"testing"

	"github.com/quadguard/quadguard/internal/domain/predicate"
)

func TestVerifyAllSatisfied(t *testing.T) {
	policies := predicate.PolicySet{
		"r1": "is_authorized OR NOT is_write",
	}
	valuation := map[string]bool{"is_authorized": true, "is_write": true}
	result := Verify(policies, valuation)
	if !result.Decision {
		t.Errorf("expected decision=true, got violated=%v", result.Violated)
	}
}

func TestVerifyReportsViolations(t *testing.T) {
	policies := predicate.PolicySet{
		"r1": "is_authorized OR NOT is_write",
		"r2": "is_safe",
	}
	valuation := map[string]bool{"is_authorized": false, "is_write": true, "is_safe": false}
	result := Verify(policies, valuation)
	if result.Decision {
		t.Fatal("expected decision=false")
	}
	if len(result.Violated) != 2 || result.Violated[0] != "r1" || result.Violated[1] != "r2" {
		t.Errorf("expected both rules violated in sorted order, got %v", result.Violated)
	}
}

func TestVerifyInvalidRuleCountsAsViolated(t *testing.T) {
	policies := predicate.PolicySet{"bad": "a AND"}
	result := Verify(policies, map[string]bool{"a": true})
	if result.Decision {
		t.Fatal("expected malformed rule to count as violated")
	}
	if len(result.Violated) != 1 || result.Violated[0] != "bad" {
		t.Errorf("expected [bad] violated, got %v", result.Violated)
	}
}

func TestVerifyReportsMissingPredicates(t *testing.T) {
	policies := predicate.PolicySet{"r1": "a AND b"}
	result := Verify(policies, map[string]bool{"a": true})
	if result.Decision {
		t.Fatal("expected decision=false since b is missing and treated false")
	}
	if len(result.Missing) != 1 || result.Missing[0] != "b" {
		t.Errorf("expected missing=[b], got %v", result.Missing)
	}
}
