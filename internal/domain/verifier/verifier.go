// Package verifier implements the policy verifier: a pure function that
// applies the logic evaluator (internal/domain/logic) across a whole policy
// set and reports which rules, if any, are violated.
package verifier

import (
	"sort"

	"github.com/quadguard/quadguard/internal/domain/logic"
	"github.com/quadguard/quadguard/internal/domain/predicate"
)

// Result is the outcome of verifying a policy set against a valuation.
type Result struct {
	Decision bool
	Violated []string
	Missing  []string
}

// Verify evaluates every rule in policies against valuation, in
// insertion-sorted (by rule name) order for deterministic output, and
// returns Decision=false with the names of every rule whose logic evaluates
// to false. A rule whose expression fails to parse is treated as violated
// (InvalidRule never makes a rule vacuously safe); its name is reported via
// the violated list and evaluation of the remaining rules continues. The
// parse error itself is not returned.
func Verify(policies predicate.PolicySet, valuation map[string]bool) Result {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)

	var violated []string
	missingSet := make(map[string]bool)
	for _, name := range names {
		expr := policies[name]
		node, err := logic.Parse(expr)
		if err != nil {
			violated = append(violated, name)
			continue
		}
		ok, missing := logic.Eval(node, valuation)
		for _, m := range missing {
			missingSet[m] = true
		}
		if !ok {
			violated = append(violated, name)
		}
	}

	missing := make([]string, 0, len(missingSet))
	for m := range missingSet {
		missing = append(missing, m)
	}
	sort.Strings(missing)

	return Result{
		Decision: len(violated) == 0,
		Violated: violated,
		Missing:  missing,
	}
}
