package logic

import "fmt"

// InvalidRuleError reports a malformed logic expression. A name missing from
// the valuation is not an error: Eval treats it as false and reports it as
// missing. Per spec, an invalid rule is
// never silently treated as false: the caller must catch this and skip the
// rule with a warning (fail-open on that single rule).
type InvalidRuleError struct {
	Expr   string
	Reason string
	Pos    int // rune offset into Expr where the problem was found, -1 if n/a
}

func (e *InvalidRuleError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("invalid rule %q at position %d: %s", e.Expr, e.Pos, e.Reason)
	}
	return fmt.Sprintf("invalid rule %q: %s", e.Expr, e.Reason)
}
