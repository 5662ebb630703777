// Package logic implements the propositional-logic evaluator: a
// recursive-descent parser and pure evaluator for rules expressed over
// predicate names using the operators NOT, AND, OR, IMPLIES.
package logic

// Eval evaluates a parsed expression against a valuation (predicate name ->
// current boolean value). A predicate name absent from valuation evaluates to
// false (the "MissingPredicate at evaluation" case from the error-handling
// design); missing is returned so callers can log it without treating it as a
// hard failure. Eval never consults anything but its arguments.
func Eval(n *Node, valuation map[string]bool) (result bool, missing []string) {
	missingSet := make(map[string]bool)
	result = evalNode(n, valuation, missingSet)
	for name := range missingSet {
		missing = append(missing, name)
	}
	return result, missing
}

func evalNode(n *Node, valuation map[string]bool, missing map[string]bool) bool {
	switch n.Kind {
	case KindLiteral:
		v, ok := valuation[n.Name]
		if !ok {
			missing[n.Name] = true
			return false
		}
		return v
	case KindNot:
		return !evalNode(n.Left, valuation, missing)
	case KindAnd:
		return evalNode(n.Left, valuation, missing) && evalNode(n.Right, valuation, missing)
	case KindOr:
		return evalNode(n.Left, valuation, missing) || evalNode(n.Right, valuation, missing)
	case KindImplies:
		// A IMPLIES B == (NOT A) OR B
		return !evalNode(n.Left, valuation, missing) || evalNode(n.Right, valuation, missing)
	default:
		return false
	}
}

// EvalExpr parses and evaluates expr in one step. Returns an InvalidRuleError
// if expr does not parse.
func EvalExpr(expr string, valuation map[string]bool) (bool, []string, error) {
	node, err := Parse(expr)
	if err != nil {
		return false, nil, err
	}
	result, missing := Eval(node, valuation)
	return result, missing, nil
}
