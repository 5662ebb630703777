package predicate

import "fmt"

// NotFoundError describes a rule or predicate name that has no entry in the
// Store. The Store's own methods do not return it: lookups report absence
// with a bool, and unknown predicate names are auto-created.
type NotFoundError struct {
	Kind string // "predicate" or "rule"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}
