// Package predicate holds the guard's predicate table and rule sets: the
// mutable world-model a policy evaluation reads from. A Store is safe for
// concurrent use.
package predicate

import (
	"sync"

	"github.com/quadguard/quadguard/internal/domain/logic"
)

// Store holds the known predicates and the two rule sets (action, message)
// that reference them. Rules may name predicates that have not been
// registered yet; AddActionPolicy/AddMessagePolicy auto-create them with
// Default=false so evaluation never fails for a merely-unseen name.
type Store struct {
	mu sync.RWMutex

	predicates map[string]*Predicate

	action PolicySet

	message    PolicySet
	messageSet bool

	stashed  PolicySet
	hasStash bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		predicates: make(map[string]*Predicate),
		action:     make(PolicySet),
		message:    make(PolicySet),
	}
}

// UpsertPredicate inserts or replaces a predicate definition. If the
// predicate already exists, its Description, Keywords and Default are
// replaced and its current Value is always preserved (re-registration does
// not reset an already-observed value); p.Value is used only for a new
// predicate.
func (s *Store) UpsertPredicate(p Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(p)
}

func (s *Store) upsertLocked(p Predicate) {
	if existing, ok := s.predicates[p.Name]; ok {
		existing.Description = p.Description
		existing.Keywords = p.Keywords
		existing.Default = p.Default
		return
	}
	cp := p
	if !cp.Value {
		cp.Value = cp.Default
	}
	s.predicates[p.Name] = &cp
}

// GetPredicate returns a copy of the named predicate and whether it exists.
func (s *Store) GetPredicate(name string) (Predicate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.predicates[name]
	if !ok {
		return Predicate{}, false
	}
	return *p, true
}

// AllPredicates returns a copy of every registered predicate, keyed by name.
func (s *Store) AllPredicates() map[string]Predicate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Predicate, len(s.predicates))
	for name, p := range s.predicates {
		out[name] = *p
	}
	return out
}

// SetValue updates a predicate's current boolean value. If the predicate is
// unknown it is auto-created first, with Default=false.
func (s *Store) SetValue(name string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.predicates[name]
	if !ok {
		p = &Predicate{Name: name, Default: false}
		s.predicates[name] = p
	}
	p.Value = value
}

// Valuation returns the current name->value map for every known predicate,
// suitable for passing to logic.Eval.
func (s *Store) Valuation() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.predicates))
	for name, p := range s.predicates {
		out[name] = p.Value
	}
	return out
}

// AddActionPolicy merges rules into the action policy set, auto-creating any
// predicate names they reference that are not yet known.
func (s *Store) AddActionPolicy(rules []Rule) error {
	return s.addPolicy(&s.action, rules, OriginAction)
}

// AddMessagePolicy merges rules into the message policy set, auto-creating
// any predicate names they reference. The message policy starts unset
// (no conversation has one until ingestion installs it); the first call
// marks it set.
func (s *Store) AddMessagePolicy(rules []Rule) error {
	err := s.addPolicy(&s.message, rules, OriginMessage)
	if err == nil {
		s.mu.Lock()
		s.messageSet = true
		s.mu.Unlock()
	}
	return err
}

// addPolicy validates every rule's logic before mutating any state, then
// merges the rules into set and auto-creates any predicate names they
// reference. origin is accepted only to keep call sites self-describing;
// Rule.Origin itself is set by the caller.
func (s *Store) addPolicy(set *PolicySet, rules []Rule, origin PolicyOrigin) error {
	nodes := make([]*logic.Node, len(rules))
	for i, r := range rules {
		node, err := logic.Parse(r.Logic)
		if err != nil {
			return err
		}
		nodes[i] = node
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range rules {
		(*set)[r.Name] = r.Logic
		for _, name := range logic.Identifiers(nodes[i]) {
			if _, ok := s.predicates[name]; !ok {
				s.predicates[name] = &Predicate{Name: name, Default: false}
			}
		}
	}
	_ = origin
	return nil
}

// ActionPolicy returns a copy of the current action policy set.
func (s *Store) ActionPolicy() PolicySet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPolicySet(s.action)
}

// MessagePolicy returns a copy of the current message policy set and
// whether one has been installed yet.
func (s *Store) MessagePolicy() (PolicySet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.messageSet {
		return nil, false
	}
	return copyPolicySet(s.message), true
}

// DeactivatePolicies stashes the current action policy aside and clears it,
// so that subsequent action evaluation sees no rules (vacuously safe) until
// ActivatePolicy restores some of them. Used while the guard itself is
// refining policy and must not apply the in-progress rule set to its own
// traffic. A second call before ActivatePolicy overwrites the previous
// stash.
func (s *Store) DeactivatePolicies() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivateLocked()
}

func (s *Store) deactivateLocked() {
	s.stashed = copyPolicySet(s.action)
	s.hasStash = true
	s.action = make(PolicySet)
}

// ActivatePolicy installs the named subset of the stashed action policy as
// the new action policy. If an action policy is active, or nothing has been
// stashed yet, it is stashed first (as DeactivatePolicies does); after
// DeactivatePolicies the existing stash is kept rather than overwritten by
// the empty set. Names not present in the stash are silently skipped.
func (s *Store) ActivatePolicy(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.action) > 0 || !s.hasStash {
		s.deactivateLocked()
	}
	for _, name := range names {
		if logic, ok := s.stashed[name]; ok {
			s.action[name] = logic
		}
	}
}

func copyPolicySet(p PolicySet) PolicySet {
	out := make(PolicySet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
