package mediator

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/quadguard/quadguard/internal/domain/predicate"
	"github.com/quadguard/quadguard/internal/domain/verifier"
)

// cacheKey identifies a verdict-cache entry by policy kind plus a hash of
// both the valuation and the policy set it was evaluated against, so an
// action-policy verdict and a message-policy verdict never collide even if
// the valuation happens to match, and a stale verdict is never served after
// the policy set itself changes (the single-slot hash(str(msg)) cache in
// the original implementation keyed action and message checks together and
// could not detect a policy-set change independent of the valuation).
func cacheKey(kind string, valuation map[string]bool, policies predicate.PolicySet) string {
	return fmt.Sprintf("%s:%x:%x", kind, hashValuation(valuation), hashPolicySet(policies))
}

func hashValuation(v map[string]bool) uint64 {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	for _, name := range names {
		fmt.Fprintf(h, "%s=%t;", name, v[name])
	}
	return h.Sum64()
}

func hashPolicySet(p predicate.PolicySet) uint64 {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	for _, name := range names {
		fmt.Fprintf(h, "%s:%s;", name, p[name])
	}
	return h.Sum64()
}

type verdictCache struct {
	entries map[string]verifier.Result
}

func newVerdictCache() *verdictCache {
	return &verdictCache{entries: make(map[string]verifier.Result)}
}

func (c *verdictCache) get(key string) (verifier.Result, bool) {
	r, ok := c.entries[key]
	return r, ok
}

func (c *verdictCache) put(key string, r verifier.Result) {
	c.entries[key] = r
}
