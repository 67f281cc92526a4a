package permission

import (
	"fmt"
	"regexp"
	"strings"
)

// DenialReason distinguishes why authorization failed.
type DenialReason string

const (
	ReasonMissingCapability DenialReason = "missing_capability"
	ReasonScopeViolation    DenialReason = "scope_violation"
)

// Decision is the result of one authorization check.
type Decision struct {
	Allowed bool
	Reason  DenialReason
	Detail  string
}

// Guard authorizes single invocations against an agent's permission set.
// It performs no side effects and holds no state: it must be queried
// immediately before each invocation executes, never cached across
// invocations, since permissions can change between requests.
type Guard struct{}

// NewGuard creates a permission guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Authorize checks whether the capability is granted for the target.
// A capability is allowed only when an entry exists with granted=true; a
// non-empty scope additionally requires the target to match at least one
// pattern. The two failure modes carry distinct reasons.
func (g *Guard) Authorize(set Set, cap Capability, target string) Decision {
	grant := set.Grant(cap)
	if !grant.Granted {
		return Decision{
			Reason: ReasonMissingCapability,
			Detail: fmt.Sprintf("capability %s not granted", cap),
		}
	}

	if len(grant.Scope) == 0 {
		return Decision{Allowed: true}
	}

	for _, pattern := range grant.Scope {
		if matchScope(pattern, target) {
			return Decision{Allowed: true}
		}
	}

	return Decision{
		Reason: ReasonScopeViolation,
		Detail: fmt.Sprintf("target %q outside the scope of %s", target, cap),
	}
}

// matchScope matches a target against one scope pattern: a plain substring
// match, or a simple glob where * expands to any characters.
func matchScope(pattern, target string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "*") {
		return strings.Contains(target, pattern)
	}
	return matchGlob(pattern, target)
}

// matchGlob converts a glob pattern to an anchored regexp match.
func matchGlob(pattern, s string) bool {
	regexPattern := "^" + regexp.QuoteMeta(pattern) + "$"
	regexPattern = strings.ReplaceAll(regexPattern, "\\*", ".*")

	matched, _ := regexp.MatchString(regexPattern, s)
	return matched
}
