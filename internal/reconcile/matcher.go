// Package reconcile decides which ephemeral (multidev) environments are
// stale: created for a branch or pull request that no longer exists and
// therefore safe to delete.
package reconcile

import (
	"fmt"
	"regexp"
	"strings"
)

// Environment names longer than this are truncated by the platform, so the
// recovered branch name can only be prefix-matched against live branches.
const exactMatchLimit = 11

// Matcher filters environment names against a delete pattern and a list of
// live branches.
type Matcher struct {
	pattern *regexp.Regexp
}

// NewMatcher compiles a delete-pattern prefix such as "^ci-" or "^pr-".
// Every environment meant for automatic cleanup must have been created with
// a name matching exactly one recognized pattern.
func NewMatcher(pattern string) (*Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid delete pattern %q: %w", pattern, err)
	}
	return &Matcher{pattern: re}, nil
}

// Recovered strips the delete pattern from an environment name, returning
// the recovered branch name and whether the environment matched the pattern
// at all.
func (m *Matcher) Recovered(env string) (string, bool) {
	if !m.pattern.MatchString(env) {
		return "", false
	}
	return m.pattern.ReplaceAllString(env, ""), true
}

// Stale returns the subset of environments, given oldest-first, that match
// the delete pattern and have no corresponding live branch. Order is
// preserved, so callers delete oldest environments first.
func (m *Matcher) Stale(environments, liveBranches []string) []string {
	var stale []string
	for _, env := range environments {
		branch, ok := m.Recovered(env)
		if !ok {
			continue
		}
		if !HasLiveBranch(branch, liveBranches) {
			stale = append(stale, env)
		}
	}
	return stale
}

// Truncated reports whether a recovered name is long enough to have been cut
// short by the platform, leaving prefix matching as the best HasLiveBranch
// can do on the name alone.
func Truncated(name string) bool {
	return len(name) >= exactMatchLimit
}

// HasLiveBranch reports whether any live branch corresponds to the recovered
// branch name. Short names must match exactly (anchored both ends).
// Truncated names match any branch they prefix, case insensitively; an
// unrelated branch sharing the prefix then keeps the environment alive,
// which under-deletes rather than over-deletes.
func HasLiveBranch(name string, liveBranches []string) bool {
	if !Truncated(name) {
		return BranchLive(name, liveBranches)
	}
	for _, branch := range liveBranches {
		if strings.HasPrefix(strings.ToLower(branch), strings.ToLower(name)) {
			return true
		}
	}
	return false
}

// BranchLive reports whether name exactly matches a live branch, ignoring
// case. Used when the full branch name is known, e.g. recovered from an
// environment's deployed build metadata.
func BranchLive(name string, liveBranches []string) bool {
	for _, branch := range liveBranches {
		if strings.EqualFold(name, branch) {
			return true
		}
	}
	return false
}
