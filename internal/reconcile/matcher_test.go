package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleEmptyBranchListDeletesEverything(t *testing.T) {
	m, err := NewMatcher("^ci-")
	require.NoError(t, err)

	envs := []string{"ci-1", "ci-2", "ci-long-branch-name"}
	assert.Equal(t, envs, m.Stale(envs, nil))
}

func TestStaleIgnoresEnvironmentsOutsidePattern(t *testing.T) {
	m, err := NewMatcher("^ci-")
	require.NoError(t, err)

	stale := m.Stale([]string{"dev", "test", "live", "pr-12", "ci-3"}, nil)
	assert.Equal(t, []string{"ci-3"}, stale)
}

func TestStaleShortNamesRequireExactMatch(t *testing.T) {
	m, err := NewMatcher("^ci-")
	require.NoError(t, err)

	// "foo" is shorter than the truncation limit: a branch merely sharing
	// the prefix does not keep the environment alive.
	stale := m.Stale([]string{"ci-foo"}, []string{"foo-other"})
	assert.Equal(t, []string{"ci-foo"}, stale)

	// An exact match retains it, regardless of case.
	assert.Empty(t, m.Stale([]string{"ci-foo"}, []string{"FOO"}))
}

func TestStaleLongNamesPrefixMatch(t *testing.T) {
	m, err := NewMatcher("^ci-")
	require.NoError(t, err)

	// "bar-extended-name" was truncated platform-side; the live branch
	// "bar-extended-name-2" starts with it, so the environment is kept.
	stale := m.Stale([]string{"ci-bar-extended-name"}, []string{"bar-extended-name-2"})
	assert.Empty(t, stale)
}

func TestStaleMixedScenario(t *testing.T) {
	m, err := NewMatcher("^ci-")
	require.NoError(t, err)

	stale := m.Stale(
		[]string{"ci-foo", "ci-bar-extended-name"},
		[]string{"foo-other", "bar-extended-name-2"},
	)
	assert.Equal(t, []string{"ci-foo"}, stale)
}

func TestStalePullRequestPattern(t *testing.T) {
	m, err := NewMatcher("^pr-")
	require.NoError(t, err)

	stale := m.Stale([]string{"pr-11", "pr-12", "pr-13"}, []string{"12"})
	assert.Equal(t, []string{"pr-11", "pr-13"}, stale)
}

func TestStalePreservesOldestFirstOrder(t *testing.T) {
	m, err := NewMatcher("^ci-")
	require.NoError(t, err)

	stale := m.Stale([]string{"ci-old", "ci-mid", "ci-new"}, nil)
	assert.Equal(t, []string{"ci-old", "ci-mid", "ci-new"}, stale)
}

func TestNewMatcherRejectsBadPattern(t *testing.T) {
	_, err := NewMatcher("^ci-(")
	require.Error(t, err)
}
