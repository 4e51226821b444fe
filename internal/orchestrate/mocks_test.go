package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pantheon-tools/buildflow/internal/pantheon"
	"github.com/pantheon-tools/buildflow/internal/run"
)

// mockPlatform implements Platform for testing
type mockPlatform struct {
	site     *pantheon.Site
	envs     []pantheon.Environment
	existing map[string]bool
	err      error

	calls []string
}

func (m *mockPlatform) record(format string, args ...interface{}) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *mockPlatform) GetSite(ctx context.Context, site string) (*pantheon.Site, error) {
	if m.site != nil {
		return m.site, m.err
	}
	return &pantheon.Site{ID: "site-uuid", Name: site}, m.err
}

func (m *mockPlatform) CreateSite(ctx context.Context, name, label, upstream, org string) (*pantheon.Workflow, error) {
	m.record("CreateSite(%s,%s)", name, upstream)
	return &pantheon.Workflow{ID: "wf"}, m.err
}

func (m *mockPlatform) ListEnvironments(ctx context.Context, site string) ([]pantheon.Environment, error) {
	return m.envs, m.err
}

func (m *mockPlatform) EnvironmentExists(ctx context.Context, site, env string) (bool, error) {
	return m.existing[env], m.err
}

func (m *mockPlatform) CreateEnvironment(ctx context.Context, site, env, source string) (*pantheon.Workflow, error) {
	m.record("CreateEnvironment(%s,%s)", env, source)
	return &pantheon.Workflow{ID: "wf"}, m.err
}

func (m *mockPlatform) DeleteEnvironment(ctx context.Context, site, env string, deleteBranch bool) (*pantheon.Workflow, error) {
	m.record("DeleteEnvironment(%s,%t)", env, deleteBranch)
	return &pantheon.Workflow{ID: "wf"}, m.err
}

func (m *mockPlatform) SetConnectionMode(ctx context.Context, site, env, mode string) (*pantheon.Workflow, error) {
	m.record("SetConnectionMode(%s,%s)", env, mode)
	return &pantheon.Workflow{ID: "wf"}, m.err
}

func (m *mockPlatform) CommitChanges(ctx context.Context, site, env, message string) (*pantheon.Workflow, error) {
	m.record("CommitChanges(%s)", env)
	return &pantheon.Workflow{ID: "wf"}, m.err
}

// mockWaiter implements Waiter for testing
type mockWaiter struct {
	calls []string
	err   error
}

func (m *mockWaiter) WaitForWorkflow(ctx context.Context, site, env, expected string, start time.Time, maxWait time.Duration) error {
	m.calls = append(m.calls, fmt.Sprintf("WaitForWorkflow(%s,%s)", env, expected))
	return m.err
}

func (m *mockWaiter) WaitForCodeSync(ctx context.Context, site, env string, start time.Time) error {
	m.calls = append(m.calls, fmt.Sprintf("WaitForCodeSync(%s)", env))
	return m.err
}

// mockRunner implements run.Runner, recording commands instead of executing
// them.
type mockRunner struct {
	commands []run.Command
	outputs  map[string]string       // keyed by "name arg1 arg2 ..."
	failOn   string                  // substring of a command line that should fail
	onRun    func(run.Command) error // extra behavior, e.g. producing files a command would
}

func (m *mockRunner) line(cmd run.Command) string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}

func (m *mockRunner) Run(ctx context.Context, cmd run.Command) error {
	m.commands = append(m.commands, cmd)
	if m.failOn != "" && strings.Contains(m.line(cmd), m.failOn) {
		return fmt.Errorf("command %q failed with exit code 1", cmd.Redacted())
	}
	if m.onRun != nil {
		return m.onRun(cmd)
	}
	return nil
}

func (m *mockRunner) Output(ctx context.Context, cmd run.Command) (string, error) {
	if err := m.Run(ctx, cmd); err != nil {
		return "", err
	}
	return m.outputs[m.line(cmd)], nil
}

func (m *mockRunner) lines() []string {
	var lines []string
	for _, cmd := range m.commands {
		lines = append(lines, m.line(cmd))
	}
	return lines
}

// mockProvider implements provider.Provider for testing
type mockProvider struct {
	calls    []string
	branches []string
	err      error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) CreateRepository(ctx context.Context, owner, name string) (string, error) {
	m.calls = append(m.calls, fmt.Sprintf("CreateRepository(%s/%s)", owner, name))
	return "https://example.com/" + owner + "/" + name + ".git", m.err
}

func (m *mockProvider) PushRepository(ctx context.Context, dir, owner, name string) error {
	m.calls = append(m.calls, fmt.Sprintf("PushRepository(%s/%s)", owner, name))
	return m.err
}

func (m *mockProvider) BranchesForOpenPullRequests(ctx context.Context, owner, repo string) ([]string, error) {
	return m.branches, m.err
}

func (m *mockProvider) CredentialEnvVars() map[string]string {
	return map[string]string{"MOCK_TOKEN": "mock-value"}
}

// mockCI implements CI for testing
type mockCI struct {
	calls []string
	err   error
}

func (m *mockCI) SetEnvVar(ctx context.Context, org, repo, name, value string) error {
	m.calls = append(m.calls, fmt.Sprintf("SetEnvVar(%s=%s)", name, value))
	return m.err
}

func (m *mockCI) FollowProject(ctx context.Context, org, repo string) error {
	m.calls = append(m.calls, fmt.Sprintf("FollowProject(%s/%s)", org, repo))
	return m.err
}
