// Package orchestrate composes the platform API, the git hosting provider,
// and git/rsync subprocesses into the multi-step delivery workflows: push a
// build to an ephemeral environment, merge an approved environment back into
// the primary one, create a project, delete stale environments.
package orchestrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pantheon-tools/buildflow/internal/pantheon"
	"github.com/pantheon-tools/buildflow/internal/provider"
	"github.com/pantheon-tools/buildflow/internal/run"
)

// remoteAlias is the name of the git remote pointing at the platform's code
// server.
const remoteAlias = "pantheon"

// Platform is the subset of the hosting API the orchestrator drives.
// *pantheon.Client satisfies it.
type Platform interface {
	GetSite(ctx context.Context, site string) (*pantheon.Site, error)
	CreateSite(ctx context.Context, name, label, upstream, org string) (*pantheon.Workflow, error)
	ListEnvironments(ctx context.Context, site string) ([]pantheon.Environment, error)
	EnvironmentExists(ctx context.Context, site, env string) (bool, error)
	CreateEnvironment(ctx context.Context, site, env, source string) (*pantheon.Workflow, error)
	DeleteEnvironment(ctx context.Context, site, env string, deleteBranch bool) (*pantheon.Workflow, error)
	SetConnectionMode(ctx context.Context, site, env, mode string) (*pantheon.Workflow, error)
	CommitChanges(ctx context.Context, site, env, message string) (*pantheon.Workflow, error)
}

// Waiter blocks on asynchronous platform workflows. *pantheon.Poller
// satisfies it.
type Waiter interface {
	WaitForWorkflow(ctx context.Context, site, env, expected string, start time.Time, maxWait time.Duration) error
	WaitForCodeSync(ctx context.Context, site, env string, start time.Time) error
}

// CI is the subset of the CI service API project creation needs.
// *circleci.Client satisfies it.
type CI interface {
	SetEnvVar(ctx context.Context, org, repo, name, value string) error
	FollowProject(ctx context.Context, org, repo string) error
}

// Orchestrator runs the multi-step workflows. The provider and CI client are
// optional; commands that never touch them leave them nil.
type Orchestrator struct {
	platform Platform
	waiter   Waiter
	runner   run.Runner
	provider provider.Provider
	ci       CI
	log      *zap.SugaredLogger
}

func New(platform Platform, waiter Waiter, runner run.Runner, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		platform: platform,
		waiter:   waiter,
		runner:   runner,
		log:      log,
	}
}

// WithProvider attaches a git hosting provider for workflows that need one.
func (o *Orchestrator) WithProvider(p provider.Provider) *Orchestrator {
	o.provider = p
	return o
}

// WithCI attaches a CI client for workflows that configure builds.
func (o *Orchestrator) WithCI(c CI) *Orchestrator {
	o.ci = c
	return o
}

// git runs a git subcommand in dir.
func (o *Orchestrator) git(ctx context.Context, dir string, args ...string) error {
	return o.runner.Run(ctx, run.Command{Name: "git", Args: args, Dir: dir})
}

// ensureRemote makes alias point at url, replacing any stale URL from an
// earlier run against a different site.
func (o *Orchestrator) ensureRemote(ctx context.Context, dir, alias, url string) error {
	// Removal fails harmlessly when the alias does not exist yet.
	_ = o.git(ctx, dir, "remote", "remove", alias)

	if err := o.git(ctx, dir, "remote", "add", alias, url); err != nil {
		return fmt.Errorf("failed to add remote %s: %w", alias, err)
	}
	return nil
}

// stripNestedRepos deletes .git directories below the artifact root. Build
// steps routinely vendor dependencies as full clones; left in place the
// platform would treat them as submodules and serve empty directories.
func stripNestedRepos(root string) error {
	var nested []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || d.Name() != ".git" || path == filepath.Join(root, ".git") {
			return nil
		}
		nested = append(nested, path)
		return filepath.SkipDir
	})
	if err != nil {
		return fmt.Errorf("failed to scan for nested repositories: %w", err)
	}

	for _, path := range nested {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove nested repository %s: %w", path, err)
		}
	}
	return nil
}

// RemoteBranches lists the branch names currently present on a git remote.
func (o *Orchestrator) RemoteBranches(ctx context.Context, repoURL string) ([]string, error) {
	out, err := o.runner.Output(ctx, run.Command{
		Name: "git",
		Args: []string{"ls-remote", "--heads", repoURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list remote branches: %w", err)
	}

	var branches []string
	for _, line := range strings.Split(out, "\n") {
		_, ref, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		if branch := strings.TrimPrefix(ref, "refs/heads/"); branch != ref {
			branches = append(branches, strings.TrimSpace(branch))
		}
	}
	return branches, nil
}
