package orchestrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pantheon-tools/buildflow/internal/metadata"
	"github.com/pantheon-tools/buildflow/internal/pantheon"
	"github.com/pantheon-tools/buildflow/internal/reconcile"
)

// CleanupOptions configures stale-environment deletion.
type CleanupOptions struct {
	Site    string
	Pattern string // delete pattern, e.g. "^ci-" or "^pr-"

	// KeepNewest spares that many of the newest stale environments, useful
	// for keeping recent builds inspectable while the backlog drains.
	KeepNewest int

	// DryRun reports what would be deleted without deleting anything.
	DryRun bool

	// DeleteBranch also removes each environment's git branch.
	DeleteBranch bool
}

// DeleteStaleEnvironments removes every ephemeral environment matching the
// pattern whose branch is no longer in liveBranches, oldest first. It
// returns the environments it deleted (or, under DryRun, would delete).
//
// A truncated environment name can only be prefix-matched against live
// branches, so for those the originating branch recorded in the deployed
// build metadata decides; the prefix heuristic is the fallback when the
// metadata cannot be fetched.
func (o *Orchestrator) DeleteStaleEnvironments(ctx context.Context, opts CleanupOptions, liveBranches []string) ([]string, error) {
	matcher, err := reconcile.NewMatcher(opts.Pattern)
	if err != nil {
		return nil, err
	}

	site, err := o.platform.GetSite(ctx, opts.Site)
	if err != nil {
		return nil, err
	}

	envs, err := o.platform.ListEnvironments(ctx, opts.Site)
	if err != nil {
		return nil, err
	}

	// ListEnvironments is oldest-first already; keep that order so the
	// oldest environments go first.
	var stale []string
	for _, env := range envs {
		if !env.Ephemeral() {
			continue
		}
		name, ok := matcher.Recovered(env.ID)
		if !ok {
			continue
		}

		live := reconcile.HasLiveBranch(name, liveBranches)
		if reconcile.Truncated(name) {
			if ref, err := o.originBranch(ctx, site.ID, env.ID); err == nil {
				live = reconcile.BranchLive(ref, liveBranches)
			} else {
				o.log.Debugw("no deployed build metadata, falling back to prefix matching",
					"site", opts.Site, "env", env.ID, "error", err)
			}
		}
		if !live {
			stale = append(stale, env.ID)
		}
	}
	if opts.KeepNewest > 0 {
		if opts.KeepNewest >= len(stale) {
			stale = nil
		} else {
			stale = stale[:len(stale)-opts.KeepNewest]
		}
	}

	if opts.DryRun {
		for _, env := range stale {
			o.log.Infow("would delete environment", "site", opts.Site, "env", env)
		}
		return stale, nil
	}

	for _, env := range stale {
		o.log.Infow("deleting stale environment", "site", opts.Site, "env", env)

		start := time.Now()
		if _, err := o.platform.DeleteEnvironment(ctx, opts.Site, env, opts.DeleteBranch); err != nil {
			return nil, err
		}
		expected := fmt.Sprintf("Deleted Multidev environment \"%s\"", env)
		if err := o.waiter.WaitForWorkflow(ctx, opts.Site, primaryEnv, expected, start, 0); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

// originBranch recovers the branch an environment was built from, as
// recorded in the build metadata deployed with it.
func (o *Orchestrator) originBranch(ctx context.Context, siteID, env string) (string, error) {
	dir, err := os.MkdirTemp("", "buildflow-metadata-")
	if err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	meta, err := metadata.FetchRemote(ctx, o.runner, pantheon.SFTPHost(siteID, env), dir)
	if err != nil {
		return "", err
	}
	return meta.Ref, nil
}
