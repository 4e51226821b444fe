package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/pantheon-tools/buildflow/internal/metadata"
	"github.com/pantheon-tools/buildflow/internal/pantheon"
)

// PushOptions configures a build push.
type PushOptions struct {
	Site      string // site name or UUID
	Env       string // target environment; doubles as the branch name
	SourceDir string // built artifact tree, a git working copy
	Message   string // commit message; defaults to the source commit comment
}

// Push publishes the built artifacts in SourceDir to an environment,
// recording provenance in build-metadata.json. When the environment already
// exists it is switched out of sftp mode before the push and the
// push-triggered code sync is awaited, so a later mode change cannot race
// the sync. A new environment is created from the pushed branch instead; no
// sync wait applies.
func (o *Orchestrator) Push(ctx context.Context, opts PushOptions) error {
	site, err := o.platform.GetSite(ctx, opts.Site)
	if err != nil {
		return err
	}

	existed, err := o.platform.EnvironmentExists(ctx, opts.Site, opts.Env)
	if err != nil {
		return err
	}

	gitURL := pantheon.GitURL(site.ID)
	if err := o.ensureRemote(ctx, opts.SourceDir, remoteAlias, gitURL); err != nil {
		return err
	}

	meta, err := metadata.FromWorkingCopy(opts.SourceDir, "origin")
	if err != nil {
		return err
	}
	if err := meta.Write(opts.SourceDir); err != nil {
		return err
	}

	if err := stripNestedRepos(opts.SourceDir); err != nil {
		return err
	}

	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("Build assets for %q from commit %.8s: %s", opts.Env, meta.SHA, meta.Comment)
	}

	if err := o.git(ctx, opts.SourceDir, "checkout", "-B", opts.Env); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", opts.Env, err)
	}
	if err := o.git(ctx, opts.SourceDir, "add", "--force", "-A", "."); err != nil {
		return fmt.Errorf("failed to stage build artifacts: %w", err)
	}
	if err := o.git(ctx, opts.SourceDir, "commit", "--allow-empty", "-m", message); err != nil {
		return fmt.Errorf("failed to commit build artifacts: %w", err)
	}

	// Flip an existing environment out of on-server-development mode before
	// the push lands; the push triggers a code sync, and a mode change
	// arriving during that sync corrupts the environment.
	if existed {
		if _, err := o.platform.SetConnectionMode(ctx, opts.Site, opts.Env, "git"); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := o.git(ctx, opts.SourceDir, "push", "--force", remoteAlias, opts.Env); err != nil {
		return fmt.Errorf("failed to push branch %s: %w", opts.Env, err)
	}

	if existed {
		return o.waiter.WaitForCodeSync(ctx, opts.Site, opts.Env, start)
	}

	// Fixed environments exist from site creation; only multidevs are
	// created on first push.
	if env := (pantheon.Environment{ID: opts.Env}); !env.Ephemeral() {
		return nil
	}

	o.log.Infow("creating multidev environment", "site", opts.Site, "env", opts.Env)
	createStart := time.Now()
	if _, err := o.platform.CreateEnvironment(ctx, opts.Site, opts.Env, "dev"); err != nil {
		return err
	}
	expected := fmt.Sprintf("Create a Multidev environment \"%s\"", opts.Env)
	return o.waiter.WaitForWorkflow(ctx, opts.Site, opts.Env, expected, createStart, 0)
}
