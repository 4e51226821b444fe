package orchestrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pantheon-tools/buildflow/internal/pantheon"
)

// primaryEnv is the environment tracking the primary branch.
const primaryEnv = "dev"

// MergeOptions configures folding an approved environment into the primary
// one.
type MergeOptions struct {
	Site        string
	Env         string // approved multidev environment
	Message     string // merge commit message
	DeleteAfter bool   // delete the multidev and its branch once merged
}

// Merge folds the approved environment's content into the primary branch.
// The environment's branch always wins: the primary branch's history is
// merged in with the "ours" strategy, so file conflicts cannot occur, and
// the result is force-pushed onto the primary branch.
//
// Merging the primary environment into itself degenerates to committing any
// on-server edits; no branch work happens.
func (o *Orchestrator) Merge(ctx context.Context, opts MergeOptions) error {
	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("Merge environment %q", opts.Env)
	}

	if opts.Env == primaryEnv {
		if _, err := o.platform.CommitChanges(ctx, opts.Site, primaryEnv, message); err != nil {
			return err
		}
		return nil
	}

	site, err := o.platform.GetSite(ctx, opts.Site)
	if err != nil {
		return err
	}
	gitURL := pantheon.GitURL(site.ID)

	// A scoped clone keeps the caller's working copy out of the merge
	// entirely; the directory is gone again when this call returns.
	workDir, err := os.MkdirTemp("", "buildflow-merge-")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := o.git(ctx, workDir, "clone", gitURL, "."); err != nil {
		return fmt.Errorf("failed to clone site repository: %w", err)
	}
	if err := o.git(ctx, workDir, "checkout", opts.Env); err != nil {
		return fmt.Errorf("failed to check out branch %s: %w", opts.Env, err)
	}

	tempBranch := "merge-" + uuid.NewString()[:8]
	if err := o.git(ctx, workDir, "checkout", "-b", tempBranch); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", tempBranch, err)
	}
	if err := o.git(ctx, workDir, "merge", "-s", "ours", "-m", message, "master"); err != nil {
		return fmt.Errorf("failed to merge master into %s: %w", tempBranch, err)
	}

	start := time.Now()
	if err := o.git(ctx, workDir, "push", "--force", "origin", tempBranch+":master"); err != nil {
		return fmt.Errorf("failed to push merged branch: %w", err)
	}

	if err := o.git(ctx, workDir, "checkout", opts.Env); err != nil {
		return fmt.Errorf("failed to leave branch %s: %w", tempBranch, err)
	}
	if err := o.git(ctx, workDir, "branch", "-D", tempBranch); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", tempBranch, err)
	}

	if err := o.waiter.WaitForCodeSync(ctx, opts.Site, primaryEnv, start); err != nil {
		return err
	}

	if !opts.DeleteAfter {
		return nil
	}

	o.log.Infow("deleting merged environment", "site", opts.Site, "env", opts.Env)
	deleteStart := time.Now()
	if _, err := o.platform.DeleteEnvironment(ctx, opts.Site, opts.Env, true); err != nil {
		return err
	}
	expected := fmt.Sprintf("Deleted Multidev environment \"%s\"", opts.Env)
	return o.waiter.WaitForWorkflow(ctx, opts.Site, primaryEnv, expected, deleteStart, 0)
}
