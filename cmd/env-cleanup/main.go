package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pantheon-tools/buildflow/internal/cache"
	"github.com/pantheon-tools/buildflow/internal/config"
	"github.com/pantheon-tools/buildflow/internal/orchestrate"
	"github.com/pantheon-tools/buildflow/internal/pantheon"
	"github.com/pantheon-tools/buildflow/internal/provider"
	"github.com/pantheon-tools/buildflow/internal/run"
)

func main() {
	// Define command line flags
	configPath := pflag.String("config", config.DefaultPath(), "Path to the buildflow config file")
	site := pflag.String("site", "", "Platform site name (required)")
	pattern := pflag.String("pattern", "^ci-", "Environment name pattern to reconcile, e.g. ^ci- or ^pr-")
	owner := pflag.String("owner", "", "Git provider owner, for resolving open pull requests (^pr- patterns)")
	repo := pflag.String("repo", "", "Git provider repository, for resolving open pull requests (^pr- patterns)")
	repoURL := pflag.String("repo-url", "", "Git URL whose branches keep environments alive (^ci- patterns)")
	keep := pflag.Int("keep", 0, "Spare this many of the newest stale environments")
	dryRun := pflag.Bool("dry-run", false, "Report what would be deleted without deleting anything")
	deleteBranch := pflag.Bool("delete-branch", false, "Also delete each environment's git branch")
	verbose := pflag.Bool("verbose", false, "Enable debug logging")

	pflag.Parse()

	if *site == "" {
		fmt.Println("Usage: env-cleanup --site <site> [flags]")
		fmt.Println("Flags:")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	cacheImpl, err := cache.NewDefaultCache()
	if err != nil {
		log.Fatalf("Error creating cache: %v", err)
	}
	defer cacheImpl.Close()

	ctx := context.Background()

	session, err := pantheon.NewAuthenticator(cacheImpl).SessionToken(ctx, cfg.PantheonToken)
	if err != nil {
		log.Fatalf("Error authenticating: %v", err)
	}

	client := pantheon.NewClient(session)
	runner := run.NewExecRunner(logger)
	o := orchestrate.New(client, pantheon.NewPoller(client, logger), runner, logger)

	liveBranches, err := resolveLiveBranches(ctx, cfg, runner, o, *pattern, *owner, *repo, *repoURL)
	if err != nil {
		log.Fatalf("Error resolving live branches: %v", err)
	}

	deleted, err := o.DeleteStaleEnvironments(ctx, orchestrate.CleanupOptions{
		Site:         *site,
		Pattern:      *pattern,
		KeepNewest:   *keep,
		DryRun:       *dryRun,
		DeleteBranch: *deleteBranch,
	}, liveBranches)
	if err != nil {
		log.Fatalf("Error deleting stale environments: %v", err)
	}

	if *dryRun {
		fmt.Printf("Would delete %d environment(s) on %s\n", len(deleted), *site)
	} else {
		fmt.Printf("Deleted %d environment(s) on %s\n", len(deleted), *site)
	}
}

// resolveLiveBranches decides which branches keep environments alive. For
// pull-request environments the open pull requests' source branches count;
// for CI environments every branch still on the repository counts.
func resolveLiveBranches(ctx context.Context, cfg *config.Config, runner run.Runner, o *orchestrate.Orchestrator, pattern, owner, repo, repoURL string) ([]string, error) {
	if strings.Contains(pattern, "pr-") {
		if owner == "" || repo == "" {
			return nil, fmt.Errorf("pull-request patterns need --owner and --repo")
		}
		prov, err := provider.ForName(cfg.Provider, provider.Credentials{
			GitHubToken:          cfg.GitHubToken,
			GitLabToken:          cfg.GitLabToken,
			BitbucketUser:        cfg.BitbucketUser,
			BitbucketAppPassword: cfg.BitbucketAppPassword,
		}, runner)
		if err != nil {
			return nil, err
		}
		branches, err := prov.BranchesForOpenPullRequests(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		// The matcher compares recovered environment names against these
		// source branch names directly.
		return branches, nil
	}

	if repoURL == "" {
		return nil, fmt.Errorf("branch patterns need --repo-url")
	}
	return o.RemoteBranches(ctx, repoURL)
}

func newLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	return logger.Sugar()
}
