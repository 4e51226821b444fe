package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pantheon-tools/buildflow/internal/cache"
	"github.com/pantheon-tools/buildflow/internal/circleci"
	"github.com/pantheon-tools/buildflow/internal/config"
	"github.com/pantheon-tools/buildflow/internal/orchestrate"
	"github.com/pantheon-tools/buildflow/internal/pantheon"
	"github.com/pantheon-tools/buildflow/internal/provider"
	"github.com/pantheon-tools/buildflow/internal/run"
)

func main() {
	// Define command line flags
	configPath := pflag.String("config", config.DefaultPath(), "Path to the buildflow config file")
	owner := pflag.String("owner", "", "Git provider organization or user (required)")
	repo := pflag.String("repo", "", "Git provider repository name (required)")
	site := pflag.String("site", "", "Platform site machine name (required)")
	label := pflag.String("label", "", "Human-readable site label (defaults to the site name)")
	upstream := pflag.String("upstream", "", "Platform upstream the site starts from (required)")
	siteOrg := pflag.String("org", "", "Platform organization the site belongs to")
	source := pflag.String("source", ".", "Initial project code, a git working copy")
	verbose := pflag.Bool("verbose", false, "Enable debug logging")

	pflag.Parse()

	if *owner == "" || *repo == "" || *site == "" || *upstream == "" {
		fmt.Println("Usage: project-create --owner <owner> --repo <repo> --site <site> --upstream <upstream> [flags]")
		fmt.Println("Flags:")
		pflag.PrintDefaults()
		os.Exit(1)
	}
	if *label == "" {
		*label = *site
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

	runner := run.NewExecRunner(logger)

	prov, err := provider.ForName(cfg.Provider, provider.Credentials{
		GitHubToken:          cfg.GitHubToken,
		GitLabToken:          cfg.GitLabToken,
		BitbucketUser:        cfg.BitbucketUser,
		BitbucketAppPassword: cfg.BitbucketAppPassword,
	}, runner)
	if err != nil {
		log.Fatalf("Error creating git provider: %v", err)
	}

	client := pantheon.NewClient(session)
	o := orchestrate.New(client, pantheon.NewPoller(client, logger), runner, logger).
		WithProvider(prov)
	if cfg.CircleToken != "" {
		o = o.WithCI(circleci.NewClient(cfg.CircleToken))
	}

	err = o.CreateProject(ctx, orchestrate.CreateOptions{
		RepoOwner: *owner,
		RepoName:  *repo,
		SiteName:  *site,
		Label:     *label,
		Upstream:  *upstream,
		SiteOrg:   *siteOrg,
		SourceDir: *source,
		CIEnvVars: map[string]string{
			"PANTHEON_TOKEN": cfg.PantheonToken,
		},
	})
	if err != nil {
		log.Fatalf("Error creating project %s: %v", *site, err)
	}

	fmt.Printf("Created project %s backed by %s/%s\n", *site, *owner, *repo)
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
