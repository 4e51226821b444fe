package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pantheon-tools/buildflow/internal/cache"
	"github.com/pantheon-tools/buildflow/internal/config"
	"github.com/pantheon-tools/buildflow/internal/orchestrate"
	"github.com/pantheon-tools/buildflow/internal/pantheon"
	"github.com/pantheon-tools/buildflow/internal/run"
)

func main() {
	// Define command line flags
	configPath := pflag.String("config", config.DefaultPath(), "Path to the buildflow config file")
	site := pflag.String("site", "", "Platform site name (required)")
	env := pflag.String("env", "", "Target environment, also the branch name (required)")
	sourceDir := pflag.String("source", ".", "Directory holding the built artifacts")
	message := pflag.String("message", "", "Commit message for the build artifacts")
	verbose := pflag.Bool("verbose", false, "Enable debug logging")

	pflag.Parse()

	if *site == "" || *env == "" {
		fmt.Println("Usage: env-push --site <site> --env <env> [flags]")
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

	err = o.Push(ctx, orchestrate.PushOptions{
		Site:      *site,
		Env:       *env,
		SourceDir: *sourceDir,
		Message:   *message,
	})
	if err != nil {
		log.Fatalf("Error pushing to environment %s: %v", *env, err)
	}

	fmt.Printf("Pushed build artifacts to %s.%s\n", *site, *env)
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
