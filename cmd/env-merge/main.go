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
	env := pflag.String("env", "", "Approved environment to merge into dev (required)")
	message := pflag.String("message", "", "Merge commit message")
	deleteAfter := pflag.Bool("delete", false, "Delete the environment and its branch once merged")
	verbose := pflag.Bool("verbose", false, "Enable debug logging")

	pflag.Parse()

	if *site == "" || *env == "" {
		fmt.Println("Usage: env-merge --site <site> --env <env> [flags]")
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

	err = o.Merge(ctx, orchestrate.MergeOptions{
		Site:        *site,
		Env:         *env,
		Message:     *message,
		DeleteAfter: *deleteAfter,
	})
	if err != nil {
		log.Fatalf("Error merging environment %s: %v", *env, err)
	}

	fmt.Printf("Merged %s into the dev environment of %s\n", *env, *site)
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
