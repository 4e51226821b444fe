package orchestrate

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// CreateOptions configures project creation.
type CreateOptions struct {
	RepoOwner string // provider organization or user
	RepoName  string // provider repository name
	SiteName  string // platform site machine name
	Label     string // human-readable site label
	Upstream  string // platform upstream the site starts from
	SiteOrg   string // platform organization, optional
	SourceDir string // initial project code, a git working copy

	// CIEnvVars are registered with the CI project in addition to the
	// provider's own credentials, e.g. the platform machine token.
	CIEnvVars map[string]string
}

// CreateProject provisions everything a new project needs: the provider
// repository, the platform site, the initial code push, and the CI project
// configuration. Requires a provider; CI setup is skipped when no CI client
// is attached.
func (o *Orchestrator) CreateProject(ctx context.Context, opts CreateOptions) error {
	if o.provider == nil {
		return fmt.Errorf("project creation requires a git provider")
	}

	cloneURL, err := o.provider.CreateRepository(ctx, opts.RepoOwner, opts.RepoName)
	if err != nil {
		return err
	}
	o.log.Infow("created repository", "provider", o.provider.Name(), "url", cloneURL)

	start := time.Now()
	if _, err := o.platform.CreateSite(ctx, opts.SiteName, opts.Label, opts.Upstream, opts.SiteOrg); err != nil {
		return err
	}
	if err := o.waiter.WaitForWorkflow(ctx, opts.SiteName, primaryEnv, "Create site", start, 0); err != nil {
		return err
	}
	o.log.Infow("created site", "site", opts.SiteName, "upstream", opts.Upstream)

	if err := o.provider.PushRepository(ctx, opts.SourceDir, opts.RepoOwner, opts.RepoName); err != nil {
		return err
	}

	if err := o.Push(ctx, PushOptions{
		Site:      opts.SiteName,
		Env:       primaryEnv,
		SourceDir: opts.SourceDir,
		Message:   "Initial project code",
	}); err != nil {
		return err
	}

	if o.ci == nil {
		o.log.Infow("no CI client configured, skipping CI setup")
		return nil
	}
	return o.setupCI(ctx, opts)
}

// setupCI registers build credentials with the CI project and follows it so
// builds start on push.
func (o *Orchestrator) setupCI(ctx context.Context, opts CreateOptions) error {
	vars := map[string]string{}
	for name, value := range o.provider.CredentialEnvVars() {
		vars[name] = value
	}
	for name, value := range opts.CIEnvVars {
		vars[name] = value
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := o.ci.SetEnvVar(ctx, opts.RepoOwner, opts.RepoName, name, vars[name]); err != nil {
			return err
		}
		o.log.Infow("registered CI env var", "name", name)
	}

	if err := o.ci.FollowProject(ctx, opts.RepoOwner, opts.RepoName); err != nil {
		return err
	}
	o.log.Infow("following CI project", "owner", opts.RepoOwner, "repo", opts.RepoName)
	return nil
}
