// Package provider abstracts the git hosting service a project lives on.
// Each variant knows how to create a repository, push code to it, list the
// branches behind open pull requests, and name the credentials CI builds
// need.
package provider

import (
	"context"
	"fmt"

	"github.com/pantheon-tools/buildflow/internal/run"
)

// Provider is a git hosting service (GitHub, GitLab, Bitbucket).
type Provider interface {
	// Name is the provider's identifier as used in configuration.
	Name() string

	// CreateRepository creates owner/name and returns its https clone URL.
	CreateRepository(ctx context.Context, owner, name string) (string, error)

	// PushRepository pushes all branches of the repository at dir to
	// owner/name using token authentication.
	PushRepository(ctx context.Context, dir, owner, name string) error

	// BranchesForOpenPullRequests returns the source branch of every open
	// pull request on owner/repo.
	BranchesForOpenPullRequests(ctx context.Context, owner, repo string) ([]string, error)

	// CredentialEnvVars names the environment variables a CI build needs to
	// talk to this provider, with their values.
	CredentialEnvVars() map[string]string
}

// Credentials carries the secrets any provider variant may need. Only the
// fields for the selected provider have to be set.
type Credentials struct {
	GitHubToken          string
	GitLabToken          string
	BitbucketUser        string
	BitbucketAppPassword string
}

// ForName returns the provider implementation for a configured name.
func ForName(name string, creds Credentials, runner run.Runner) (Provider, error) {
	switch name {
	case "github", "":
		if creds.GitHubToken == "" {
			return nil, fmt.Errorf("github provider requires a token")
		}
		return NewGitHub(creds.GitHubToken, runner), nil
	case "gitlab":
		if creds.GitLabToken == "" {
			return nil, fmt.Errorf("gitlab provider requires a token")
		}
		return NewGitLab(creds.GitLabToken, runner), nil
	case "bitbucket":
		if creds.BitbucketUser == "" || creds.BitbucketAppPassword == "" {
			return nil, fmt.Errorf("bitbucket provider requires a user and app password")
		}
		return NewBitbucket(creds.BitbucketUser, creds.BitbucketAppPassword, runner), nil
	}
	return nil, fmt.Errorf("unknown git provider %q", name)
}

// pushAll pushes every local branch at dir to remoteURL. The URL carries
// credentials, so it is redacted from logs.
func pushAll(ctx context.Context, runner run.Runner, dir, remoteURL string, secrets []string) error {
	cmd := run.Command{
		Name:    "git",
		Args:    []string{"push", "--all", remoteURL},
		Dir:     dir,
		Secrets: append(secrets, remoteURL),
	}
	if err := runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to push repository: %w", err)
	}
	return nil
}
