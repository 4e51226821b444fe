package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pantheon-tools/buildflow/internal/run"
)

const bitbucketAPIBaseURL = "https://api.bitbucket.org/2.0"

// Bitbucket implements Provider against the Bitbucket Cloud REST API.
type Bitbucket struct {
	httpClient  *http.Client
	user        string
	appPassword string
	baseURL     string
	runner      run.Runner
}

func NewBitbucket(user, appPassword string, runner run.Runner) *Bitbucket {
	return &Bitbucket{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		user:        user,
		appPassword: appPassword,
		baseURL:     bitbucketAPIBaseURL,
		runner:      runner,
	}
}

func (b *Bitbucket) Name() string { return "bitbucket" }

func (b *Bitbucket) CreateRepository(ctx context.Context, owner, name string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"scm":        "git",
		"is_private": true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repositories/%s/%s", b.baseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(b.user, b.appPassword)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("bitbucket: creating repository %s/%s returned status %d: %s",
			owner, name, resp.StatusCode, resp.Status)
	}

	var repo struct {
		Links struct {
			Clone []struct {
				Name string `json:"name"`
				Href string `json:"href"`
			} `json:"clone"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, link := range repo.Links.Clone {
		if link.Name == "https" {
			return link.Href, nil
		}
	}
	return fmt.Sprintf("https://bitbucket.org/%s/%s.git", owner, name), nil
}

func (b *Bitbucket) PushRepository(ctx context.Context, dir, owner, name string) error {
	remoteURL := fmt.Sprintf("https://%s:%s@bitbucket.org/%s/%s.git", b.user, b.appPassword, owner, name)
	return pushAll(ctx, b.runner, dir, remoteURL, []string{b.appPassword})
}

func (b *Bitbucket) BranchesForOpenPullRequests(ctx context.Context, owner, repo string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/repositories/%s/%s/pullrequests?state=OPEN&pagelen=50", b.baseURL, owner, repo)

	var branches []string
	for endpoint != "" {
		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.SetBasicAuth(b.user, b.appPassword)

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to make request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("bitbucket: listing pull requests for %s/%s returned status %d: %s",
				owner, repo, resp.StatusCode, resp.Status)
		}

		var page struct {
			Values []struct {
				Source struct {
					Branch struct {
						Name string `json:"name"`
					} `json:"branch"`
				} `json:"source"`
			} `json:"values"`
			Next string `json:"next"`
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		for _, pr := range page.Values {
			branches = append(branches, pr.Source.Branch.Name)
		}
		endpoint = page.Next
	}

	return branches, nil
}

func (b *Bitbucket) CredentialEnvVars() map[string]string {
	return map[string]string{
		"BITBUCKET_USER": b.user,
		"BITBUCKET_PASS": b.appPassword,
	}
}
