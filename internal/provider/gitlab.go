package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pantheon-tools/buildflow/internal/run"
)

const gitlabAPIBaseURL = "https://gitlab.com/api/v4"

// GitLab implements Provider against the GitLab REST API.
type GitLab struct {
	httpClient *http.Client
	token      string
	baseURL    string
	runner     run.Runner
}

func NewGitLab(token string, runner run.Runner) *GitLab {
	return &GitLab{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		baseURL:    gitlabAPIBaseURL,
		runner:     runner,
	}
}

func (g *GitLab) Name() string { return "gitlab" }

func (g *GitLab) CreateRepository(ctx context.Context, owner, name string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"name":       name,
		"visibility": "private",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/projects", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", g.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gitlab: creating project %s returned status %d: %s", name, resp.StatusCode, resp.Status)
	}

	var project struct {
		HTTPURLToRepo string `json:"http_url_to_repo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return project.HTTPURLToRepo, nil
}

func (g *GitLab) PushRepository(ctx context.Context, dir, owner, name string) error {
	remoteURL := fmt.Sprintf("https://oauth2:%s@gitlab.com/%s/%s.git", g.token, owner, name)
	return pushAll(ctx, g.runner, dir, remoteURL, []string{g.token})
}

func (g *GitLab) BranchesForOpenPullRequests(ctx context.Context, owner, repo string) ([]string, error) {
	project := url.PathEscape(owner + "/" + repo)

	var branches []string
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/projects/%s/merge_requests?state=opened&per_page=100&page=%s",
			g.baseURL, project, strconv.Itoa(page))

		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("PRIVATE-TOKEN", g.token)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to make request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("gitlab: listing merge requests for %s/%s returned status %d: %s",
				owner, repo, resp.StatusCode, resp.Status)
		}

		var mrs []struct {
			SourceBranch string `json:"source_branch"`
		}
		err = json.NewDecoder(resp.Body).Decode(&mrs)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		for _, mr := range mrs {
			branches = append(branches, mr.SourceBranch)
		}
		if len(mrs) < 100 {
			break
		}
	}

	return branches, nil
}

func (g *GitLab) CredentialEnvVars() map[string]string {
	return map[string]string{"GITLAB_TOKEN": g.token}
}
