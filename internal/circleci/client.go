package circleci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	circleAPIBaseURL = "https://circleci.com/api/v2"
	defaultTimeout   = 30 * time.Second
)

// Client handles CircleCI API operations
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// NewClient creates a new CircleCI client
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		token:   token,
		baseURL: circleAPIBaseURL,
	}
}

// SetEnvVar registers a project environment variable. Values are write-only
// on the CircleCI side; setting an existing name replaces it.
func (c *Client) SetEnvVar(ctx context.Context, org, repo, name, value string) error {
	projectSlug := fmt.Sprintf("gh/%s/%s", org, repo)
	endpoint := fmt.Sprintf("%s/project/%s/envvar", c.baseURL, projectSlug)

	body, err := json.Marshal(map[string]string{"name": name, "value": value})
	if err != nil {
		return fmt.Errorf("failed to encode env var %s: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Circle-Token", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("circleci: registering env var %s for project %s returned status %d: %s",
			name, projectSlug, resp.StatusCode, resp.Status)
	}
	return nil
}

// FollowProject starts building the project on CircleCI.
func (c *Client) FollowProject(ctx context.Context, org, repo string) error {
	projectSlug := fmt.Sprintf("gh/%s/%s", org, repo)
	endpoint := fmt.Sprintf("%s/project/%s/follow", c.baseURL, projectSlug)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Circle-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return fmt.Errorf("circleci: project %s not found or token doesn't have access", projectSlug)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("circleci: following project %s returned status %d: %s",
			projectSlug, resp.StatusCode, resp.Status)
	}
	return nil
}
