package pantheon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const (
	apiBaseURL     = "https://api.pantheon.io"
	defaultTimeout = 30 * time.Second
)

// Client handles platform API operations: sites, environments and their
// workflows.
type Client struct {
	httpClient *http.Client
	session    string
	baseURL    string
}

// NewClient creates a client from an established session token.
func NewClient(session string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		session:    session,
		baseURL:    apiBaseURL,
	}
}

// CreateSite starts site creation from an upstream and returns the workflow
// driving it. The caller waits on the workflow before using the site.
func (c *Client) CreateSite(ctx context.Context, name, label, upstream, org string) (*Workflow, error) {
	body := map[string]string{
		"site_name":   name,
		"label":       label,
		"upstream_id": upstream,
	}
	if org != "" {
		body["organization_id"] = org
	}

	var wf Workflow
	if err := c.do(ctx, "POST", "/sites", body, &wf); err != nil {
		return nil, fmt.Errorf("failed to create site %s: %w", name, err)
	}
	return &wf, nil
}

// GetSite fetches a site by name or UUID.
func (c *Client) GetSite(ctx context.Context, site string) (*Site, error) {
	var s Site
	if err := c.do(ctx, "GET", "/sites/"+site, nil, &s); err != nil {
		return nil, fmt.Errorf("failed to fetch site %s: %w", site, err)
	}
	return &s, nil
}

// ListEnvironments returns the site's environments sorted oldest first.
func (c *Client) ListEnvironments(ctx context.Context, site string) ([]Environment, error) {
	var byID map[string]Environment
	if err := c.do(ctx, "GET", "/sites/"+site+"/environments", nil, &byID); err != nil {
		return nil, fmt.Errorf("failed to list environments for site %s: %w", site, err)
	}

	envs := make([]Environment, 0, len(byID))
	for id, env := range byID {
		env.ID = id
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool {
		if envs[i].Created != envs[j].Created {
			return envs[i].Created < envs[j].Created
		}
		return envs[i].ID < envs[j].ID
	})
	return envs, nil
}

// EnvironmentExists reports whether the named environment exists on the site.
func (c *Client) EnvironmentExists(ctx context.Context, site, env string) (bool, error) {
	envs, err := c.ListEnvironments(ctx, site)
	if err != nil {
		return false, err
	}
	for _, e := range envs {
		if e.ID == env {
			return true, nil
		}
	}
	return false, nil
}

// CreateEnvironment creates a multidev environment cloned from source
// (usually "dev") and returns the workflow driving it.
func (c *Client) CreateEnvironment(ctx context.Context, site, env, source string) (*Workflow, error) {
	body := map[string]string{"source_environment": source}

	var wf Workflow
	if err := c.do(ctx, "POST", "/sites/"+site+"/environments/"+env, body, &wf); err != nil {
		return nil, fmt.Errorf("failed to create environment %s on site %s: %w", env, site, err)
	}
	return &wf, nil
}

// DeleteEnvironment removes a multidev environment, optionally deleting its
// git branch, and returns the workflow driving the deletion.
func (c *Client) DeleteEnvironment(ctx context.Context, site, env string, deleteBranch bool) (*Workflow, error) {
	path := "/sites/" + site + "/environments/" + env + "?delete_branch=" + strconv.FormatBool(deleteBranch)

	var wf Workflow
	if err := c.do(ctx, "DELETE", path, nil, &wf); err != nil {
		return nil, fmt.Errorf("failed to delete environment %s on site %s: %w", env, site, err)
	}
	return &wf, nil
}

// SetConnectionMode switches an environment between "git" and "sftp"
// connection modes and returns the workflow driving the switch.
func (c *Client) SetConnectionMode(ctx context.Context, site, env, mode string) (*Workflow, error) {
	body := map[string]string{"mode": mode}

	var wf Workflow
	if err := c.do(ctx, "POST", "/sites/"+site+"/environments/"+env+"/connection-mode", body, &wf); err != nil {
		return nil, fmt.Errorf("failed to set connection mode %s on %s.%s: %w", mode, site, env, err)
	}
	return &wf, nil
}

// CommitChanges commits any on-server edits in an sftp-mode environment.
func (c *Client) CommitChanges(ctx context.Context, site, env, message string) (*Workflow, error) {
	body := map[string]string{"message": message}

	var wf Workflow
	if err := c.do(ctx, "POST", "/sites/"+site+"/environments/"+env+"/commit", body, &wf); err != nil {
		return nil, fmt.Errorf("failed to commit changes on %s.%s: %w", site, env, err)
	}
	return &wf, nil
}

// LatestWorkflow returns the most recent workflow for an environment, or nil
// when the environment has none yet.
func (c *Client) LatestWorkflow(ctx context.Context, site, env string) (*Workflow, error) {
	var workflows []Workflow
	if err := c.do(ctx, "GET", "/sites/"+site+"/environments/"+env+"/workflows?limit=1", nil, &workflows); err != nil {
		return nil, fmt.Errorf("failed to fetch workflows for %s.%s: %w", site, env, err)
	}
	if len(workflows) == 0 {
		return nil, nil
	}
	return &workflows[0], nil
}

// do performs one API round trip. A non-2xx status, or a 2xx body carrying
// an errors/message field, is surfaced as an error naming the service.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.session)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse("pantheon", resp, out)
}
