package pantheon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient("test-session")
	client.baseURL = server.URL
	return client, server
}

func TestListEnvironmentsSortsOldestFirst(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/my-site/environments", r.URL.Path)
		assert.Equal(t, "Bearer test-session", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]Environment{
			"ci-2": {Created: 300},
			"dev":  {Created: 100},
			"ci-1": {Created: 200},
		})
	}))
	defer server.Close()

	envs, err := client.ListEnvironments(context.Background(), "my-site")
	require.NoError(t, err)

	ids := []string{}
	for _, e := range envs {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"dev", "ci-1", "ci-2"}, ids)
}

func TestEnvironmentExists(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]Environment{
			"dev": {Created: 100},
		})
	}))
	defer server.Close()

	exists, err := client.EnvironmentExists(context.Background(), "my-site", "dev")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.EnvironmentExists(context.Background(), "my-site", "ci-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateSiteReturnsWorkflow(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/sites", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "my-site", body["site_name"])
		assert.Equal(t, "wordpress", body["upstream_id"])

		json.NewEncoder(w).Encode(Workflow{ID: "wf-1", Description: "Create site", CreatedAt: 100})
	}))
	defer server.Close()

	wf, err := client.CreateSite(context.Background(), "my-site", "My Site", "wordpress", "")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", wf.ID)
}

func TestDeleteEnvironmentPassesDeleteBranch(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/sites/my-site/environments/ci-1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("delete_branch"))

		json.NewEncoder(w).Encode(Workflow{ID: "wf-2", Description: "Deleted Multidev environment \"ci-1\""})
	}))
	defer server.Close()

	wf, err := client.DeleteEnvironment(context.Background(), "my-site", "ci-1", true)
	require.NoError(t, err)
	assert.Equal(t, "wf-2", wf.ID)
}

func TestErrorStatusSurfacesMessage(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "site name already taken"})
	}))
	defer server.Close()

	_, err := client.CreateSite(context.Background(), "my-site", "My Site", "wordpress", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pantheon")
	assert.Contains(t, err.Error(), "site name already taken")
}

func TestErrorsFieldInOKBodyIsAnError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []string{"quota exceeded", "too many multidevs"},
		})
	}))
	defer server.Close()

	_, err := client.CreateEnvironment(context.Background(), "my-site", "ci-9", "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded; too many multidevs")
}

func TestLatestWorkflowEmpty(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Workflow{})
	}))
	defer server.Close()

	wf, err := client.LatestWorkflow(context.Background(), "my-site", "dev")
	require.NoError(t, err)
	assert.Nil(t, wf)
}

func TestGitURL(t *testing.T) {
	assert.Equal(t,
		"ssh://codeserver.dev.abc123@codeserver.dev.abc123.drush.in:2222/~/repository.git",
		GitURL("abc123"))
}

func TestSFTPHost(t *testing.T) {
	assert.Equal(t, "ci-1.abc123@appserver.ci-1.abc123.drush.in", SFTPHost("abc123", "ci-1"))
}
