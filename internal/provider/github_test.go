package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointGitHubAt redirects the go-github client at a test server.
func pointGitHubAt(t *testing.T, g *GitHub, server *httptest.Server) {
	t.Helper()
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	g.client.BaseURL = base
}

func TestGitHubBranchesForOpenPullRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/test-org/test-repo/pulls", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("state"))

		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"number": 1, "head": map[string]string{"ref": "feature-a"}},
			{"number": 2, "head": map[string]string{"ref": "feature-b"}},
		})
	}))
	defer server.Close()

	g := NewGitHub("test-token", nil)
	pointGitHubAt(t, g, server)

	branches, err := g.BranchesForOpenPullRequests(context.Background(), "test-org", "test-repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"feature-a", "feature-b"}, branches)
}

func TestGitHubCreateRepositoryInOrg(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			json.NewEncoder(w).Encode(map[string]string{"login": "someone-else"})
		case "/orgs/test-org/repos":
			assert.Equal(t, "POST", r.Method)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "new-site", body["name"])
			assert.Equal(t, true, body["private"])

			json.NewEncoder(w).Encode(map[string]string{
				"clone_url": "https://github.com/test-org/new-site.git",
			})
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer server.Close()

	g := NewGitHub("test-token", nil)
	pointGitHubAt(t, g, server)

	cloneURL, err := g.CreateRepository(context.Background(), "test-org", "new-site")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/test-org/new-site.git", cloneURL)
}

func TestGitHubCreateRepositoryForUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			json.NewEncoder(w).Encode(map[string]string{"login": "me"})
		case "/user/repos":
			json.NewEncoder(w).Encode(map[string]string{
				"clone_url": "https://github.com/me/new-site.git",
			})
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer server.Close()

	g := NewGitHub("test-token", nil)
	pointGitHubAt(t, g, server)

	cloneURL, err := g.CreateRepository(context.Background(), "me", "new-site")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/me/new-site.git", cloneURL)
}

func TestGitHubCredentialEnvVars(t *testing.T) {
	g := NewGitHub("test-token", nil)
	assert.Equal(t, map[string]string{"GITHUB_TOKEN": "test-token"}, g.CredentialEnvVars())
}

func TestForName(t *testing.T) {
	creds := Credentials{
		GitHubToken:          "gh",
		GitLabToken:          "gl",
		BitbucketUser:        "u",
		BitbucketAppPassword: "p",
	}

	for name, want := range map[string]string{
		"github":    "github",
		"":          "github",
		"gitlab":    "gitlab",
		"bitbucket": "bitbucket",
	} {
		p, err := ForName(name, creds, nil)
		require.NoError(t, err)
		assert.Equal(t, want, p.Name())
	}

	_, err := ForName("sourcehut", creds, nil)
	require.Error(t, err)

	_, err = ForName("github", Credentials{}, nil)
	require.Error(t, err)
}
