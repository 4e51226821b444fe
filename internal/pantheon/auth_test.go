package pantheon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon-tools/buildflow/internal/cache"
)

func newTestAuthenticator(t *testing.T, handler http.Handler) (*Authenticator, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	fileCache, err := cache.NewFileCacheWithDir(t.TempDir())
	require.NoError(t, err)

	auth := NewAuthenticator(fileCache)
	auth.baseURL = server.URL
	return auth, server
}

func TestSessionTokenExchangesMachineToken(t *testing.T) {
	var exchanges int
	auth, server := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		assert.Equal(t, "/authorize/machine-token", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "machine-token-1", body["machine_token"])

		json.NewEncoder(w).Encode(Session{
			Token:     "session-1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer server.Close()

	token, err := auth.SessionToken(context.Background(), "machine-token-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", token)

	// Second call is served from the cache.
	token, err = auth.SessionToken(context.Background(), "machine-token-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", token)
	assert.Equal(t, 1, exchanges)
}

func TestSessionTokenReauthenticatesWhenExpired(t *testing.T) {
	var exchanges int
	auth, server := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		json.NewEncoder(w).Encode(Session{
			Token: "session-short",
			// Already inside the expiry grace window.
			ExpiresAt: time.Now().Add(time.Second).Unix(),
		})
	}))
	defer server.Close()

	for i := 0; i < 2; i++ {
		token, err := auth.SessionToken(context.Background(), "machine-token-1")
		require.NoError(t, err)
		assert.Equal(t, "session-short", token)
	}
	assert.Equal(t, 2, exchanges)
}

func TestSessionTokenAuthFailure(t *testing.T) {
	auth, server := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "machine token revoked"})
	}))
	defer server.Close()

	_, err := auth.SessionToken(context.Background(), "revoked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "machine token revoked")
}
