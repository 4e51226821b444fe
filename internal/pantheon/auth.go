package pantheon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pantheon-tools/buildflow/internal/cache"
)

// Authenticator exchanges a long-lived machine token for a short-lived API
// session. Sessions are cached on disk so repeated command invocations do
// not re-authenticate.
type Authenticator struct {
	httpClient *http.Client
	baseURL    string
	cache      cache.Cache
	kb         *cache.KeyBuilder
}

func NewAuthenticator(cacheImpl cache.Cache) *Authenticator {
	return &Authenticator{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    apiBaseURL,
		cache:      cacheImpl,
		kb:         cache.NewKeyBuilder("pantheon"),
	}
}

// SessionToken returns a valid session token for the machine token,
// exchanging it with the API only on cache miss or expiry.
func (a *Authenticator) SessionToken(ctx context.Context, machineToken string) (string, error) {
	host := a.cacheHost()
	key := a.kb.SessionKey(host, machineToken)

	var cached Session
	if err := a.cache.Get(key, &cached); err == nil && !cached.Expired() {
		return cached.Token, nil
	}

	session, err := a.exchange(ctx, machineToken)
	if err != nil {
		return "", err
	}

	ttl := time.Until(time.Unix(session.ExpiresAt, 0))
	if ttl > 0 {
		// A failed cache write only costs a re-authentication next run.
		_ = a.cache.Set(key, session, ttl)
	}
	return session.Token, nil
}

func (a *Authenticator) exchange(ctx context.Context, machineToken string) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"machine_token": machineToken,
		"client":        "buildflow",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/authorize/machine-token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	defer resp.Body.Close()

	var session Session
	if err := decodeResponse("pantheon", resp, &session); err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, fmt.Errorf("pantheon: authentication response carried no session token")
	}
	return &session, nil
}

func (a *Authenticator) cacheHost() string {
	if u, err := url.Parse(a.baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return a.baseURL
}
