package pantheon

import (
	"fmt"
	"time"
)

// Site represents a hosted site on the platform.
type Site struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Created int64  `json:"created"`
}

// Environment is one deployment environment of a site. The fixed
// environments are dev, test and live; everything else is an ephemeral
// multidev created from a branch.
type Environment struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
}

// Ephemeral reports whether the environment is a deletable multidev rather
// than one of the fixed dev/test/live environments.
func (e Environment) Ephemeral() bool {
	switch e.ID {
	case "dev", "test", "live":
		return false
	}
	return true
}

// Workflow is an asynchronous platform operation (deploy, environment
// creation or deletion, connection-mode change, code sync).
type Workflow struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Result      string `json:"result"` // "succeeded", "failed", empty while running
	Message     string `json:"message"`
	CreatedAt   int64  `json:"created_at"`
}

// Finished reports whether the workflow reached a terminal state, success or
// failure.
func (w *Workflow) Finished() bool {
	return w.Result != ""
}

// Succeeded reports whether the workflow finished successfully.
func (w *Workflow) Succeeded() bool {
	return w.Result == "succeeded"
}

// StartedAfter reports whether the workflow was created after t.
func (w *Workflow) StartedAfter(t time.Time) bool {
	return w.CreatedAt > t.Unix()
}

// Session is a short-lived API session obtained from a machine token.
type Session struct {
	Token     string `json:"session"`
	ExpiresAt int64  `json:"expires_at"`
}

// Expired reports whether the session is past (or within a minute of) its
// expiry and needs to be re-established.
func (s *Session) Expired() bool {
	return time.Now().Add(time.Minute).Unix() >= s.ExpiresAt
}

// GitURL returns the site's code-server git remote.
func GitURL(siteID string) string {
	return fmt.Sprintf("ssh://codeserver.dev.%s@codeserver.dev.%s.drush.in:2222/~/repository.git", siteID, siteID)
}

// SFTPHost returns the rsync/sftp endpoint for an environment's application
// server.
func SFTPHost(siteID, env string) string {
	return fmt.Sprintf("%s.%s@appserver.%s.%s.drush.in", env, siteID, env, siteID)
}
