package pantheon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	pollInterval    = 5 * time.Second
	codeSyncMaxWait = 60 * time.Second
)

// Poller blocks until an asynchronous platform workflow reaches a terminal
// state. All waiting is sequential polling with a fixed interval; the only
// way to abort early is cancelling the context.
type Poller struct {
	client   *Client
	log      *zap.SugaredLogger
	interval time.Duration
}

func NewPoller(client *Client, log *zap.SugaredLogger) *Poller {
	return &Poller{client: client, log: log, interval: pollInterval}
}

// WaitForWorkflow polls the latest workflow on site/env until one created
// after start, whose description equals expected, finishes. A failed
// workflow is an error carrying the platform message.
//
// When maxWait is positive and elapses without a matching workflow ever
// being observed, WaitForWorkflow returns nil: the workflow may have
// finished before polling began, and the caller cannot tell that apart from
// one that never started. The budget runs from the first poll, not from
// start, and a workflow seen running is always polled to its terminal
// state. A non-positive maxWait polls until the workflow finishes or ctx
// is cancelled.
func (p *Poller) WaitForWorkflow(ctx context.Context, site, env, expected string, start time.Time, maxWait time.Duration) error {
	began := time.Now()
	observed := false
	for {
		wf, err := p.client.LatestWorkflow(ctx, site, env)
		if err != nil {
			return err
		}

		if wf != nil && wf.StartedAfter(start) && wf.Description == expected {
			if wf.Finished() {
				if !wf.Succeeded() {
					return fmt.Errorf("workflow %q on %s.%s failed: %s", expected, site, env, wf.Message)
				}
				p.log.Infow("workflow finished", "workflow", expected, "site", site, "env", env)
				return nil
			}
			observed = true
			p.log.Infow("workflow still running", "workflow", expected, "site", site, "env", env)
		} else {
			p.log.Infow("waiting for workflow to start", "workflow", expected, "site", site, "env", env)
		}

		if !observed && maxWait > 0 && time.Since(began) >= maxWait {
			p.log.Warnw("gave up waiting for workflow", "workflow", expected, "site", site, "env", env, "waited", maxWait)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// WaitForCodeSync waits for the code-sync workflow a git push triggers on an
// environment. Sync workflows are quick; waiting is capped at a minute.
func (p *Poller) WaitForCodeSync(ctx context.Context, site, env string, start time.Time) error {
	expected := fmt.Sprintf("Sync code on \"%s\"", env)
	return p.WaitForWorkflow(ctx, site, env, expected, start, codeSyncMaxWait)
}
