package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Runner executes external commands (git, rsync). Implementations must never
// pass arguments through a shell; every argument is handed to the process
// verbatim.
type Runner interface {
	// Run executes the command and returns an error on non-zero exit.
	Run(ctx context.Context, cmd Command) error

	// Output executes the command and returns its standard output.
	Output(ctx context.Context, cmd Command) (string, error)
}

// Command describes a single subprocess invocation.
type Command struct {
	Name string   // program to run, e.g. "git"
	Args []string // arguments, passed verbatim
	Dir  string   // working directory, empty for the current one
	Env  []string // extra KEY=VALUE entries appended to the environment

	// Secrets holds values (tokens, token-bearing URLs) that must never
	// appear in logs or error messages. They are replaced with [REDACTED]
	// before the command line or its output is surfaced anywhere.
	Secrets []string
}

// Redacted returns the command line with all secret values masked.
func (c Command) Redacted() string {
	line := c.Name
	if len(c.Args) > 0 {
		line += " " + strings.Join(c.Args, " ")
	}
	return c.redact(line)
}

func (c Command) redact(s string) string {
	for _, secret := range c.Secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
	}
	return s
}

// ExecRunner runs commands as real subprocesses.
type ExecRunner struct {
	log *zap.SugaredLogger
}

func NewExecRunner(log *zap.SugaredLogger) *ExecRunner {
	return &ExecRunner{log: log}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	_, err := r.exec(ctx, cmd)
	return err
}

func (r *ExecRunner) Output(ctx context.Context, cmd Command) (string, error) {
	out, err := r.exec(ctx, cmd)
	return out, err
}

func (r *ExecRunner) exec(ctx context.Context, cmd Command) (string, error) {
	r.log.Debugw("running command", "cmd", cmd.Redacted(), "dir", cmd.Dir)

	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), cmd.Env...)
	}

	out, err := proc.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("command %q failed with exit code %d: %s",
				cmd.Redacted(), exitErr.ExitCode(), cmd.redact(strings.TrimSpace(string(out))))
		}
		return "", fmt.Errorf("command %q failed to start: %w", cmd.Redacted(), err)
	}

	return string(out), nil
}
