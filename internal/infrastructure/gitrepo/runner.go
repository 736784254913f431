// Package gitrepo keeps a task's local working copy in sync with its
// GitHub repository and publishes new commits to it.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/infrastructure/metrics"
)

// maxOutputLen bounds captured git output kept in error details.
const maxOutputLen = 4096

// Runner runs one git subcommand in dir and returns its trimmed stdout.
// A non-zero exit is an apperr.KindLocalTool error carrying the output.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner shells out to the git binary with a bounded wait per command.
type ExecRunner struct {
	bin     string
	timeout time.Duration
	secrets []string
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner builds a runner. Every string in secrets is masked in
// returned errors, since remote URLs embed the access token.
func NewExecRunner(bin string, timeout time.Duration, secrets ...string) *ExecRunner {
	if bin == "" {
		bin = "git"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	var nonEmpty []string
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return &ExecRunner{bin: bin, timeout: timeout, secrets: nonEmpty}
}

func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, r.bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	sub := subcommand(args)
	err := cmd.Run()
	if err != nil {
		metrics.IncGitCommand(sub, "fail")
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.timeout, err)
		}
		op := r.redact("git " + strings.Join(args, " "))
		detail := r.redact(truncate(strings.TrimSpace(stdout.String()+"\n"+stderr.String()), maxOutputLen))
		return strings.TrimSpace(stdout.String()), apperr.Newf(apperr.KindLocalTool, op, "command failed: %s", r.redact(err.Error())).WithDetail(detail)
	}
	metrics.IncGitCommand(sub, "ok")
	return strings.TrimSpace(stdout.String()), nil
}

func (r *ExecRunner) redact(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, "***")
	}
	return s
}

func subcommand(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
