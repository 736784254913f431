package gitrepo

import (
	"context"
	"fmt"
	"log/slog"

	"sitebuilder/internal/infrastructure/metrics"
)

const CommitMessage = "auto: update"

// Publisher commits everything in the working copy and pushes main.
type Publisher struct {
	git    Runner
	logger *slog.Logger
}

func NewPublisher(git Runner, logger *slog.Logger) *Publisher {
	return &Publisher{git: git, logger: logger}
}

// Publish stages all changes, commits (empty commits allowed so every
// round leaves a trace) and pushes. A rejected push gets exactly one
// pull --rebase and a second push; a second rejection is returned. A
// failed rebase is aborted so the working copy is never left mid-rebase.
// It returns the commit id of the local main tip.
func (p *Publisher) Publish(ctx context.Context, dir string) (string, error) {
	if _, err := p.git.Run(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := p.git.Run(ctx, dir, "commit", "-m", CommitMessage, "--allow-empty"); err != nil {
		return "", err
	}

	if _, err := p.push(ctx, dir); err != nil {
		p.logger.Warn("push rejected, rebasing onto origin", "dir", dir, "err", err)
		metrics.IncPushRetry()
		if _, err := p.git.Run(ctx, dir, "pull", "--rebase", RemoteName, DefaultBranch); err != nil {
			p.logger.Warn("pull --rebase failed", "dir", dir, "err", err)
			// A conflicting rebase must not outlive this round.
			if _, abortErr := p.git.Run(ctx, dir, "rebase", "--abort"); abortErr != nil {
				p.logger.Debug("rebase --abort failed", "dir", dir, "err", abortErr)
			}
		}
		if _, err := p.push(ctx, dir); err != nil {
			return "", fmt.Errorf("push after rebase: %w", err)
		}
	}

	sha, err := p.git.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return sha, nil
}

func (p *Publisher) push(ctx context.Context, dir string) (string, error) {
	return p.git.Run(ctx, dir, "push", "-u", RemoteName, DefaultBranch)
}
