package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/repository"
)

const (
	DefaultBranch = "main"
	RemoteName    = "origin"
)

// Synchronizer makes sure the remote repository exists and the local
// working copy tracks it, so rounds can be replayed without the caller
// knowing whether the remote already had history.
type Synchronizer struct {
	git     Runner
	hosting repository.HostingAPI
	user    string
	token   string
	host    string
	logger  *slog.Logger
}

func NewSynchronizer(git Runner, hosting repository.HostingAPI, user, token, host string, logger *slog.Logger) *Synchronizer {
	if host == "" {
		host = "github.com"
	}
	return &Synchronizer{git: git, hosting: hosting, user: user, token: token, host: host, logger: logger}
}

// RemoteURL is the authenticated push URL for name.
func (s *Synchronizer) RemoteURL(name string) string {
	return fmt.Sprintf("https://%s:%s@%s/%s/%s.git", s.user, s.token, s.host, s.user, name)
}

// Ensure creates the remote repository if needed, initialises dir as a
// git working copy on first use, points origin at the authenticated URL
// and resets main to origin/main when the remote has history.
func (s *Synchronizer) Ensure(ctx context.Context, name, dir string) error {
	if s.user == "" {
		return apperr.New(apperr.KindConfiguration, "repo sync", "Missing required environment variable: GITHUB_USER")
	}
	if s.token == "" {
		return apperr.New(apperr.KindConfiguration, "repo sync", "Missing required environment variable: GITHUB_TOKEN")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create working dir %s: %w", dir, err)
	}

	if err := s.hosting.CreateRepo(ctx, name); err != nil {
		return fmt.Errorf("ensure remote repo: %w", err)
	}

	if err := s.ensureLocalRepo(ctx, dir); err != nil {
		return err
	}
	if err := s.ensureOrigin(ctx, dir, name); err != nil {
		return err
	}
	return s.checkoutMain(ctx, dir)
}

func (s *Synchronizer) ensureLocalRepo(ctx context.Context, dir string) error {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat .git: %w", err)
	}

	s.logger.Info("initialising working copy", "dir", dir)
	steps := [][]string{
		{"init", "-b", DefaultBranch},
		{"config", "user.name", s.user},
		{"config", "user.email", fmt.Sprintf("%s@users.noreply.%s", s.user, s.host)},
	}
	for _, args := range steps {
		if _, err := s.git.Run(ctx, dir, args...); err != nil {
			return err
		}
	}
	return nil
}

// ensureOrigin replaces origin when it points anywhere other than the
// current authenticated URL; tokens rotate.
func (s *Synchronizer) ensureOrigin(ctx context.Context, dir, name string) error {
	want := s.RemoteURL(name)

	remotes, err := s.git.Run(ctx, dir, "remote")
	if err != nil {
		return err
	}
	if !containsLine(remotes, RemoteName) {
		_, err := s.git.Run(ctx, dir, "remote", "add", RemoteName, want)
		return err
	}

	current, err := s.git.Run(ctx, dir, "remote", "get-url", RemoteName)
	if err != nil {
		current = ""
	}
	if current == want {
		return nil
	}

	s.logger.Info("replacing stale origin remote", "dir", dir)
	if _, err := s.git.Run(ctx, dir, "remote", "remove", RemoteName); err != nil {
		return err
	}
	_, err = s.git.Run(ctx, dir, "remote", "add", RemoteName, want)
	return err
}

// checkoutMain resets main to origin/main when the remote has history,
// dropping an interrupted rebase and local edits left by a failed round.
func (s *Synchronizer) checkoutMain(ctx context.Context, dir string) error {
	if rebaseInProgress(dir) {
		s.logger.Warn("aborting leftover rebase", "dir", dir)
		if _, err := s.git.Run(ctx, dir, "rebase", "--abort"); err != nil {
			return err
		}
	}

	// An empty remote has no main yet; that is the first-publish case.
	if _, err := s.git.Run(ctx, dir, "fetch", RemoteName, DefaultBranch); err != nil {
		s.logger.Debug("fetch origin main failed, assuming empty remote", "dir", dir, "err", err)
	}

	remoteRef := "refs/remotes/" + RemoteName + "/" + DefaultBranch
	if _, err := s.git.Run(ctx, dir, "rev-parse", "--verify", "--quiet", remoteRef); err == nil {
		_, err := s.git.Run(ctx, dir, "checkout", "-f", "-B", DefaultBranch, RemoteName+"/"+DefaultBranch)
		return err
	}
	_, err := s.git.Run(ctx, dir, "checkout", "-B", DefaultBranch)
	return err
}

func rebaseInProgress(dir string) bool {
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(dir, ".git", name)); err == nil {
			return true
		}
	}
	return false
}

func containsLine(out, want string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}
