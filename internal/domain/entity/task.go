package entity

import (
	"fmt"
	"regexp"
	"strings"

	"sitebuilder/internal/domain/apperr"
)

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TaskRequest is the body of POST /task.
type TaskRequest struct {
	Email         string       `json:"email"`
	Secret        string       `json:"secret"`
	Task          string       `json:"task"`
	Round         int          `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	Checks        []string     `json:"checks"`
	EvaluationURL string       `json:"evaluation_url"`
	Attachments   []Attachment `json:"attachments"`
}

// TaskResult is returned once a round has been pushed.
type TaskResult struct {
	Status    string `json:"status"`
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// The task id becomes both a directory name and a GitHub repository name.
var taskNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)

// RepoName trims the task id and checks it is usable as a path segment and
// a repository name.
func (r TaskRequest) RepoName() (string, error) {
	name := strings.TrimSpace(r.Task)
	if name == "" {
		return "", apperr.New(apperr.KindValidation, "task", "empty task/repo name")
	}
	if !taskNamePattern.MatchString(name) || strings.HasPrefix(name, ".") {
		return "", apperr.Newf(apperr.KindValidation, "task", "invalid task/repo name %q", name)
	}
	return name, nil
}

// Validate checks the fields that do not depend on the task name.
func (r TaskRequest) Validate() error {
	if r.Round < 1 {
		return apperr.Newf(apperr.KindValidation, "round", "round must be >= 1, got %d", r.Round)
	}
	return nil
}

func RepoURL(host, user, name string) string {
	return fmt.Sprintf("https://%s/%s/%s", host, user, name)
}

func PagesURL(user, name string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", user, name)
}
