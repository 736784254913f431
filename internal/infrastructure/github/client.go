package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/repository"
	"sitebuilder/internal/infrastructure/metrics"
)

const apiVersion = "2022-11-28"

// Client is a minimal GitHub REST client for repository creation and
// Pages configuration.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

var _ repository.HostingAPI = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type createRepoReq struct {
	Name     string `json:"name"`
	Private  bool   `json:"private"`
	AutoInit bool   `json:"auto_init"`
}

type pagesReq struct {
	BuildType string `json:"build_type"`
}

// CreateRepo creates a public repository without an initial commit.
// 201 (created) and 422 (already exists) both count as success.
func (c *Client) CreateRepo(ctx context.Context, name string) error {
	status, body, err := c.do(ctx, "create_repo", http.MethodPost, "/user/repos", createRepoReq{Name: name})
	if err != nil {
		return err
	}
	switch status {
	case http.StatusCreated:
		c.logger.Info("github repo created", "repo", name)
		return nil
	case http.StatusUnprocessableEntity:
		c.logger.Debug("github repo already exists", "repo", name)
		return nil
	default:
		metrics.IncError("github", "create_repo")
		return apperr.Newf(apperr.KindTransport, "github create repo", "GitHub repo create failed (%d)", status).WithDetail(body)
	}
}

// EnablePages makes sure Pages builds from the Actions workflow. It works
// whether Pages has been configured before or not.
func (c *Client) EnablePages(ctx context.Context, owner, name string) error {
	path := fmt.Sprintf("/repos/%s/%s/pages", owner, name)
	workflow := pagesReq{BuildType: "workflow"}

	status, body, err := c.do(ctx, "get_pages", http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusNotFound:
		status, body, err = c.do(ctx, "create_pages", http.MethodPost, path, workflow)
		if err != nil {
			return err
		}
		if status != http.StatusCreated && status != http.StatusAccepted {
			metrics.IncError("github", "create_pages")
			return apperr.Newf(apperr.KindTransport, "github enable pages", "Enable Pages failed (create): %d", status).WithDetail(body)
		}
		c.logger.Info("github pages created", "repo", name, "build_type", workflow.BuildType)
		return nil
	case http.StatusOK:
		status, body, err = c.do(ctx, "update_pages", http.MethodPut, path, workflow)
		if err != nil {
			return err
		}
		if status != http.StatusOK && status != http.StatusNoContent {
			metrics.IncError("github", "update_pages")
			return apperr.Newf(apperr.KindTransport, "github enable pages", "Enable Pages failed (update): %d", status).WithDetail(body)
		}
		c.logger.Debug("github pages updated", "repo", name, "build_type", workflow.BuildType)
		return nil
	default:
		metrics.IncError("github", "get_pages")
		return apperr.Newf(apperr.KindTransport, "github enable pages", "Pages status check failed: %d", status).WithDetail(body)
	}
}

// do sends one API request and returns the status code and body. Only
// failures to talk to the API at all are returned as errors.
func (c *Client) do(ctx context.Context, op, method, path string, payload interface{}) (int, string, error) {
	if c.token == "" {
		metrics.IncError("github", "config_missing")
		return 0, "", apperr.New(apperr.KindConfiguration, "github", "Missing required environment variable: GITHUB_TOKEN")
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			metrics.IncError("github", "marshal_request")
			return 0, "", fmt.Errorf("marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		metrics.IncError("github", "create_request")
		return 0, "", apperr.Wrap(apperr.KindConfiguration, "github", fmt.Errorf("create %s request: %w", op, err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.IncError("github", "http_do")
		return 0, "", apperr.Wrap(apperr.KindTransport, "github "+op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("close github response body", "err", err)
		}
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	metrics.IncGitHubCall(op, strconv.Itoa(resp.StatusCode))
	return resp.StatusCode, string(body), nil
}
