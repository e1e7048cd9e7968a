package actions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ghAPI "github.com/cli/go-gh/v2/pkg/api"
)

// RequestTimeout bounds each GitHub API call.
const RequestTimeout = 30 * time.Second

// maxLogBytes caps a downloaded job log; the tail end is what matters.
const maxLogBytes = 8 << 20

// REST is the part of go-gh's RESTClient used here.
type REST interface {
	DoWithContext(ctx context.Context, method, path string, body io.Reader, response interface{}) error
	RequestWithContext(ctx context.Context, method, path string, body io.Reader) (*http.Response, error)
}

// Client talks to the Actions API of one repository.
type Client struct {
	rest  REST
	owner string
	repo  string
}

// ParseRepo splits "owner/repo".
func ParseRepo(nwo string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(nwo), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository %q: expected owner/repo", nwo)
	}
	return owner, repo, nil
}

// NewClient builds a client for nwo. With an empty token the gh CLI's
// stored credentials are used.
func NewClient(nwo, token string) (*Client, error) {
	owner, repo, err := ParseRepo(nwo)
	if err != nil {
		return nil, err
	}

	var rest *ghAPI.RESTClient
	if token != "" {
		rest, err = ghAPI.NewRESTClient(ghAPI.ClientOptions{AuthToken: token, Timeout: RequestTimeout})
	} else {
		rest, err = ghAPI.DefaultRESTClient()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client (set GITHUB_TOKEN or run 'gh auth login'): %w", err)
	}
	return NewClientWithREST(rest, owner, repo), nil
}

// NewClientWithREST wraps an existing REST client.
func NewClientWithREST(rest REST, owner, repo string) *Client {
	return &Client{rest: rest, owner: owner, repo: repo}
}

// Repo returns "owner/repo".
func (c *Client) Repo() string {
	return c.owner + "/" + c.repo
}

func (c *Client) repoPath(path string) string {
	return fmt.Sprintf("repos/%s/%s/%s", c.owner, c.repo, path)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	return c.rest.DoWithContext(ctx, http.MethodGet, path, nil, out)
}

// CheckToken verifies the credentials and returns the user's login.
func (c *Client) CheckToken(ctx context.Context) (string, error) {
	var u userResponse
	if err := c.get(ctx, "user", &u); err != nil {
		return "", fmt.Errorf("GitHub token is invalid or expired: %w", err)
	}
	return u.Login, nil
}

// FailedRuns lists the most recent failed runs, newest first.
func (c *Client) FailedRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{}
	q.Set("status", ConclusionFailure)
	q.Set("per_page", fmt.Sprintf("%d", limit))

	var resp runsResponse
	if err := c.get(ctx, c.repoPath("actions/runs?"+q.Encode()), &resp); err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	return resp.Runs, nil
}

// GetRun fetches one run.
func (c *Client) GetRun(ctx context.Context, runID int64) (Run, error) {
	var run Run
	if err := c.get(ctx, c.repoPath(fmt.Sprintf("actions/runs/%d", runID)), &run); err != nil {
		var httpErr *ghAPI.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return Run{}, fmt.Errorf("workflow run %d not found in %s", runID, c.Repo())
		}
		return Run{}, fmt.Errorf("failed to get workflow run %d: %w", runID, err)
	}
	return run, nil
}

// Jobs lists the jobs of the latest attempt of a run.
func (c *Client) Jobs(ctx context.Context, runID int64) ([]Job, error) {
	var resp jobsResponse
	path := c.repoPath(fmt.Sprintf("actions/runs/%d/jobs?filter=latest&per_page=100", runID))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to list jobs for run %d: %w", runID, err)
	}
	return resp.Jobs, nil
}

// JobLogs downloads the plain-text log of a job. GitHub answers with a
// redirect to short-lived storage, which the HTTP client follows.
func (c *Client) JobLogs(ctx context.Context, jobID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	resp, err := c.rest.RequestWithContext(ctx, http.MethodGet, c.repoPath(fmt.Sprintf("actions/jobs/%d/logs", jobID)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to download logs for job %d: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d downloading logs for job %d", resp.StatusCode, jobID)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLogBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read logs for job %d: %w", jobID, err)
	}
	return string(body), nil
}

// WorkflowFile returns the content of a file in the repository at ref
// (the default branch when ref is empty).
func (c *Client) WorkflowFile(ctx context.Context, path, ref string) (string, error) {
	p := c.repoPath("contents/" + strings.TrimPrefix(path, "/"))
	if ref != "" {
		p += "?ref=" + url.QueryEscape(ref)
	}

	var content contentResponse
	if err := c.get(ctx, p, &content); err != nil {
		return "", fmt.Errorf("failed to get %s: %w", path, err)
	}
	if content.Encoding != "" && content.Encoding != "base64" {
		return content.Content, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return string(data), nil
}
