// Package jira is a small Jira Cloud REST v3 client covering the calls the
// sync needs: user lookup, issue creation and workflow transitions.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	timeout     = 30 * time.Second
	maxRetries  = 3
	retryDelay  = 3 * time.Second
	maxBodySize = 1 << 20
)

// APIError is returned when Jira answers with an unexpected status code.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// User is a Jira account as returned by the user search endpoint.
type User struct {
	AccountID    string `json:"accountId"`
	AccountType  string `json:"accountType"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

// IssueRequest describes an issue to create.
type IssueRequest struct {
	ProjectKey string
	Summary    string
	IssueType  string
	// AccountID is the assignee; empty leaves the issue unassigned.
	AccountID string
	// Fields are extra issue fields keyed by Jira field id.
	Fields map[string]any
}

// Issue identifies a created issue.
type Issue struct {
	ID  string
	Key string
	URL string
}

// Client talks to one Jira Cloud site.
type Client struct {
	subdomain string
	baseURL   string
	token     string
	email     string
	http      *http.Client
	logger    *slog.Logger
	sleep     func(time.Duration)
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithEmail switches to basic auth with email:token instead of a
// pre-encoded token.
func WithEmail(email string) Option {
	return func(c *Client) { c.email = email }
}

// WithLogger sets the logger used for retries and request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for https://<subdomain>.atlassian.net. The token is
// sent as a Basic credential unless WithEmail is given.
func New(subdomain, token string, opts ...Option) *Client {
	c := &Client{
		subdomain: subdomain,
		baseURL:   SiteURL(subdomain),
		token:     token,
		http:      &http.Client{Timeout: timeout},
		logger:    slog.Default(),
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SiteURL returns the root URL of a Jira Cloud site.
func SiteURL(subdomain string) string {
	return fmt.Sprintf("https://%s.atlassian.net", subdomain)
}

// IssueURL returns the browse URL of an issue.
func IssueURL(subdomain, key string) string {
	return fmt.Sprintf("%s/browse/%s", SiteURL(subdomain), key)
}

// browsePatterns caches the compiled browse URL pattern of each subdomain.
var browsePatterns sync.Map

func browsePattern(subdomain string) *regexp.Regexp {
	if re, ok := browsePatterns.Load(subdomain); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`^https?://` + regexp.QuoteMeta(subdomain) + `\.atlassian\.net/browse/([^/\s?#]+)/?(?:[?#]\S*)?$`)
	actual, _ := browsePatterns.LoadOrStore(subdomain, re)
	return actual.(*regexp.Regexp)
}

// IssueKeyFromURL extracts the issue key from a browse URL of the given
// site. A trailing slash, a query or a fragment is ignored. It reports
// false for URLs of any other shape.
func IssueKeyFromURL(subdomain, u string) (string, bool) {
	m := browsePattern(subdomain).FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SearchUserByEmail returns the first account matching email.
// The lookup is idempotent and retried on transport failures.
func (c *Client) SearchUserByEmail(ctx context.Context, email string) (User, error) {
	q := url.Values{}
	q.Set("query", email)
	path := "/rest/api/3/user/search?" + q.Encode()

	var users []User
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		users = nil
		err = c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &users)
		if err == nil {
			break
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return User{}, err
		}
		c.logger.Warn("jira user search failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if attempt < maxRetries {
			c.sleep(retryDelay)
		}
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to search user %q: %w", email, err)
	}

	if len(users) == 0 {
		return User{}, fmt.Errorf("user not found for email address %q", email)
	}
	return users[0], nil
}

// CreateIssue creates an issue and returns its key and browse URL.
func (c *Client) CreateIssue(ctx context.Context, req IssueRequest) (Issue, error) {
	fields := map[string]any{
		"project":   map[string]string{"key": req.ProjectKey},
		"issuetype": map[string]string{"name": req.IssueType},
		"summary":   req.Summary,
		"priority":  map[string]string{"id": "3"},
		"labels":    []string{},
	}
	if req.AccountID != "" {
		fields["assignee"] = map[string]string{"accountId": req.AccountID}
	}
	for k, v := range req.Fields {
		fields[k] = v
	}

	var resp struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", map[string]any{"fields": fields}, http.StatusCreated, &resp); err != nil {
		return Issue{}, fmt.Errorf("failed to create issue: %w", err)
	}
	if resp.Key == "" {
		return Issue{}, fmt.Errorf("failed to create issue: response carries no issue key")
	}

	return Issue{
		ID:  resp.ID,
		Key: resp.Key,
		URL: IssueURL(c.subdomain, resp.Key),
	}, nil
}

// TransitionIssue applies one workflow transition to an issue.
func (c *Client) TransitionIssue(ctx context.Context, key string, transitionID int) error {
	body := map[string]any{
		"transition": map[string]string{"id": strconv.Itoa(transitionID)},
	}
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/transitions"
	if err := c.do(ctx, http.MethodPost, path, body, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("failed to transition issue %s with %d: %w", key, transitionID, err)
	}
	return nil
}

func (c *Client) authorization() string {
	if c.email == "" {
		return "Basic " + c.token
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.email+":"+c.token))
}

// do sends one request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("jira request", slog.String("method", method), slog.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", slog.Any("error", err))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return err
	}

	if resp.StatusCode != want {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
