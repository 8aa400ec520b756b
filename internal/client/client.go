// Package client is a typed HTTP client for the judgeboard API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/submission"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the status onto the domain error kinds.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return model.ErrValidation
	case http.StatusUnauthorized:
		return model.ErrUnauthorized
	case http.StatusForbidden:
		return model.ErrForbidden
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusConflict:
		return model.ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return model.ErrUpstream
	}
}

// Submission mirrors the server's submission body.
type Submission struct {
	TeamID  string             `json:"team_id"`
	JudgeID string             `json:"judge_id"`
	Scores  []model.Score      `json:"scores"`
	Comment string             `json:"comment"`
	Report  *submission.Report `json:"report,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithToken signs every request with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// Client calls one judgeboard server.
type Client struct {
	base  string
	http  *http.Client
	token string
}

// New returns a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// As returns a copy of c that signs requests as id.
func (c *Client) As(id identity.Identity) *Client {
	cp := *c
	cp.token = id.Token
	return &cp
}

// do sends one request and decodes a JSON answer into out when non-nil.
// The status is returned with any 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", model.ErrUpstream, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read %s %s: %w", model.ErrUpstream, method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, apiErr
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

// SignInAdmin signs in through the identity provider.
func (c *Client) SignInAdmin(ctx context.Context, email, password string) (identity.Identity, error) {
	var id identity.Identity
	_, err := c.do(ctx, http.MethodPost, "/api/auth/admin", map[string]string{"email": email, "password": password}, &id)
	return id, err
}

// SignInJudge signs in as the judge called name.
func (c *Client) SignInJudge(ctx context.Context, name string) (identity.Identity, error) {
	var id identity.Identity
	_, err := c.do(ctx, http.MethodPost, "/api/auth/judge", map[string]string{"name": name}, &id)
	return id, err
}

// SignInTeam signs in as the team called name.
func (c *Client) SignInTeam(ctx context.Context, name string) (identity.Identity, error) {
	var id identity.Identity
	_, err := c.do(ctx, http.MethodPost, "/api/auth/team", map[string]string{"name": name}, &id)
	return id, err
}

// SignOut ends every session of the signed-in subject.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil)
	return err
}

// Me returns the identity behind the token.
func (c *Client) Me(ctx context.Context) (identity.Identity, error) {
	var id identity.Identity
	_, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &id)
	return id, err
}

// ListJudges lists judges. Admin only.
func (c *Client) ListJudges(ctx context.Context) ([]model.Judge, error) {
	var out []model.Judge
	_, err := c.do(ctx, http.MethodGet, "/api/judges", nil, &out)
	return out, err
}

// CreateJudge registers a judge. Admin only.
func (c *Client) CreateJudge(ctx context.Context, name string) (model.Judge, error) {
	var out model.Judge
	_, err := c.do(ctx, http.MethodPost, "/api/judges", map[string]string{"name": name}, &out)
	return out, err
}

// ListTeams lists teams. Admins and judges.
func (c *Client) ListTeams(ctx context.Context) ([]model.Team, error) {
	var out []model.Team
	_, err := c.do(ctx, http.MethodGet, "/api/teams", nil, &out)
	return out, err
}

// CreateTeam registers a team. Admin only.
func (c *Client) CreateTeam(ctx context.Context, name string) (model.Team, error) {
	var out model.Team
	_, err := c.do(ctx, http.MethodPost, "/api/teams", map[string]string{"name": name}, &out)
	return out, err
}

// Categories lists the scoring categories.
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	_, err := c.do(ctx, http.MethodGet, "/api/categories", nil, &out)
	return out, err
}

var (
	// ErrPartial marks a submission the server only partly persisted.
	ErrPartial = errors.New("submission partially persisted")
	// ErrRateLimited is a 429 answer; the request may be retried later.
	ErrRateLimited = errors.New("rate limited")
)

// Submit sends a judge's scores and comment for a team. A 207 answer
// returns the submission with an error wrapping ErrPartial.
func (c *Client) Submit(ctx context.Context, teamID string, entries []submission.Entry, comment string) (Submission, error) {
	var out Submission
	body := map[string]any{"scores": entries, "comment": comment}
	code, err := c.do(ctx, http.MethodPut, "/api/teams/"+teamID+"/submission", body, &out)
	if err != nil {
		return out, err
	}
	if code == http.StatusMultiStatus {
		if out.Report == nil {
			return out, ErrPartial
		}
		return out, fmt.Errorf("%w: %d of %d writes failed", ErrPartial, len(out.Report.Failed()), len(out.Report.Writes))
	}
	return out, nil
}

// JudgeSubmission returns what the signed-in judge has stored for a team.
func (c *Client) JudgeSubmission(ctx context.Context, teamID string) (Submission, error) {
	var out Submission
	_, err := c.do(ctx, http.MethodGet, "/api/teams/"+teamID+"/submission", nil, &out)
	return out, err
}

// Leaderboard fetches every ranked team.
func (c *Client) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	var out []model.LeaderboardEntry
	_, err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, &out)
	return out, err
}
