// Package client is a small SDK for the journal service REST API. Methods return the raw
// JSON body of successful responses so callers can print or forward it unchanged.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrEmpty is returned before any request is sent when a required value is blank.
var ErrEmpty = errors.New("client: required value is empty")

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// Client talks to one journal service.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout overrides the per-request timeout (default 2m).
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(2 * time.Minute)
	for _, o := range opts {
		o(c)
	}
	return &Client{http: c}
}

// SubmitRequest mirrors the service's submission body.
type SubmitRequest struct {
	Text         string `json:"text"`
	ReplyContext string `json:"replyContext,omitempty"`
	Category     string `json:"category,omitempty"`
}

// ListOptions filters List. Zero values are omitted.
type ListOptions struct {
	Limit  int
	Before string
	After  string
}

// EditRequest changes user-editable fields; nil fields are left alone.
type EditRequest struct {
	Title    *string `json:"title,omitempty"`
	Category *string `json:"category,omitempty"`
}

func userPath(userID, suffix string) string {
	return "/api/users/" + url.PathEscape(userID) + suffix
}

func (c *Client) call(ctx context.Context, method, path string, body any, query map[string]string) (json.RawMessage, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &APIError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return json.RawMessage(resp.Body()), nil
}

func need(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	return nil
}

// Submit sends a new entry.
func (c *Client) Submit(ctx context.Context, userID string, req SubmitRequest) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	if err := need("text", req.Text); err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodPost, userPath(userID, "/entries"), req, nil)
}

// List returns entries newest first.
func (c *Client) List(ctx context.Context, userID string, opts ListOptions) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	q := map[string]string{}
	if opts.Limit > 0 {
		q["limit"] = strconv.Itoa(opts.Limit)
	}
	if opts.Before != "" {
		q["before"] = opts.Before
	}
	if opts.After != "" {
		q["after"] = opts.After
	}
	return c.call(ctx, http.MethodGet, userPath(userID, "/entries"), nil, q)
}

// Get returns one entry.
func (c *Client) Get(ctx context.Context, userID, entryID string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	if err := need("entry id", entryID); err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodGet, userPath(userID, "/entries/"+url.PathEscape(entryID)), nil, nil)
}

// Edit patches the title or category of an entry.
func (c *Client) Edit(ctx context.Context, userID, entryID string, req EditRequest) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	if req.Title == nil && req.Category == nil {
		return nil, fmt.Errorf("%w: title or category", ErrEmpty)
	}
	return c.call(ctx, http.MethodPatch, userPath(userID, "/entries/"+url.PathEscape(entryID)), req, nil)
}

// ResolveGate answers a safety check-in with okay, support or crisis.
func (c *Client) ResolveGate(ctx context.Context, userID, pendingID, resolution string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	body := map[string]string{"resolution": resolution}
	return c.call(ctx, http.MethodPost, userPath(userID, "/pending/"+url.PathEscape(pendingID)+"/gate"), body, nil)
}

// ResolveTemporal answers a date prompt with use-detected or use-today.
func (c *Client) ResolveTemporal(ctx context.Context, userID, pendingID, answer string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	body := map[string]string{"answer": answer}
	return c.call(ctx, http.MethodPost, userPath(userID, "/pending/"+url.PathEscape(pendingID)+"/temporal"), body, nil)
}

// Dismiss closes a pending prompt.
func (c *Client) Dismiss(ctx context.Context, userID, pendingID string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodDelete, userPath(userID, "/pending/"+url.PathEscape(pendingID)), nil, nil)
}

// Offline lists entries waiting for the store to come back.
func (c *Client) Offline(ctx context.Context, userID string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodGet, userPath(userID, "/offline"), nil, nil)
}

// Ask queries past entries in natural language.
func (c *Client) Ask(ctx context.Context, userID, question string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	if err := need("question", question); err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodPost, userPath(userID, "/chat"), map[string]string{"question": question}, nil)
}

// Transcribe uploads a raw recording.
func (c *Client) Transcribe(ctx context.Context, userID string, audio []byte, mime string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: recording", ErrEmpty)
	}
	path := userPath(userID, "/transcribe")
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", mime).
		SetBody(audio).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return json.RawMessage(resp.Body()), nil
}

// Maintenance reports the session's maintenance status.
func (c *Client) Maintenance(ctx context.Context, userID string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodGet, userPath(userID, "/maintenance"), nil, nil)
}

// RunMaintenance starts retrofit and backfill for the session now.
func (c *Client) RunMaintenance(ctx context.Context, userID string) (json.RawMessage, error) {
	if err := need("user", userID); err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodPost, userPath(userID, "/maintenance"), nil, nil)
}

// Health returns the service health document. A degraded service answers 503, which
// surfaces as an *APIError carrying the same document.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, "/api/health", nil, nil)
}
