// Package api is the HTTP client for the Crewdeck REST API. State-changing
// requests carry a freshly fetched anti-forgery token both as a header and
// embedded in the JSON body; the token is never cached across requests.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const csrfHeader = "X-CSRF-Token"

// Client talks to one Crewdeck server.
type Client struct {
	base   string
	token  string
	hc     *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the server at baseURL. authToken is sent as
// a bearer token on every request.
func NewClient(baseURL, authToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		token:  authToken,
		hc:     &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Token returns the bearer token the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

// WSURL returns the push-channel endpoint for a project scope.
func (c *Client) WSURL(projectID string) string {
	ws := c.base
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/api/projects/" + projectID + "/ws"
}

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.send(ctx, http.MethodGet, "/api/csrf", nil, &out); err != nil {
		return "", fmt.Errorf("fetching csrf token: %w", err)
	}
	return out.Token, nil
}

// do issues a request. Non-GET requests get a fresh anti-forgery token in
// both the header and the body.
func (c *Client) do(ctx context.Context, method, path string, body map[string]any, out any) error {
	if method == http.MethodGet {
		return c.send(ctx, method, path, nil, out)
	}

	token, err := c.csrfToken(ctx)
	if err != nil {
		return err
	}
	if body == nil {
		body = map[string]any{}
	}
	body["csrf_token"] = token

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set(csrfHeader, token)
	return c.roundTrip(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.roundTrip(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
