// Package api is the agent's HTTP client for the feed server. All calls go
// through whatever http.Client it is handed, so wiring the netcache
// transport in gives every call offline fallback for free.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
	"github.com/vecinapp/feed-backend-go/internal/domain/notification"
	"github.com/vecinapp/feed-backend-go/internal/domain/subscription"
)

// ErrOffline marks a response synthesized by the interception layer: the
// server was unreachable and no cached copy existed.
var ErrOffline = errors.New("server unreachable")

// ErrUnauthorized is returned on 401 responses, typically an expired token.
var ErrUnauthorized = errors.New("unauthorized")

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the feed server's /api/v1 surface.
type Client struct {
	http *http.Client
	base string

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{http: httpClient, base: baseURL}
}

// SetToken installs the access token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Authenticated reports whether a token is installed.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, int, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	switch resp.StatusCode {
	case http.StatusServiceUnavailable:
		var offline struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &offline) == nil && offline.Error == "offline" {
			return nil, resp.StatusCode, ErrOffline
		}
	case http.StatusUnauthorized:
		return nil, resp.StatusCode, ErrUnauthorized
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("malformed response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if env.Error != nil {
			return &env, resp.StatusCode, fmt.Errorf("server error: %s", env.Error.Message)
		}
		return &env, resp.StatusCode, fmt.Errorf("server error: status %d", resp.StatusCode)
	}
	return &env, resp.StatusCode, nil
}

// Login exchanges credentials for an access token and installs it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	env, _, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}

	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("malformed token response: %w", err)
	}
	c.SetToken(data.AccessToken)
	return nil
}

// NewContent fetches per-type content aggregates created after since. The
// payload is decoded defensively: a malformed body yields an empty list
// rather than an error the poll loop would have to special-case.
func (c *Client) NewContent(ctx context.Context, since time.Time) ([]feed.ContentDelta, error) {
	path := "/api/v1/notifications/new-content?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	env, _, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return feed.DecodeDeltas(env.Data), nil
}

// VAPIDPublicKey fetches the application server key used for subscribing.
func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	env, _, err := c.do(ctx, http.MethodGet, "/api/v1/notifications/vapid-public-key", nil)
	if err != nil {
		return "", err
	}
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("malformed key response: %w", err)
	}
	return data["key"], nil
}

// RegisterSubscription uploads a device push subscription.
func (c *Client) RegisterSubscription(ctx context.Context, sub subscription.SubscribeRequest) error {
	_, _, err := c.do(ctx, http.MethodPost, "/api/v1/notifications/subscribe-push", sub)
	return err
}

// UnregisterSubscription removes a device push subscription server-side.
func (c *Client) UnregisterSubscription(ctx context.Context, endpoint string) error {
	_, _, err := c.do(ctx, http.MethodPost, "/api/v1/notifications/unsubscribe-push",
		subscription.UnsubscribeRequest{Endpoint: endpoint})
	return err
}

// Notifications lists the user's notification records.
func (c *Client) Notifications(ctx context.Context) ([]notification.RecordResponse, error) {
	env, _, err := c.do(ctx, http.MethodGet, "/api/v1/notifications", nil)
	if err != nil {
		return nil, err
	}
	var records []notification.RecordResponse
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return nil, fmt.Errorf("malformed notifications response: %w", err)
	}
	return records, nil
}

// MarkRead marks one notification record read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	_, _, err := c.do(ctx, http.MethodPost, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil)
	return err
}

// MarkAllRead marks every notification record read in one server call.
func (c *Client) MarkAllRead(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodPost, "/api/v1/notifications/read-all", nil)
	return err
}

// Preferences fetches the user's notification preferences.
func (c *Client) Preferences(ctx context.Context) (notification.Preferences, error) {
	env, _, err := c.do(ctx, http.MethodGet, "/api/v1/notifications/preferences", nil)
	if err != nil {
		return notification.DefaultPreferences(), err
	}
	prefs := notification.DefaultPreferences()
	if err := json.Unmarshal(env.Data, &prefs); err != nil {
		return notification.DefaultPreferences(), fmt.Errorf("malformed preferences response: %w", err)
	}
	return prefs, nil
}
