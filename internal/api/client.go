package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/patient-portal/internal/model"
)

// Client is a thin HTTP client for the portal gateway REST API. It handles
// form-encoded login, Bearer token authentication and JSON (de)serialization.
// Every failure is returned as an error value; nothing is retried here,
// transient-failure policy belongs to the callers.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client rooted at baseURL
// (e.g. http://localhost:8090). The timeout bounds every one-shot request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TokenResponse is the gateway's reply to a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest is the JSON body for account registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Login exchanges form-encoded credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/login",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.send(req)
	if err != nil {
		return "", err
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("login response carried no access token")
	}
	return tok.AccessToken, nil
}

// Register creates a new account. Success does not imply login; the caller
// still has to authenticate.
func (c *Client) Register(ctx context.Context, reg RegisterRequest) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshaling register request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/register",
		bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("creating register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	_, err = c.send(req)
	return err
}

// Me resolves a bearer token to the identity profile it belongs to. A 401
// here means the credential is invalid or expired.
func (c *Client) Me(ctx context.Context, token string) (*model.Identity, error) {
	body, err := c.get(ctx, "/api/v1/auth/me", token)
	if err != nil {
		return nil, err
	}

	var identity model.Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	return &identity, nil
}

// Notifications fetches the notification history for the authenticated
// account. The gateway has shipped both a bare array and a wrapped
// {"notifications": [...]} shape, so both are accepted.
func (c *Client) Notifications(ctx context.Context, token string) ([]model.Notification, error) {
	body, err := c.get(ctx, "/api/v1/notifications/", token)
	if err != nil {
		return nil, err
	}

	var list []model.Notification
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding notification history: %w", err)
	}
	return wrapped.Notifications, nil
}

// get performs an authenticated GET and returns the raw response body.
func (c *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+path, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return c.send(req)
}

// send executes the request and converts non-2xx responses into APIError,
// pulling the human-readable reason out of the gateway's {"detail": ...}
// payload when present.
func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var payload struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Detail = payload.Detail
		}
		return nil, apiErr
	}

	return body, nil
}
