package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"accountservice/internal/domain"
)

const maxErrorBody = 4 << 10

// Client talks to the credential gateway, which owns password hashing and
// passcode issuance. Callers bound each call with a context deadline.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("credentials base url required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, client: httpClient}, nil
}

type credentialsRequest struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type verifyPasswordRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

func (c *Client) RegisterCredentials(ctx context.Context, req domain.CredentialsRequest) error {
	status, body, err := c.put(ctx, "/credentials", credentialsRequest{
		UserID:    req.AccountID,
		FirstName: req.DisplayName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	if isSuccess(status) {
		return nil
	}
	if isRetryable(status) {
		return fmt.Errorf("%w: register credentials: status %d", domain.ErrUpstreamUnavailable, status)
	}
	return fmt.Errorf("%w: status %d: %s", domain.ErrCredentialsRejected, status, body)
}

func (c *Client) VerifyPassword(ctx context.Context, accountID, password string) error {
	status, _, err := c.put(ctx, "/password/verify", verifyPasswordRequest{
		UserID:   accountID,
		Password: password,
	})
	if err != nil {
		return err
	}
	if isSuccess(status) {
		return nil
	}
	if isPasswordRejection(status) {
		return domain.ErrPasswordInvalid
	}
	return fmt.Errorf("%w: verify password: status %d", domain.ErrUpstreamUnavailable, status)
}

// put returns the response status and, for non-2xx answers, a short body
// excerpt. Transport failures are reported as upstream unavailable.
func (c *Client) put(ctx context.Context, path string, payload any) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("marshal credentials payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build credentials request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnavailable, http.MethodPut, path, err)
	}
	defer resp.Body.Close()

	if isSuccess(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, strings.TrimSpace(string(raw)), nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// isPasswordRejection reports the statuses the gateway uses for a wrong
// password. Anything else non-2xx points at the gateway or its address.
func isPasswordRejection(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func isRetryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}
