// Package adminclient talks to the relay's HTTP admin API.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the shared sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrorAlreadyExists
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusTooManyRequests:
		return common.ErrorRateLimited
	}
	return nil
}

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func New(baseURL, secret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health is the /health payload.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// VaultDeleted is the answer to DeleteVault.
type VaultDeleted struct {
	Deleted      bool   `json:"deleted"`
	VaultID      string `json:"vaultId"`
	FilesRemoved int    `json:"filesRemoved"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) ListKeys(ctx context.Context) ([]*models.ActivationKey, error) {
	var keys []*models.ActivationKey
	if err := c.do(ctx, http.MethodGet, "/admin/keys", nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// AddKey creates an activation key. An empty key lets the server pick one.
func (c *Client) AddKey(ctx context.Context, key, note string) (*models.ActivationKey, error) {
	body := map[string]string{"key": key, "note": note}
	var k models.ActivationKey
	if err := c.do(ctx, http.MethodPost, "/admin/keys", body, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (c *Client) DeactivateKey(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/admin/keys/"+url.PathEscape(key), nil, nil)
}

func (c *Client) ListVaults(ctx context.Context) ([]models.VaultSummary, error) {
	var vaults []models.VaultSummary
	if err := c.do(ctx, http.MethodGet, "/admin/vaults", nil, &vaults); err != nil {
		return nil, err
	}
	return vaults, nil
}

func (c *Client) DeleteVault(ctx context.Context, vaultID string) (*VaultDeleted, error) {
	var res VaultDeleted
	if err := c.do(ctx, http.MethodDelete, "/admin/vaults/"+url.PathEscape(vaultID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}
	if payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
