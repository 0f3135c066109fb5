// Package backend is the HTTP client for the analysis backend's four operations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rewired-gh/btcview/internal/logger"
	"github.com/rewired-gh/btcview/internal/models"
)

const (
	analysisPath   = "/api/btc/analysis"
	settingsPath   = "/api/settings"
	testNotifyPath = "/api/telegram/test"

	maxErrorBody = 512
)

// ErrMalformedResponse is returned when a response body lacks the expected shape.
var ErrMalformedResponse = errors.New("malformed backend response")

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// ClientConfig holds transport tuning.
type ClientConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryDelayBase  time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Client provides access to the analysis backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// envelope is the {data: ...} wrapper every backend payload arrives in.
type envelope[T any] struct {
	Data *T `json:"data"`
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchAnalysis retrieves the latest analysis snapshot.
func (c *Client) FetchAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error) {
	snap, err := getData[models.AnalysisSnapshot](ctx, c, analysisPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analysis: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("failed to fetch analysis: %w: %v", ErrMalformedResponse, err)
	}
	return snap, nil
}

// FetchSettings retrieves the stored user settings.
func (c *Client) FetchSettings(ctx context.Context) (*models.UserSettings, error) {
	settings, err := getData[models.UserSettings](ctx, c, settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w: %v", ErrMalformedResponse, err)
	}
	return settings, nil
}

// UpdateSettings posts a partial update and returns the backend's resulting settings.
func (c *Client) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (*models.UserSettings, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	resp, err := c.post(ctx, settingsPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	defer resp.Body.Close()

	settings, err := decodeData[models.UserSettings](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w: %v", ErrMalformedResponse, err)
	}
	return settings, nil
}

// SendTestNotification asks the backend to deliver a test notification.
func (c *Client) SendTestNotification(ctx context.Context) error {
	resp, err := c.post(ctx, testNotifyPath, nil)
	if err != nil {
		return fmt.Errorf("failed to send test notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func getData[T any](ctx context.Context, c *Client, path string) (*T, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeData[T](resp.Body)
}

func decodeData[T any](r io.Reader) (*T, error) {
	var env envelope[T]
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: missing data field", ErrMalformedResponse)
	}
	return env.Data, nil
}

// get performs a GET with linear-backoff retry on transport errors and 5xx.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err == nil {
			if resp.StatusCode < 500 {
				return checkStatus(resp, http.MethodGet, path)
			}
			lastErr = statusError(resp, http.MethodGet, path)
		} else {
			lastErr = err
		}

		if i == c.maxRetries-1 {
			break
		}
		logger.Debug("GET %s failed (attempt %d/%d): %v", path, i+1, c.maxRetries, lastErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// post performs a single POST. Mutations are never retried.
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return checkStatus(resp, http.MethodPost, path)
}

func checkStatus(resp *http.Response, method, path string) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return nil, statusError(resp, method, path)
}

// statusError drains and closes resp.
func statusError(resp *http.Response, method, path string) error {
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method: method,
		Path:   path,
		Code:   resp.StatusCode,
		Body:   string(bytes.TrimSpace(msg)),
	}
}
