package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

//go:generate moq -out remote_mock.go . Remote

// Remote is the server as seen by the sync coordinator.
type Remote interface {
	// ApplyMutation delivers one mutation. The mutation id is sent as the
	// idempotency key, so repeating a call is safe.
	ApplyMutation(ctx context.Context, req api.MutationRequest) (*api.MutationResponse, error)

	// Ping checks that the server is reachable.
	Ping(ctx context.Context) error
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var _ Remote = (*Client)(nil)

// Option настраивает клиент
type Option func(*Client)

// WithRetries sets how many times 429/5xx and network errors are retried
// inside one call, and the backoff bounds.
func WithRetries(n int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient создает новый API клиент
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		maxRetries: 2,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
		httpClient: &http.Client{
			// Общий предел; отдельная попытка ограничивается контекстом вызывающего
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyMutation отправляет мутацию на сервер
func (c *Client) ApplyMutation(ctx context.Context, req api.MutationRequest) (*api.MutationResponse, error) {
	headers := map[string]string{api.IdempotencyKeyHeader: req.ID}

	var resp api.MutationResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/mutations", headers, req, &resp); err != nil {
		return nil, fmt.Errorf("apply mutation %s: %w", req.ID, err)
	}
	return &resp, nil
}

// GetEntity возвращает текущее состояние сущности
func (c *Client) GetEntity(ctx context.Context, key string) (*api.EntityResponse, error) {
	var resp api.EntityResponse
	path := "/api/v1/entities/" + url.PathEscape(key)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get entity %s: %w", key, err)
	}
	return &resp, nil
}

// Ping проверяет доступность сервера. Не повторяет запрос.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    "health check failed",
		}
	}
	return nil
}

// TabsURL returns the websocket URL of the cross-tab relay.
func (c *Client) TabsURL() string {
	u := c.baseURL + "/api/v1/tabs/ws"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

// Token returns the bearer token the client authenticates with.
func (c *Client) Token() string { return c.token }

// doRequest выполняет HTTP запрос с повторами для 429/5xx и сетевых ошибок
func (c *Client) doRequest(ctx context.Context, method, path string, headers map[string]string, body, result any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr == nil {
					continue
				}
			}
			return transportError(err)
		}

		// Читаем тело ответа
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return transportError(fmt.Errorf("failed to read response body: %w", readErr))
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if result == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}

		kind := classifyStatus(resp.StatusCode)
		if kind == models.FailureTransport && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr == nil {
				continue
			}
		}

		remoteErr := &RemoteError{Kind: kind, StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			remoteErr.Code = errResp.Code
			remoteErr.Message = errResp.Error
			if errResp.Message != "" {
				remoteErr.Message += ": " + errResp.Message
			}
		} else {
			remoteErr.Message = strings.TrimSpace(string(respBody))
		}
		return remoteErr
	}
}

func (c *Client) retryDelay(attempt int, retryAfter string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if d := parseRetryAfter(retryAfter); d > 0 {
		return min(d, maxDelay)
	}

	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	return min(delay, maxDelay)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if d := time.Until(ts); d > 0 {
			return d
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
