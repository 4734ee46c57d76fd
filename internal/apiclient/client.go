// Package apiclient реализует HTTP клиент backend API сервиса подписок:
// вход и регистрацию, запросы о подписке, тарифы и оплату, рекомендации
// по акциям и форму обратной связи.
//
// Клиент сам подставляет bearer токен из TokenSource и сообщает подписчикам
// OnUnauthorized, когда авторизованный запрос получил 401. Навигацией и
// очисткой сессии клиент не занимается.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/entitlement-session/internal/config"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/sl"
)

const maxBodySize = 1 << 20

// TokenSource отдаёт текущий токен сессии. Пустая строка означает отсутствие токена.
type TokenSource interface {
	Token() string
}

// Client HTTP клиент backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized []func(token string)
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client, например на клиент httptest сервера.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New создаёт клиент по настройкам API.
func New(cfg config.API, log *slog.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource задаёт источник токена для авторизованных запросов.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized регистрирует обработчик 401 на авторизованных запросах.
// Обработчик получает токен, с которым был отправлен запрос.
func (c *Client) OnUnauthorized(fn func(token string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) notifyUnauthorized(token string) {
	c.mu.RLock()
	handlers := make([]func(string), len(c.onUnauthorized))
	copy(handlers, c.onUnauthorized)
	c.mu.RUnlock()

	for _, fn := range handlers {
		fn(token)
	}
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do выполняет запрос. Ответ с любым статусом возвращается без ошибки;
// ошибка означает сбой транспорта или отсутствие токена.
func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool) (*response, error) {
	const op = "apiclient.do"

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var token string
	if authenticated {
		token = c.token()
		if token == "" {
			return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := c.log.With(
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", req.Header.Get("X-Request-ID")),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("request failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	log.Debug("request done", slog.Int("status", resp.StatusCode))

	if authenticated && resp.StatusCode == http.StatusUnauthorized {
		log.Warn("authenticated request rejected")
		c.notifyUnauthorized(token)
	}

	return &response{StatusCode: resp.StatusCode, Body: raw}, nil
}

// serverMessage достаёт текст ошибки из тела ответа.
func serverMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

func statusError(resp *response) *StatusError {
	return &StatusError{StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
}
