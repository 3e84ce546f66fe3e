package genclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ai-assistant-be/internal/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// LocalHandler executes an intercepted local tool signal and returns the
// replacement output that is forwarded instead of the raw signal string.
type LocalHandler func(ctx context.Context, payload string) (string, error)

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	HealthTTL   time.Duration
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		Timeout:     120 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  250 * time.Millisecond,
		HealthTTL:   60 * time.Second,
	}
}

// Client talks to the remote generation backend: two multipart+SSE
// streaming operations plus the simple JSON endpoints.
type Client struct {
	baseURL       string
	apiKey        string
	http          *http.Client
	log           logger.ILogger
	healthCache   *gocache.Cache
	healthTTL     time.Duration
	localHandlers map[string]LocalHandler
	maxAttempts   int
	retryDelay    time.Duration

	// sleep is swappable so retry delays can be observed in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, log logger.ILogger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = 60 * time.Second
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		http:          &http.Client{Timeout: cfg.Timeout},
		log:           log,
		healthCache:   gocache.New(cfg.HealthTTL, 2*cfg.HealthTTL),
		healthTTL:     cfg.HealthTTL,
		localHandlers: make(map[string]LocalHandler),
		maxAttempts:   cfg.MaxAttempts,
		retryDelay:    cfg.RetryDelay,
		sleep:         sleepContext,
	}
}

// RegisterLocalHandler binds a tool name to an in-process handler that
// runs whenever that tool's output carries the local signal marker.
func (c *Client) RegisterLocalHandler(toolName string, handler LocalHandler) {
	c.localHandlers[toolName] = handler
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// StreamError is a typed terminal failure inside an SSE stream. It
// carries whatever the stream had produced before the error event so the
// caller can keep the partial result.
type StreamError struct {
	Message     string
	PartialText string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("backend stream error: %s", e.Message)
}

// StatusError is a non-retryable HTTP failure with the body captured for
// diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}
