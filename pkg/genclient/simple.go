package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const healthCacheKey = "backend_health"

func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// GenerateTitle asks the backend for a short session title based on the
// opening query and any attached file names.
func (c *Client) GenerateTitle(ctx context.Context, query string, fileNames []string) (string, error) {
	var out struct {
		Title string `json:"title"`
	}
	payload := map[string]interface{}{
		"query":      query,
		"file_names": fileNames,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/title", payload, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Title), nil
}

// SummarizeProfile condenses a user's recent activity into a persistent
// profile summary.
func (c *Client) SummarizeProfile(ctx context.Context, userId uuid.UUID, history string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	payload := map[string]interface{}{
		"user_id": userId.String(),
		"history": history,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/profile-summary", payload, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Summary), nil
}

// Embed generates a single-text embedding. Satisfies the embedding
// backend contract.
func (c *Client) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	payload := map[string]interface{}{
		"text":      text,
		"task_type": taskType,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/embed", payload, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

// Health probes the backend. The result is cached briefly so warm-up
// calls from concurrent requests do not stampede the endpoint.
func (c *Client) Health(ctx context.Context) error {
	if cached, found := c.healthCache.Get(healthCacheKey); found {
		if healthy, ok := cached.(bool); ok && healthy {
			return nil
		}
		return fmt.Errorf("backend reported unhealthy")
	}

	err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, nil)
	c.healthCache.Set(healthCacheKey, err == nil, c.healthTTL)
	if err != nil {
		return fmt.Errorf("backend health check failed: %w", err)
	}
	return nil
}

// ExecuteTool proxies one tool invocation to the backend. The caller
// owns the per-tool timeout through ctx; failures are never retried.
func (c *Client) ExecuteTool(ctx context.Context, toolName string, query string, userId uuid.UUID, sessionId uuid.UUID, memoryEnabled bool) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	payload := map[string]interface{}{
		"query":          query,
		"user_id":        userId.String(),
		"session_id":     sessionId.String(),
		"memory_enabled": memoryEnabled,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tools/"+toolName, payload, &out); err != nil {
		return "", err
	}
	return out.Output, nil
}

// DeleteMemory wipes backend-side vectors for a user, optionally scoped
// to one session.
func (c *Client) DeleteMemory(ctx context.Context, userId uuid.UUID, sessionId *uuid.UUID) error {
	payload := map[string]interface{}{
		"user_id": userId.String(),
	}
	if sessionId != nil {
		payload["session_id"] = sessionId.String()
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/memory", payload, nil)
}
