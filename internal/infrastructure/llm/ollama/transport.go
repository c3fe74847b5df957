package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/resilience"
)

const maxErrorBody = 2048

// roundTrip posts payload to path and decodes the answer into T. The request body is encoded once
// and replayed on every retry attempt.
func roundTrip[T any](ctx context.Context, c *Client, operation, path string, payload any) (T, error) {
	var zero T
	body, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	out, err := resilience.Call(ctx, c.executor, "ollama."+operation, func(ctx context.Context) (T, error) {
		var decoded T
		if err := c.post(ctx, path, operation, body, &decoded); err != nil {
			return zero, err
		}
		return decoded, nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return zero, resilience.WrapTemporary("ollama "+operation, err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path, operation string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &resilience.HTTPStatusError{
			Service:    "ollama",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       errorMessage(raw),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// errorMessage prefers the "error" field Ollama sets on failures over the raw body.
func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
