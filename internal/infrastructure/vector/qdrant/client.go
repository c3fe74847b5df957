package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

// Client is a VectorIndex backed by the Qdrant REST API. Index names map to collections.
type Client struct {
	baseURL    string
	fields     domain.IndexSchema
	httpClient *http.Client
}

// New builds a client whose payload keys follow the field names of schema.
func New(baseURL string, schema domain.IndexSchema) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		fields:     schema,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Create(ctx context.Context, name string, schema domain.IndexSchema) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     schema.Dimension,
			"distance": distanceFor(schema.SpaceType),
		},
	}

	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+name, reqBody)
	if err != nil {
		return fmt.Errorf("qdrant create collection request: %w", err)
	}
	// Depending on version an existing collection is reported as 409 or as 400 with a message.
	if status == http.StatusConflict || (status == http.StatusBadRequest && strings.Contains(string(body), "already exists")) {
		return domain.WrapError(domain.ErrIndexExists, "qdrant create collection", fmt.Errorf("collection %q", name))
	}
	if status >= 300 {
		return statusError("qdrant create collection", status, body)
	}
	return nil
}

func (c *Client) Write(ctx context.Context, name string, record domain.IndexedRecord) error {
	reqBody := map[string]any{
		"points": []map[string]any{
			{
				"id":     uuid.NewString(),
				"vector": record.Embedding,
				"payload": map[string]any{
					c.fields.TextField: record.Text,
					c.fields.MetadataField: map[string]any{
						"source": record.Metadata.Source,
					},
				},
			},
		},
	}

	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", reqBody)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	if status == http.StatusNotFound {
		return domain.WrapError(domain.ErrIndexNotFound, "qdrant upsert", fmt.Errorf("collection %q", name))
	}
	if status >= 300 {
		return statusError("qdrant upsert", status, body)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, name string, queryVector []float32, k int) ([]domain.Hit, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	}

	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", reqBody)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "qdrant search", fmt.Errorf("collection %q", name))
	}
	if status >= 300 {
		return nil, statusError("qdrant search", status, body)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Hit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		hit := domain.Hit{
			Text:  getStringPayload(r.Payload, c.fields.TextField),
			Score: c.score(r.Score),
		}
		if meta, ok := r.Payload[c.fields.MetadataField].(map[string]any); ok {
			hit.Source = getStringPayload(meta, "source")
		}
		out = append(out, hit)
	}
	return out, nil
}

// score converts Qdrant's raw cosine onto the OpenSearch cosinesimil scale. Other distances pass through.
func (c *Client) score(raw float64) float64 {
	if distanceFor(c.fields.SpaceType) == "Cosine" {
		return domain.CosineScore(raw)
	}
	return raw
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 2048 {
		msg = msg[:2048]
	}
	if msg != "" {
		return fmt.Errorf("%s status: %d %s: %s", op, status, http.StatusText(status), msg)
	}
	return fmt.Errorf("%s status: %d %s", op, status, http.StatusText(status))
}

func distanceFor(spaceType string) string {
	switch spaceType {
	case "l2":
		return "Euclid"
	case "innerproduct":
		return "Dot"
	default:
		return "Cosine"
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
