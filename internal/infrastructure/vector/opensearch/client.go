package opensearch

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

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

// Client is a VectorIndex backed by the OpenSearch k-NN plugin REST API.
type Client struct {
	baseURL    string
	username   string
	password   string
	refresh    string
	fields     domain.IndexSchema
	httpClient *http.Client
}

type Option func(*Client)

func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithRefresh sets the refresh parameter sent with every document write, e.g. "wait_for".
func WithRefresh(refresh string) Option {
	return func(c *Client) {
		c.refresh = refresh
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New builds a client whose document and query field names follow schema.
func New(baseURL string, schema domain.IndexSchema, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		fields:     schema,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IndexBody is the create-index request: k-NN enabled, cosine space, english stopword analyzer.
func IndexBody(schema domain.IndexSchema) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index.knn":            true,
			"index.knn.space_type": schema.SpaceType,
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"default": map[string]any{
						"type":      "standard",
						"stopwords": "_english_",
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				schema.VectorField: map[string]any{
					"type":      "knn_vector",
					"dimension": schema.Dimension,
				},
				schema.TextField: map[string]any{
					"type": "text",
				},
				schema.MetadataField: map[string]any{
					"type": "object",
				},
			},
		},
	}
}

func (c *Client) Create(ctx context.Context, name string, schema domain.IndexSchema) error {
	status, body, err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(name), IndexBody(schema))
	if err != nil {
		return fmt.Errorf("opensearch create index request: %w", err)
	}
	if status == http.StatusBadRequest && strings.Contains(string(body), "resource_already_exists_exception") {
		return domain.WrapError(domain.ErrIndexExists, "opensearch create index", fmt.Errorf("index %q", name))
	}
	if status >= 300 {
		return statusError("opensearch create index", status, body)
	}
	return nil
}

func (c *Client) Write(ctx context.Context, name string, record domain.IndexedRecord) error {
	doc := map[string]any{
		c.fields.VectorField: record.Embedding,
		c.fields.TextField:   record.Text,
		c.fields.MetadataField: map[string]any{
			"source": record.Metadata.Source,
		},
	}

	path := "/" + url.PathEscape(name) + "/_doc"
	if c.refresh != "" {
		path += "?refresh=" + url.QueryEscape(c.refresh)
	}
	status, body, err := c.do(ctx, http.MethodPost, path, doc)
	if err != nil {
		return fmt.Errorf("opensearch index document request: %w", err)
	}
	if status >= 300 {
		return statusError("opensearch index document", status, body)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, name string, queryVector []float32, k int) ([]domain.Hit, error) {
	query := map[string]any{
		"size": k,
		"query": map[string]any{
			"knn": map[string]any{
				c.fields.VectorField: map[string]any{
					"vector": queryVector,
					"k":      k,
				},
			},
		},
	}

	status, body, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(name)+"/_search", query)
	if err != nil {
		return nil, fmt.Errorf("opensearch search request: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "opensearch search", fmt.Errorf("index %q", name))
	}
	if status >= 300 {
		return nil, statusError("opensearch search", status, body)
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				Score  float64                    `json:"_score"`
				Source map[string]json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Hit, 0, len(searchResp.Hits.Hits))
	for i, h := range searchResp.Hits.Hits {
		hit := domain.Hit{Score: h.Score}
		if raw, ok := h.Source[c.fields.TextField]; ok {
			if err := json.Unmarshal(raw, &hit.Text); err != nil {
				return nil, fmt.Errorf("decode hit %d %s: %w", i, c.fields.TextField, err)
			}
		}
		if raw, ok := h.Source[c.fields.MetadataField]; ok {
			var meta domain.RecordMetadata
			if err := json.Unmarshal(raw, &meta); err != nil {
				return nil, fmt.Errorf("decode hit %d %s: %w", i, c.fields.MetadataField, err)
			}
			hit.Source = meta.Source
		}
		out = append(out, hit)
	}
	return out, nil
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
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

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
