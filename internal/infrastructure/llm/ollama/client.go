package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

// WithExecutor routes every call through the retry and circuit breaker executor.
func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embedder implements both the single and the batch embedding contracts over /api/embed.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	response, err := roundTrip[embedResponse](ctx, e.client, "embed", "/api/embed", request)
	if err != nil {
		return nil, err
	}
	vectors := response.Embeddings
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"ollama embed",
			fmt.Errorf("embedding count mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	return vectors, nil
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate returns the raw completion. Sampling parameters map onto Ollama options.
func (g *Generator) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	reqBody := map[string]any{
		"model":   g.client.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": generateOptions(params),
	}

	response, err := roundTrip[generateResponse](ctx, g.client, "generate", "/api/generate", reqBody)
	if err != nil {
		return "", err
	}
	return response.Response, nil
}

func generateOptions(params domain.GenerationParams) map[string]any {
	options := map[string]any{
		"temperature": params.Temperature,
	}
	if params.MaxTokens > 0 {
		options["num_predict"] = params.MaxTokens
	}
	if params.TopP > 0 {
		options["top_p"] = params.TopP
	}
	if params.TopK > 0 {
		options["top_k"] = params.TopK
	}
	if len(params.StopSequences) > 0 {
		options["stop"] = params.StopSequences
	}
	return options
}
