// Package openai adapts OpenAI-compatible embedding and chat completion endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/resilience"
)

type Client struct {
	api        *goopenai.Client
	genModel   string
	embedModel string
	dimensions int
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

// WithDimensions asks models that support shortened embeddings (text-embedding-3-*) for n dimensions.
func WithDimensions(n int) Option {
	return func(c *Client) {
		c.dimensions = n
	}
}

// New targets baseURL, e.g. "https://api.openai.com/v1" or any compatible gateway.
func New(baseURL, apiKey, genModel, embedModel string, opts ...Option) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		genModel:   genModel,
		embedModel: embedModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

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

	req := goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(e.client.embedModel),
		Dimensions: e.client.dimensions,
	}
	resp, err := resilience.Call(ctx, e.client.executor, "openai.embed", func(ctx context.Context) (goopenai.EmbeddingResponse, error) {
		resp, err := e.client.api.CreateEmbeddings(ctx, req)
		return resp, statusError("embed", err)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"openai embed",
			fmt.Errorf("embedding count mismatch: %d/%d", len(resp.Data), len(texts)),
		)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, 0, len(data))
	for _, d := range data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate sends the prompt as a single user message. Top-k has no chat completion equivalent.
func (g *Generator) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: g.client.genModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: float32(params.Temperature),
		TopP:        float32(params.TopP),
		Stop:        params.StopSequences,
	}

	resp, err := resilience.Call(ctx, g.client.executor, "openai.generate", func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		resp, err := g.client.api.CreateChatCompletion(ctx, req)
		return resp, statusError("generate", err)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", resilience.WrapTemporary("openai generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai generate: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// statusError exposes the HTTP status of API failures so they classify like every other adapter.
func statusError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%w: %w", &resilience.HTTPStatusError{
			Service:    "openai",
			Operation:  operation,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
		}, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%w: %w", &resilience.HTTPStatusError{
			Service:    "openai",
			Operation:  operation,
			StatusCode: reqErr.HTTPStatusCode,
		}, err)
	}
	return err
}
