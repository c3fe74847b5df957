package ports

import (
	"context"
	"io"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

// EmbeddingProvider turns one text into one vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbeddingProvider is an optional capability of an EmbeddingProvider.
// Implementations must return exactly one vector per input, in input order.
type BatchEmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationProvider returns the raw completion for a prompt.
type GenerationProvider interface {
	Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error)
}

// VectorIndex creates indexes, appends records and runs KNN searches.
// Create must report an existing index with domain.ErrIndexExists.
type VectorIndex interface {
	Create(ctx context.Context, name string, schema domain.IndexSchema) error
	Write(ctx context.Context, name string, record domain.IndexedRecord) error
	Search(ctx context.Context, name string, queryVector []float32, k int) ([]domain.Hit, error)
}

// ObjectStorage reads and writes stored source objects.
type ObjectStorage interface {
	Save(ctx context.Context, bucket, key string, data io.Reader) error
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from raw document bytes of a known format.
type TextExtractor interface {
	Extract(ctx context.Context, format domain.Format, data []byte) (string, error)
}

// Chunker splits text into bounded overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// IngestionQueue publishes/consumes ingestion run requests.
type IngestionQueue interface {
	PublishIngestion(ctx context.Context, req domain.IngestionRequest) error
	SubscribeIngestion(ctx context.Context, handler func(context.Context, domain.IngestionRequest) error) error
}

// RunStore persists ingestion run state and per-document results.
type RunStore interface {
	CreateRun(ctx context.Context, run *domain.IngestionRun) error
	GetRun(ctx context.Context, id string) (*domain.IngestionRun, error)
	UpdateRunStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error
	SaveResults(ctx context.Context, id string, results []domain.DocumentResult) error
}
