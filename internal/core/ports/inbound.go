package ports

import (
	"context"
	"io"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

// ObjectIngestor ingests every qualifying document of a stored object.
type ObjectIngestor interface {
	IngestObject(ctx context.Context, loc domain.ObjectLocation) (domain.IngestionReport, error)
}

// QuestionAnswerer is the inbound contract for retrieval-augmented answers.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// IngestionTrigger starts an asynchronous ingestion run.
type IngestionTrigger interface {
	Trigger(ctx context.Context, loc domain.ObjectLocation) (*domain.IngestionRun, error)
}

// RunReader is the read model for ingestion runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*domain.IngestionRun, error)
}

// RunProcessor executes a queued ingestion run.
type RunProcessor interface {
	ProcessRun(ctx context.Context, req domain.IngestionRequest) error
}

// DocumentUploader stores an uploaded document and triggers its ingestion.
type DocumentUploader interface {
	Upload(ctx context.Context, bucket, filename string, body io.Reader) (*domain.IngestionRun, error)
}
