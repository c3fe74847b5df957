package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
)

// TriggerUseCase queues ingestion runs for stored objects.
type TriggerUseCase struct {
	runs    ports.RunStore
	storage ports.ObjectStorage
	queue   ports.IngestionQueue
}

func NewTriggerUseCase(runs ports.RunStore, storage ports.ObjectStorage, queue ports.IngestionQueue) *TriggerUseCase {
	return &TriggerUseCase{
		runs:    runs,
		storage: storage,
		queue:   queue,
	}
}

// Trigger records a queued run for the object at loc and publishes the ingestion notification.
func (uc *TriggerUseCase) Trigger(ctx context.Context, loc domain.ObjectLocation) (*domain.IngestionRun, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &domain.IngestionRun{
		ID:        uuid.NewString(),
		Bucket:    loc.Bucket,
		Key:       loc.Key,
		Status:    domain.RunQueued,
		Documents: []domain.DocumentResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}

	req := domain.IngestionRequest{RunID: run.ID, Bucket: loc.Bucket, Key: loc.Key}
	if err := uc.queue.PublishIngestion(ctx, req); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	return run, nil
}

// Upload stores body under a sanitized key in bucket and triggers its ingestion.
func (uc *TriggerUseCase) Upload(ctx context.Context, bucket, filename string, body io.Reader) (*domain.IngestionRun, error) {
	loc := domain.ObjectLocation{Bucket: bucket, Key: sanitizeFilename(filename)}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if err := uc.storage.Save(ctx, loc.Bucket, loc.Key, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	return uc.Trigger(ctx, loc)
}

func (uc *TriggerUseCase) GetRun(ctx context.Context, id string) (*domain.IngestionRun, error) {
	run, err := uc.runs.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ingestion run: %w", err)
	}
	return run, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.txt"
	}
	return base
}
