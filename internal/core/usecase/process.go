package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
)

// ProcessRunUseCase executes queued ingestion runs and records their outcome.
type ProcessRunUseCase struct {
	runs     ports.RunStore
	ingestor ports.ObjectIngestor
}

func NewProcessRunUseCase(runs ports.RunStore, ingestor ports.ObjectIngestor) *ProcessRunUseCase {
	return &ProcessRunUseCase{runs: runs, ingestor: ingestor}
}

// ProcessRun returns an error only when the run could not be executed at all.
// Failed documents are recorded in the run results and reflected in its status.
func (uc *ProcessRunUseCase) ProcessRun(ctx context.Context, req domain.IngestionRequest) error {
	if req.RunID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "process run", errors.New("run id is required"))
	}

	if err := uc.markStatus(ctx, req.RunID, domain.RunRunning, ""); err != nil {
		return fmt.Errorf("set status=running: %w", err)
	}

	report, err := uc.ingestor.IngestObject(ctx, req.Location())
	if err != nil {
		if failErr := uc.markFailed(ctx, req.RunID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.runs.SaveResults(ctx, req.RunID, report.Results); err != nil {
		err = fmt.Errorf("save run results: %w", err)
		if failErr := uc.markFailed(ctx, req.RunID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	errMessage := ""
	if reportErr := report.Err(); reportErr != nil {
		errMessage = reportErr.Error()
	}
	status := domain.RunStatusFor(report)
	if err := uc.markStatus(ctx, req.RunID, status, errMessage); err != nil {
		return fmt.Errorf("set status=%s: %w", status, err)
	}
	return nil
}

func (uc *ProcessRunUseCase) markStatus(ctx context.Context, runID string, status domain.RunStatus, errMessage string) error {
	return uc.runs.UpdateRunStatus(ctx, runID, status, errMessage)
}

func (uc *ProcessRunUseCase) markFailed(ctx context.Context, runID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, runID, domain.RunFailed, processErr.Error())
}
