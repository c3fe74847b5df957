package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

type statusCall struct {
	status domain.RunStatus
	errMsg string
}

type runStoreFake struct {
	runs          map[string]*domain.IngestionRun
	createErr     error
	statusErr     error
	saveErr       error
	statusCalls   []statusCall
	savedResults  []domain.DocumentResult
	failStatusErr error
}

func (f *runStoreFake) CreateRun(_ context.Context, run *domain.IngestionRun) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.runs == nil {
		f.runs = map[string]*domain.IngestionRun{}
	}
	copyRun := *run
	f.runs[run.ID] = &copyRun
	return nil
}

func (f *runStoreFake) GetRun(_ context.Context, id string) (*domain.IngestionRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRunNotFound, "get run", errors.New(id))
	}
	copyRun := *run
	return &copyRun, nil
}

func (f *runStoreFake) UpdateRunStatus(_ context.Context, _ string, status domain.RunStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.RunFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	return f.statusErr
}

func (f *runStoreFake) SaveResults(_ context.Context, _ string, results []domain.DocumentResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedResults = results
	return nil
}

type ingestorFake struct {
	report domain.IngestionReport
	err    error
	loc    domain.ObjectLocation
}

func (f *ingestorFake) IngestObject(_ context.Context, loc domain.ObjectLocation) (domain.IngestionReport, error) {
	f.loc = loc
	return f.report, f.err
}

func TestProcessRunCompleted(t *testing.T) {
	store := &runStoreFake{}
	ingestor := &ingestorFake{report: domain.IngestionReport{Results: []domain.DocumentResult{
		{Source: "s3://b/k.txt", Status: domain.DocumentIndexed, Records: 4},
	}}}
	uc := NewProcessRunUseCase(store, ingestor)

	err := uc.ProcessRun(context.Background(), domain.IngestionRequest{RunID: "run-1", Bucket: "b", Key: "k.txt"})
	if err != nil {
		t.Fatalf("ProcessRun() error = %v", err)
	}
	if ingestor.loc.Bucket != "b" || ingestor.loc.Key != "k.txt" {
		t.Fatalf("unexpected location %+v", ingestor.loc)
	}
	if len(store.statusCalls) != 2 || store.statusCalls[0].status != domain.RunRunning || store.statusCalls[1].status != domain.RunCompleted {
		t.Fatalf("unexpected status sequence: %+v", store.statusCalls)
	}
	if len(store.savedResults) != 1 {
		t.Fatalf("expected results saved, got %+v", store.savedResults)
	}
}

func TestProcessRunPartialKeepsDocumentErrors(t *testing.T) {
	store := &runStoreFake{}
	ingestor := &ingestorFake{report: domain.IngestionReport{Results: []domain.DocumentResult{
		{Source: "s3://b/a.zip_file_inside:ok.txt", Status: domain.DocumentIndexed, Records: 1},
		{Source: "s3://b/a.zip_file_inside:bad.pdf", Status: domain.DocumentFailed, Error: "broken xref"},
	}}}
	uc := NewProcessRunUseCase(store, ingestor)

	if err := uc.ProcessRun(context.Background(), domain.IngestionRequest{RunID: "run-1", Bucket: "b", Key: "a.zip"}); err != nil {
		t.Fatalf("ProcessRun() error = %v", err)
	}
	last := store.statusCalls[len(store.statusCalls)-1]
	if last.status != domain.RunPartial || !strings.Contains(last.errMsg, "broken xref") {
		t.Fatalf("expected partial status with document error, got %+v", last)
	}
}

func TestProcessRunMarksFailedWhenObjectCannotBeIngested(t *testing.T) {
	store := &runStoreFake{}
	uc := NewProcessRunUseCase(store, &ingestorFake{err: errors.New("open object: not found")})

	err := uc.ProcessRun(context.Background(), domain.IngestionRequest{RunID: "run-1", Bucket: "b", Key: "k.txt"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(store.statusCalls) != 2 || store.statusCalls[1].status != domain.RunFailed {
		t.Fatalf("expected running + failed, got %+v", store.statusCalls)
	}
}

func TestProcessRunReportsFailedStatusError(t *testing.T) {
	store := &runStoreFake{failStatusErr: errors.New("db down")}
	uc := NewProcessRunUseCase(store, &ingestorFake{err: errors.New("ingest fail")})

	err := uc.ProcessRun(context.Background(), domain.IngestionRequest{RunID: "run-1", Bucket: "b", Key: "k.txt"})
	if err == nil || !strings.Contains(err.Error(), "mark failed status") {
		t.Fatalf("expected mark failed error, got %v", err)
	}
}

func TestProcessRunRequiresRunID(t *testing.T) {
	uc := NewProcessRunUseCase(&runStoreFake{}, &ingestorFake{})
	if err := uc.ProcessRun(context.Background(), domain.IngestionRequest{Bucket: "b", Key: "k"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
