package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
)

type ingestStorageFake struct {
	objects map[string][]byte
	openErr error
}

func (f *ingestStorageFake) Save(_ context.Context, bucket, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[bucket+"/"+key] = raw
	return nil
}

func (f *ingestStorageFake) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	raw, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// extractorFake returns the raw bytes as text and fails on the literal content "bad".
type extractorFake struct{}

func (extractorFake) Extract(_ context.Context, _ domain.Format, data []byte) (string, error) {
	if string(data) == "bad" {
		return "", domain.WrapError(domain.ErrExtraction, "extract", errors.New("corrupt document"))
	}
	return string(data), nil
}

// chunkerFake splits on "|".
type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "|")
}

type embedderFake struct {
	mu     sync.Mutex
	failOn string
	dim    int
	calls  int
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn != "" && text == f.failOn {
		return nil, errors.New("embedding service unavailable")
	}
	dim := f.dim
	if dim == 0 {
		dim = 2
	}
	vec := make([]float32, dim)
	vec[0] = float32(len(text))
	return vec, nil
}

type batchEmbedderFake struct {
	embedderFake
	batchCalls int
	drop       int
}

func (f *batchEmbedderFake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	out := make([][]float32, 0, len(texts))
	for _, text := range texts[f.drop:] {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

type indexFake struct {
	mu        sync.Mutex
	createErr error
	writeErr  error
	creates   int
	written   []domain.IndexedRecord
	hits      []domain.Hit
	searchErr error
	searchK   int
	searches  int
}

func (f *indexFake) Create(_ context.Context, _ string, _ domain.IndexSchema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return f.createErr
}

func (f *indexFake) Write(_ context.Context, _ string, record domain.IndexedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, record)
	return nil
}

func (f *indexFake) Search(_ context.Context, _ string, _ []float32, k int) ([]domain.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.searchK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func newIngestFixture(embedder ports.EmbeddingProvider, index *indexFake, storage *ingestStorageFake) *IngestUseCase {
	return NewIngestUseCase(
		storage,
		extractorFake{},
		chunkerFake{},
		embedder,
		index,
		IndexTarget{Name: "docs", Schema: domain.DefaultIndexSchema(2)},
		WithIngestConcurrency(2),
	)
}

func TestIngestWritesOneRecordPerChunkWithSource(t *testing.T) {
	index := &indexFake{}
	uc := newIngestFixture(&embedderFake{}, index, &ingestStorageFake{})
	doc := domain.NewDocument(domain.ObjectLocation{Bucket: "papers", Key: "intro.txt"})

	records, err := uc.Ingest(context.Background(), doc, []byte("one|two|three"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if records != 3 || len(index.written) != 3 {
		t.Fatalf("expected 3 records, got %d (written %d)", records, len(index.written))
	}
	for i, want := range []string{"one", "two", "three"} {
		rec := index.written[i]
		if rec.Text != want {
			t.Fatalf("record %d text = %q, want %q", i, rec.Text, want)
		}
		if rec.Metadata.Source != "s3://papers/intro.txt" {
			t.Fatalf("record %d source = %q", i, rec.Metadata.Source)
		}
	}
}

func TestIngestTreatsExistingIndexAsSuccess(t *testing.T) {
	index := &indexFake{createErr: domain.WrapError(domain.ErrIndexExists, "create", errors.New("docs"))}
	uc := newIngestFixture(&embedderFake{}, index, &ingestStorageFake{})

	records, err := uc.Ingest(context.Background(), domain.NewDocument(domain.ObjectLocation{Bucket: "b", Key: "k.txt"}), []byte("x"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if records != 1 {
		t.Fatalf("expected 1 record, got %d", records)
	}
}

func TestIngestAbortsWhenIndexCannotBeCreated(t *testing.T) {
	index := &indexFake{createErr: errors.New("cluster read-only")}
	uc := newIngestFixture(&embedderFake{}, index, &ingestStorageFake{})

	_, err := uc.Ingest(context.Background(), domain.NewDocument(domain.ObjectLocation{Bucket: "b", Key: "k.txt"}), []byte("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(index.written) != 0 {
		t.Fatalf("expected no writes, got %d", len(index.written))
	}
}

func TestIngestEmbeddingFailureWritesNothing(t *testing.T) {
	index := &indexFake{}
	uc := newIngestFixture(&embedderFake{failOn: "c"}, index, &ingestStorageFake{})

	records, err := uc.Ingest(context.Background(), domain.NewDocument(domain.ObjectLocation{Bucket: "b", Key: "k.txt"}), []byte("a|b|c"))
	if err == nil {
		t.Fatalf("expected embedding error")
	}
	if records != 0 || len(index.written) != 0 {
		t.Fatalf("expected zero records written, got %d (written %d)", records, len(index.written))
	}
}

func TestIngestPrefersBatchEmbedding(t *testing.T) {
	index := &indexFake{}
	embedder := &batchEmbedderFake{}
	uc := newIngestFixture(embedder, index, &ingestStorageFake{})

	if _, err := uc.Ingest(context.Background(), domain.NewDocument(domain.ObjectLocation{Bucket: "b", Key: "k.txt"}), []byte("a|bb")); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if embedder.batchCalls != 1 {
		t.Fatalf("expected one batch call, got %d", embedder.batchCalls)
	}
	if index.written[1].Embedding[0] != 2 {
		t.Fatalf("expected order preserved, got %+v", index.written[1].Embedding)
	}
}

func TestIngestRejectsBatchCountMismatch(t *testing.T) {
	index := &indexFake{}
	uc := newIngestFixture(&batchEmbedderFake{drop: 1}, index, &ingestStorageFake{})

	_, err := uc.Ingest(context.Background(), domain.NewDocument(domain.ObjectLocation{Bucket: "b", Key: "k.txt"}), []byte("a|b"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if len(index.written) != 0 {
		t.Fatalf("expected no writes, got %d", len(index.written))
	}
}

func TestIngestRejectsDimensionMismatch(t *testing.T) {
	index := &indexFake{}
	uc := newIngestFixture(&embedderFake{dim: 3}, index, &ingestStorageFake{})

	_, err := uc.Ingest(context.Background(), domain.NewDocument(domain.ObjectLocation{Bucket: "b", Key: "k.txt"}), []byte("a"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestIngestBlankTextWritesNothing(t *testing.T) {
	embedder := &embedderFake{}
	index := &indexFake{}
	uc := newIngestFixture(embedder, index, &ingestStorageFake{})

	records, err := uc.Ingest(context.Background(), domain.NewDocument(domain.ObjectLocation{Bucket: "b", Key: "k.txt"}), []byte("  \n"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if records != 0 || len(index.written) != 0 || embedder.calls != 0 {
		t.Fatalf("expected no records and no embedding calls, got records=%d written=%d calls=%d",
			records, len(index.written), embedder.calls)
	}
}

func TestIngestObjectBlankDocumentIsIndexedEmpty(t *testing.T) {
	storage := &ingestStorageFake{objects: map[string][]byte{"b/empty.txt": []byte("")}}
	uc := newIngestFixture(&embedderFake{}, &indexFake{}, storage)

	report, err := uc.IngestObject(context.Background(), domain.ObjectLocation{Bucket: "b", Key: "empty.txt"})
	if err != nil {
		t.Fatalf("IngestObject() error = %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Status != domain.DocumentIndexed || report.Results[0].Records != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if domain.RunStatusFor(report) != domain.RunCompleted {
		t.Fatalf("expected completed run, got %s", domain.RunStatusFor(report))
	}
}

func buildArchive(t *testing.T, members []struct{ name, body string }) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", m.name, err)
		}
		if _, err := w.Write([]byte(m.body)); err != nil {
			t.Fatalf("zip write %s: %v", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestIngestObjectArchiveMembersAreIndependent(t *testing.T) {
	archive := buildArchive(t, []struct{ name, body string }{
		{name: "notes/", body: ""},
		{name: "notes/a.txt", body: "a1|a2"},
		{name: "notes/broken.txt", body: "bad"},
		{name: "image.png", body: "png"},
		{name: "c.pdf", body: "c1"},
	})
	storage := &ingestStorageFake{objects: map[string][]byte{"papers/bundle.zip": archive}}
	index := &indexFake{}
	uc := newIngestFixture(&embedderFake{}, index, storage)

	loc := domain.ObjectLocation{Bucket: "papers", Key: "bundle.zip"}
	report, err := uc.IngestObject(context.Background(), loc)
	if err != nil {
		t.Fatalf("IngestObject() error = %v", err)
	}

	want := []struct {
		source string
		status domain.DocumentStatus
	}{
		{"s3://papers/bundle.zip_file_inside:notes/a.txt", domain.DocumentIndexed},
		{"s3://papers/bundle.zip_file_inside:notes/broken.txt", domain.DocumentFailed},
		{"s3://papers/bundle.zip_file_inside:image.png", domain.DocumentSkipped},
		{"s3://papers/bundle.zip_file_inside:c.pdf", domain.DocumentIndexed},
	}
	if len(report.Results) != len(want) {
		t.Fatalf("expected %d results, got %+v", len(want), report.Results)
	}
	for i, w := range want {
		got := report.Results[i]
		if got.Source != w.source || got.Status != w.status {
			t.Fatalf("result %d = %s/%s, want %s/%s", i, got.Source, got.Status, w.source, w.status)
		}
	}
	if report.Records() != 3 || len(index.written) != 3 {
		t.Fatalf("expected 3 records from healthy members, got %d (written %d)", report.Records(), len(index.written))
	}
	if report.Failed() != 1 || report.Err() == nil {
		t.Fatalf("expected the broken member reported, got failed=%d err=%v", report.Failed(), report.Err())
	}
	if !domain.IsKind(report.Results[1].Err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error kind, got %v", report.Results[1].Err)
	}
	if domain.RunStatusFor(report) != domain.RunPartial {
		t.Fatalf("expected partial run, got %s", domain.RunStatusFor(report))
	}
}

func TestIngestObjectUnsupportedKeyIsReported(t *testing.T) {
	index := &indexFake{}
	uc := newIngestFixture(&embedderFake{}, index, &ingestStorageFake{})

	report, err := uc.IngestObject(context.Background(), domain.ObjectLocation{Bucket: "b", Key: "slides.pptx"})
	if err != nil {
		t.Fatalf("IngestObject() error = %v", err)
	}
	if len(report.Results) != 1 || !domain.IsKind(report.Results[0].Err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected one unsupported-format failure, got %+v", report.Results)
	}
	if domain.RunStatusFor(report) != domain.RunFailed {
		t.Fatalf("expected failed run, got %s", domain.RunStatusFor(report))
	}
}

func TestIngestObjectStorageErrorIsFatal(t *testing.T) {
	uc := newIngestFixture(&embedderFake{}, &indexFake{}, &ingestStorageFake{openErr: errors.New("disk gone")})

	_, err := uc.IngestObject(context.Background(), domain.ObjectLocation{Bucket: "b", Key: "k.txt"})
	if err == nil || !strings.Contains(err.Error(), "open object") {
		t.Fatalf("expected open object error, got %v", err)
	}
}

func TestIngestObjectValidatesLocation(t *testing.T) {
	index := &indexFake{}
	uc := newIngestFixture(&embedderFake{}, index, &ingestStorageFake{})

	_, err := uc.IngestObject(context.Background(), domain.ObjectLocation{Bucket: "", Key: "k.txt"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if index.creates != 0 {
		t.Fatalf("expected no index work before validation")
	}
}
