package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
)

const defaultIngestConcurrency = 4

// IndexTarget names the index records are written to and the schema it is created with.
type IndexTarget struct {
	Name   string
	Schema domain.IndexSchema
}

type IngestUseCase struct {
	storage     ports.ObjectStorage
	extractor   ports.TextExtractor
	chunker     ports.Chunker
	embedder    ports.EmbeddingProvider
	index       ports.VectorIndex
	target      IndexTarget
	concurrency int
	logger      *slog.Logger
}

type IngestOption func(*IngestUseCase)

// WithIngestConcurrency bounds how many archive members are ingested at once.
func WithIngestConcurrency(n int) IngestOption {
	return func(uc *IngestUseCase) {
		if n > 0 {
			uc.concurrency = n
		}
	}
}

func WithIngestLogger(logger *slog.Logger) IngestOption {
	return func(uc *IngestUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

func NewIngestUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.EmbeddingProvider,
	index ports.VectorIndex,
	target IndexTarget,
	opts ...IngestOption,
) *IngestUseCase {
	uc := &IngestUseCase{
		storage:     storage,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		target:      target,
		concurrency: defaultIngestConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// EnsureIndex creates the target index. An index that already exists is not an error.
func (uc *IngestUseCase) EnsureIndex(ctx context.Context) error {
	err := uc.index.Create(ctx, uc.target.Name, uc.target.Schema)
	if err == nil || domain.IsKind(err, domain.ErrIndexExists) {
		return nil
	}
	return fmt.Errorf("ensure index %q: %w", uc.target.Name, err)
}

// Ingest indexes one document and returns the number of records written.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc domain.Document, data []byte) (int, error) {
	if err := uc.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	return uc.ingest(ctx, doc, data)
}

// IngestObject ingests the stored object at loc. Archives are expanded and every supported member
// becomes its own document; a failing document never stops its siblings.
// The returned error is reserved for failures that prevent any document from being attempted.
func (uc *IngestUseCase) IngestObject(ctx context.Context, loc domain.ObjectLocation) (domain.IngestionReport, error) {
	report := domain.IngestionReport{Location: loc}
	if err := loc.Validate(); err != nil {
		return report, err
	}
	if err := uc.EnsureIndex(ctx); err != nil {
		return report, err
	}

	format := domain.FormatFromKey(loc.Key)
	if format == domain.FormatUnknown {
		err := domain.WrapError(domain.ErrUnsupportedFormat, "ingest object", fmt.Errorf("key %q", loc.Key))
		report.Results = []domain.DocumentResult{uc.failed(loc.String(), err)}
		return report, nil
	}

	data, err := uc.read(ctx, loc)
	if err != nil {
		return report, err
	}

	if format == domain.FormatZip {
		report.Results = uc.ingestArchive(ctx, loc, data)
	} else {
		report.Results = []domain.DocumentResult{uc.ingestDocument(ctx, domain.NewDocument(loc), data)}
	}

	uc.logger.Info("object ingested",
		"source", loc.String(),
		"documents", len(report.Results),
		"failed", report.Failed(),
		"records", report.Records(),
	)
	return report, nil
}

func (uc *IngestUseCase) read(ctx context.Context, loc domain.ObjectLocation) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", loc, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", loc, err)
	}
	return data, nil
}

type archiveEntry struct {
	file *zip.File
	doc  domain.Document
}

func (uc *IngestUseCase) ingestArchive(ctx context.Context, loc domain.ObjectLocation, data []byte) []domain.DocumentResult {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return []domain.DocumentResult{uc.failed(loc.String(), domain.WrapError(domain.ErrExtraction, "open archive", err))}
	}

	entries := make([]archiveEntry, 0, len(archive.File))
	for _, f := range archive.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, archiveEntry{file: f, doc: domain.NewArchiveMember(loc, f.Name)})
	}

	results := make([]domain.DocumentResult, len(entries))
	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, entry := range entries {
		switch entry.doc.Format {
		case domain.FormatUnknown, domain.FormatZip:
			results[i] = domain.DocumentResult{Source: entry.doc.Source(), Status: domain.DocumentSkipped}
			continue
		}
		g.Go(func() error {
			member, err := readMember(entry.file)
			if err != nil {
				results[i] = uc.failed(entry.doc.Source(), err)
				return nil
			}
			results[i] = uc.ingestDocument(ctx, entry.doc, member)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "open archive member", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "read archive member", err)
	}
	return data, nil
}

func (uc *IngestUseCase) ingestDocument(ctx context.Context, doc domain.Document, data []byte) domain.DocumentResult {
	records, err := uc.ingest(ctx, doc, data)
	if err != nil {
		res := uc.failed(doc.Source(), err)
		res.Records = records
		return res
	}
	uc.logger.Debug("document indexed", "source", doc.Source(), "records", records)
	return domain.DocumentResult{Source: doc.Source(), Status: domain.DocumentIndexed, Records: records}
}

func (uc *IngestUseCase) failed(source string, err error) domain.DocumentResult {
	uc.logger.Warn("document ingestion failed", "source", source, "error", err)
	return domain.DocumentResult{
		Source: source,
		Status: domain.DocumentFailed,
		Error:  err.Error(),
		Err:    err,
	}
}

func (uc *IngestUseCase) ingest(ctx context.Context, doc domain.Document, data []byte) (int, error) {
	text, err := uc.extractText(ctx, doc, data)
	if err != nil {
		return 0, err
	}

	// Blank documents yield zero chunks and are indexed with no records.
	if strings.TrimSpace(text) == "" {
		uc.logger.Debug("document has no text", "source", doc.Source())
		return 0, nil
	}
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	// All chunks are embedded before the first write so an embedding failure leaves nothing behind.
	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	source := doc.Source()
	for i, chunk := range chunks {
		record := domain.IndexedRecord{
			Embedding: vectors[i],
			Text:      chunk,
			Metadata:  domain.RecordMetadata{Source: source},
		}
		if err := uc.index.Write(ctx, uc.target.Name, record); err != nil {
			return i, fmt.Errorf("write record %d of %s: %w", i, source, err)
		}
	}
	return len(chunks), nil
}

func (uc *IngestUseCase) extractText(ctx context.Context, doc domain.Document, data []byte) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc.Format, data)
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", doc.Source(), err)
	}
	return text, nil
}

func (uc *IngestUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	var vectors [][]float32
	if batch, ok := uc.embedder.(ports.BatchEmbeddingProvider); ok {
		out, err := batch.EmbedBatch(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(out) != len(chunks) {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(out), len(chunks)),
			)
		}
		vectors = out
	} else {
		vectors = make([][]float32, 0, len(chunks))
		for i, chunk := range chunks {
			vec, err := uc.embedder.Embed(ctx, chunk)
			if err != nil {
				return nil, fmt.Errorf("embed chunk %d: %w", i, err)
			}
			vectors = append(vectors, vec)
		}
	}

	if dim := uc.target.Schema.Dimension; dim > 0 {
		for i, vec := range vectors {
			if len(vec) != dim {
				return nil, domain.WrapError(
					domain.ErrInvalidInput,
					"embed chunks",
					fmt.Errorf("chunk %d embedding has dimension %d, index expects %d", i, len(vec), dim),
				)
			}
		}
	}
	return vectors, nil
}
