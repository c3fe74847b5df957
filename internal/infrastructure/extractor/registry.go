package extractor

import (
	"context"
	"fmt"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/extractor/spreadsheet"
)

// FormatExtractor extracts text from documents of a single format.
type FormatExtractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

// Registry dispatches extraction by document format.
type Registry struct {
	extractors map[domain.Format]FormatExtractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[domain.Format]FormatExtractor)}
}

// NewDefaultRegistry handles PDF, UTF-8 text and spreadsheet documents.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(domain.FormatPDF, pdf.NewExtractor())
	r.Register(domain.FormatText, plaintext.NewExtractor())
	r.Register(domain.FormatSpreadsheet, spreadsheet.NewExtractor())
	return r
}

func (r *Registry) Register(format domain.Format, e FormatExtractor) {
	r.extractors[format] = e
}

func (r *Registry) Supports(format domain.Format) bool {
	_, ok := r.extractors[format]
	return ok
}

func (r *Registry) Extract(ctx context.Context, format domain.Format, raw []byte) (string, error) {
	e, ok := r.extractors[format]
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract text", fmt.Errorf("format %q", format))
	}
	return e.Extract(ctx, raw)
}
