package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the plain text of every page in page order, pages joined by a newline.
// A page that cannot be decoded fails the whole document.
func (e *Extractor) Extract(ctx context.Context, raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("malformed document: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}

	return joinPages(ctx, readerPages{reader: reader})
}

// pageSource is the part of a PDF reader the page loop needs. Pages are numbered from 1.
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

type readerPages struct {
	reader *pdf.Reader
}

func (p readerPages) NumPage() int {
	return p.reader.NumPage()
}

func (p readerPages) PageText(n int) (string, error) {
	page := p.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func joinPages(ctx context.Context, src pageSource) (string, error) {
	pages := make([]string, 0, src.NumPage())
	for i := 1; i <= src.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := src.PageText(i)
		if err != nil {
			return "", domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("page %d: %w", i, err))
		}
		pages = append(pages, content)
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}
