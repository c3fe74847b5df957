package plaintext

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract decodes raw as strict UTF-8. Invalid byte sequences fail the document.
func (e *Extractor) Extract(_ context.Context, raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrExtraction, "decode text", errors.New("content is not valid UTF-8"))
	}
	return strings.TrimSpace(string(raw)), nil
}
