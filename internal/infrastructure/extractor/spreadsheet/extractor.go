package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract renders every sheet in workbook order: cells joined by tabs, rows by newlines,
// sheets separated by a blank line. Blank rows are dropped.
func (e *Extractor) Extract(ctx context.Context, raw []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open workbook", err)
	}
	defer book.Close()

	sheets := make([]string, 0, len(book.GetSheetList()))
	for _, name := range book.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := book.GetRows(name)
		if err != nil {
			return "", domain.WrapError(domain.ErrExtraction, "read sheet", fmt.Errorf("%s: %w", name, err))
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			line := strings.Join(row, "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			sheets = append(sheets, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(sheets, "\n\n"), nil
}
