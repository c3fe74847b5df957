package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

func TestExtractDecodesUTF8(t *testing.T) {
	text, err := NewExtractor().Extract(context.Background(), []byte("\xEF\xBB\xBF  Grüße aus Köln\n"))
	require.NoError(t, err)
	require.Equal(t, "Grüße aus Köln", text)
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), []byte{0xff, 0xfe, 'a'})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.ErrExtraction))
}
