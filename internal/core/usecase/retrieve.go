package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
)

type RetrieveUseCase struct {
	embedder  ports.EmbeddingProvider
	index     ports.VectorIndex
	indexName string
}

func NewRetrieveUseCase(embedder ports.EmbeddingProvider, index ports.VectorIndex, indexName string) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:  embedder,
		index:     index,
		indexName: indexName,
	}
}

// Retrieve embeds the question, fetches the k nearest passages and applies the threshold policy:
// either every hit scores at least threshold and their texts are joined in index order,
// or the result is the not-found context.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, question string, k int, threshold float64) (domain.RetrievalContext, error) {
	if k < 0 {
		return domain.RetrievalContext{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("k must not be negative, got %d", k))
	}
	if k == 0 {
		return domain.RetrievalContext{Found: true}, nil
	}

	queryVector, err := uc.embedder.Embed(ctx, question)
	if err != nil {
		return domain.RetrievalContext{}, domain.WrapError(domain.ErrRetrieval, "embed question", err)
	}

	hits, err := uc.index.Search(ctx, uc.indexName, queryVector, k)
	if err != nil {
		return domain.RetrievalContext{}, domain.WrapError(domain.ErrRetrieval, "search index", err)
	}
	if len(hits) < k {
		return domain.RetrievalContext{}, domain.WrapError(
			domain.ErrRetrieval,
			"search index",
			fmt.Errorf("index returned %d hits, %d requested", len(hits), k),
		)
	}
	hits = hits[:k]

	if !hitsAccepted(hits, threshold) {
		return domain.RetrievalContext{Text: domain.NotFoundContext, Hits: hits}, nil
	}
	return assembleContext(hits), nil
}

// hitsAccepted is all-or-nothing: a single hit under the threshold rejects the whole set.
func hitsAccepted(hits []domain.Hit, threshold float64) bool {
	for _, hit := range hits {
		if hit.Score < threshold {
			return false
		}
	}
	return true
}

func assembleContext(hits []domain.Hit) domain.RetrievalContext {
	var b strings.Builder
	for _, hit := range hits {
		b.WriteString(hit.Text)
	}
	out := domain.RetrievalContext{Text: b.String(), Found: true, Hits: hits}
	if len(hits) > 0 {
		out.LastSource = hits[len(hits)-1].Source
	}
	return out
}
