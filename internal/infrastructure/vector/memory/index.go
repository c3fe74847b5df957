// Package memory is an in-process VectorIndex used by the CLI and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

type collection struct {
	schema  domain.IndexSchema
	records []domain.IndexedRecord
}

// Index scores records by cosine similarity on the domain.CosineScore scale, highest first.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

func (ix *Index) Create(_ context.Context, name string, schema domain.IndexSchema) error {
	if schema.Dimension <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "create index", fmt.Errorf("dimension must be positive, got %d", schema.Dimension))
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.collections[name]; ok {
		return domain.WrapError(domain.ErrIndexExists, "create index", fmt.Errorf("index %q", name))
	}
	ix.collections[name] = &collection{schema: schema}
	return nil
}

func (ix *Index) Write(_ context.Context, name string, record domain.IndexedRecord) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	c, ok := ix.collections[name]
	if !ok {
		return domain.WrapError(domain.ErrIndexNotFound, "write record", fmt.Errorf("index %q", name))
	}
	if len(record.Embedding) != c.schema.Dimension {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"write record",
			fmt.Errorf("embedding dimension %d, index %q expects %d", len(record.Embedding), name, c.schema.Dimension),
		)
	}
	record.Embedding = append([]float32(nil), record.Embedding...)
	c.records = append(c.records, record)
	return nil
}

func (ix *Index) Search(_ context.Context, name string, queryVector []float32, k int) ([]domain.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.collections[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "search index", fmt.Errorf("index %q", name))
	}
	if k <= 0 {
		return []domain.Hit{}, nil
	}
	if k > len(c.records) {
		return nil, domain.WrapError(
			domain.ErrRetrieval,
			"search index",
			fmt.Errorf("k=%d exceeds the %d records of index %q", k, len(c.records), name),
		)
	}
	if len(queryVector) != c.schema.Dimension {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"search index",
			fmt.Errorf("query dimension %d, index %q expects %d", len(queryVector), name, c.schema.Dimension),
		)
	}

	hits := make([]domain.Hit, 0, len(c.records))
	for _, r := range c.records {
		hits = append(hits, domain.Hit{
			Text:   r.Text,
			Source: r.Metadata.Source,
			Score:  domain.CosineScore(cosine(queryVector, r.Embedding)),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits[:k], nil
}

// Len returns the number of records in the named index.
func (ix *Index) Len(name string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if c, ok := ix.collections[name]; ok {
		return len(c.records)
	}
	return 0
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
