package rag

import (
	"context"
	"fmt"
)

// Retriever embeds a query and ranks candidate chunks from the index.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	floor    float64
}

// NewRetriever builds a retriever. floor is an optional minimum similarity;
// zero disables it.
func NewRetriever(embedder Embedder, index VectorIndex, floor float64) *Retriever {
	return &Retriever{embedder: embedder, index: index, floor: floor}
}

// Retrieve returns at most min(k, index size) hits ordered by descending
// similarity. An empty index yields an empty result and no error; downstream
// stages must not invoke generation for it.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	if r.index.Count() == 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	hits := r.index.Query(vec, k)
	if r.floor > 0 {
		kept := hits[:0]
		for _, h := range hits {
			if h.Score >= r.floor {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	return hits, nil
}
