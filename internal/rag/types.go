package rag

import "context"

// Confidence is the coarse three-level trust label attached to an answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// rank orders confidence levels for cap comparisons; unknown values rank lowest.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// SourceRef points an answer back at one retrieved chunk.
type SourceRef struct {
	ChunkID    uint    `json:"chunk_id"`
	DocumentID uint    `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// StructuredAnswer is the full query response. Produced fresh per query,
// never persisted.
type StructuredAnswer struct {
	Answer                string                `json:"answer"`
	Confidence            Confidence            `json:"confidence"`
	MissingInfo           []string              `json:"missing_info"`
	EnrichmentSuggestions []string              `json:"enrichment_suggestions"`
	Sources               []SourceRef           `json:"sources"`
	Reasoning             string                `json:"reasoning"`
	RetrievedChunks       int                   `json:"retrieved_chunks"`
	ProcessingTime        float64               `json:"processing_time"`
	AutoEnrichment        *AutoEnrichmentResult `json:"auto_enrichment,omitempty"`

	// Degraded marks answers produced by a failure path (retrieval error,
	// generation error, unparseable model output). Such answers are served
	// but never cached, and their missing_info describes the failure rather
	// than a knowledge gap.
	Degraded bool `json:"-"`
}

// AutoEnrichmentResult reports the outcome of a best-effort catalog lookup.
// Never required for a valid response.
type AutoEnrichmentResult struct {
	Matched bool    `json:"matched"`
	Source  string  `json:"source,omitempty"`
	Snippet *string `json:"snippet"`
	Note    string  `json:"note"`
}

// Embedder maps text to a fixed-length vector. Implementations must be
// deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the external text-completion service.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
