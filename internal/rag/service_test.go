package rag

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuquery/internal/model"
)

type memDocStore struct {
	mu   sync.Mutex
	seq  uint
	docs map[uint]model.Document
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[uint]model.Document)}
}

func (s *memDocStore) Create(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	doc.ID = s.seq
	doc.CreatedAt = time.Now()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *memDocStore) List() ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

func (s *memDocStore) GetByID(id uint) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (s *memDocStore) Count() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.docs)), nil
}

func (s *memDocStore) DeleteByID(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *memDocStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[uint]model.Document)
	return nil
}

type memChunkStore struct {
	mu     sync.Mutex
	seq    uint
	chunks []model.Chunk
}

func (s *memChunkStore) CreateBatch(chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		s.seq++
		chunks[i].ID = s.seq
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *memChunkStore) ListAll() ([]model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

func (s *memChunkStore) DeleteByDocumentID(documentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

func (s *memChunkStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	return nil
}

type testDeps struct {
	docs     *memDocStore
	chunks   *memChunkStore
	index    *MemoryIndex
	embedder *stubEmbedder
	gen      *stubGenerator
}

func newTestService(t *testing.T, mutate func(*Params)) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		docs:     newMemDocStore(),
		chunks:   &memChunkStore{},
		index:    NewMemoryIndex(),
		embedder: &stubEmbedder{vector: []float32{1, 0}},
		gen: &stubGenerator{
			response: `{"answer": "The onboarding SLA is 5 business days.", "confidence": "high", "missing_info": [], "enrichment_suggestions": [], "reasoning": "stated in source 1"}`,
		},
	}
	params := Params{
		Documents:       deps.docs,
		Chunks:          deps.chunks,
		Index:           deps.index,
		Embedder:        deps.embedder,
		Generator:       deps.gen,
		ChunkSize:       200,
		ChunkOverlap:    20,
		DefaultTopK:     5,
		MaxTopK:         100,
		WeakThreshold:   0.30,
		StrongThreshold: 0.65,
	}
	if mutate != nil {
		mutate(&params)
	}
	return NewService(params), deps
}

func TestQueryAgainstEmptyIndex(t *testing.T) {
	svc, deps := newTestService(t, nil)

	answer, err := svc.Query(context.Background(), QueryInput{Query: "What is the SLA for onboarding?"})
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, answer.Confidence)
	assert.Empty(t, answer.Sources)
	assert.NotEmpty(t, answer.MissingInfo)
	assert.Zero(t, answer.RetrievedChunks)
	assert.Zero(t, deps.gen.calls, "empty index must issue no generation call")
	assert.Zero(t, deps.embedder.calls, "empty index must issue no embedding call")
}

func TestIngestThenQueryScenario(t *testing.T) {
	svc, deps := newTestService(t, nil)

	result, err := svc.Ingest(context.Background(), "sla-doc", "The SLA for onboarding is 5 business days.")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)

	answer, err := svc.Query(context.Background(), QueryInput{Query: "What is the SLA for onboarding?", TopK: 5})
	require.NoError(t, err)
	assert.Contains(t, []Confidence{ConfidenceHigh, ConfidenceMedium}, answer.Confidence)
	assert.Empty(t, answer.MissingInfo)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, result.Document.ID, answer.Sources[0].DocumentID)
	assert.Contains(t, answer.Sources[0].Snippet, "SLA for onboarding")
	assert.Equal(t, 1, answer.RetrievedChunks)
	assert.GreaterOrEqual(t, answer.ProcessingTime, 0.0)
	assert.Equal(t, 1, deps.gen.calls)
}

func TestRetrievalCardinality(t *testing.T) {
	svc, deps := newTestService(t, func(p *Params) {
		p.ChunkSize = 40
		p.ChunkOverlap = 0
	})

	text := strings.Repeat("alpha beta gamma delta epsilon zeta. ", 10)
	_, err := svc.Ingest(context.Background(), "doc", text)
	require.NoError(t, err)
	indexSize := deps.index.Count()
	require.Greater(t, indexSize, 2)

	answer, err := svc.Query(context.Background(), QueryInput{Query: "alpha?", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, answer.RetrievedChunks)

	answer, err = svc.Query(context.Background(), QueryInput{Query: "alpha?", TopK: 99})
	require.NoError(t, err)
	assert.Equal(t, indexSize, answer.RetrievedChunks)
}

func TestIngestAtomicVisibility(t *testing.T) {
	svc, deps := newTestService(t, func(p *Params) {
		p.ChunkSize = 40
		p.ChunkOverlap = 0
	})

	_, err := svc.Ingest(context.Background(), "doc", strings.Repeat("one two three four five six. ", 8))
	require.NoError(t, err)

	// Everything persisted is also indexed: no half-visible document.
	stored, err := deps.chunks.ListAll()
	require.NoError(t, err)
	assert.Equal(t, len(stored), deps.index.Count())
}

func TestIngestPersistsRawText(t *testing.T) {
	svc, deps := newTestService(t, nil)

	content := "The SLA for onboarding is 5 business days."
	result, err := svc.Ingest(context.Background(), "sla-doc", content)
	require.NoError(t, err)

	doc, err := deps.docs.GetByID(result.Document.ID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, content, doc.Content)
}

func TestIngestEmptyDocument(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Ingest(context.Background(), "empty", "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestQueryInvalidInput(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Query(context.Background(), QueryInput{Query: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResetIdempotence(t *testing.T) {
	svc, deps := newTestService(t, nil)

	_, err := svc.Ingest(context.Background(), "doc", "some content to ingest")
	require.NoError(t, err)

	require.NoError(t, svc.Reset())
	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.DocumentCount)
	assert.Zero(t, stats.IndexSize)

	// Second reset is a no-op with the same outcome.
	require.NoError(t, svc.Reset())
	stats, err = svc.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.DocumentCount)
	assert.Zero(t, stats.IndexSize)

	// Queries after reset follow the empty-evidence path.
	answer, err := svc.Query(context.Background(), QueryInput{Query: "anything left?"})
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, answer.Confidence)
	assert.Zero(t, deps.gen.calls)
}

func TestDeleteDocumentRemovesIndexEntries(t *testing.T) {
	svc, deps := newTestService(t, nil)

	result, err := svc.Ingest(context.Background(), "doc", "short lived content")
	require.NoError(t, err)
	require.Equal(t, 1, deps.index.Count())

	require.NoError(t, svc.DeleteDocument(result.Document.ID))
	assert.Zero(t, deps.index.Count())

	assert.ErrorIs(t, svc.DeleteDocument(result.Document.ID), ErrDocumentNotFound)
}

func TestQueryDegradesOnEmbeddingFailure(t *testing.T) {
	svc, deps := newTestService(t, nil)

	_, err := svc.Ingest(context.Background(), "doc", "some content")
	require.NoError(t, err)

	deps.embedder.err = assert.AnError
	answer, err := svc.Query(context.Background(), QueryInput{Query: "still answer me"})
	require.NoError(t, err, "embedding failure degrades, not fails")
	assert.Equal(t, ConfidenceLow, answer.Confidence)
	require.NotEmpty(t, answer.MissingInfo)
	assert.Contains(t, answer.MissingInfo[0], "retrieval failed")
	assert.Zero(t, deps.gen.calls)
}

type memAnswerCache struct {
	mu      sync.Mutex
	entries map[string]*StructuredAnswer
}

func newMemAnswerCache() *memAnswerCache {
	return &memAnswerCache{entries: make(map[string]*StructuredAnswer)}
}

func (c *memAnswerCache) Get(ctx context.Context, key string) (*StructuredAnswer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	answer, ok := c.entries[key]
	return answer, ok, nil
}

func (c *memAnswerCache) Set(ctx context.Context, key string, answer *StructuredAnswer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = answer
	return nil
}

func (c *memAnswerCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestQueryAnswerCacheHit(t *testing.T) {
	cache := newMemAnswerCache()
	svc, deps := newTestService(t, func(p *Params) {
		p.Cache = cache
	})

	_, err := svc.Ingest(context.Background(), "sla-doc", "The SLA for onboarding is 5 business days.")
	require.NoError(t, err)

	first, err := svc.Query(context.Background(), QueryInput{Query: "What is the SLA?"})
	require.NoError(t, err)
	require.Equal(t, 1, deps.gen.calls)

	second, err := svc.Query(context.Background(), QueryInput{Query: "What is the SLA?"})
	require.NoError(t, err)
	assert.Equal(t, 1, deps.gen.calls, "identical query must be served from cache")
	assert.Equal(t, first.Answer, second.Answer)
}

func TestQueryDegradedAnswerNotCached(t *testing.T) {
	cache := newMemAnswerCache()
	svc, deps := newTestService(t, func(p *Params) {
		p.Cache = cache
	})

	_, err := svc.Ingest(context.Background(), "sla-doc", "The SLA for onboarding is 5 business days.")
	require.NoError(t, err)

	deps.embedder.err = assert.AnError
	answer, err := svc.Query(context.Background(), QueryInput{Query: "What is the SLA?"})
	require.NoError(t, err)
	require.NotEmpty(t, answer.MissingInfo)
	assert.Zero(t, cache.size(), "a degraded answer must not be cached")

	// Once the embedder recovers the same query yields a fresh healthy answer
	// instead of a replay of the failure.
	deps.embedder.err = nil
	answer, err = svc.Query(context.Background(), QueryInput{Query: "What is the SLA?"})
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Sources)
	assert.Equal(t, 1, cache.size())
}

func TestQueryDegradedSkipsAdvisorAndEnrichment(t *testing.T) {
	svc, deps := newTestService(t, func(p *Params) {
		p.Enricher = NewAutoEnricher(testCatalog(), KeywordMatcher{MinOverlap: 1}, time.Second)
	})

	_, err := svc.Ingest(context.Background(), "doc", "some content")
	require.NoError(t, err)

	deps.embedder.err = assert.AnError
	answer, err := svc.Query(context.Background(), QueryInput{
		Query:                 "what is the vacation policy?",
		IncludeAutoEnrichment: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, answer.MissingInfo)
	assert.Empty(t, answer.EnrichmentSuggestions, "a pipeline failure is not a knowledge gap")
	assert.Nil(t, answer.AutoEnrichment)
}

func TestQueryEnrichmentIsolation(t *testing.T) {
	svc, _ := newTestService(t, func(p *Params) {
		p.Enricher = NewAutoEnricher(testCatalog(), panicMatcher{}, time.Second)
	})

	answer, err := svc.Query(context.Background(), QueryInput{
		Query:                 "what is the vacation policy?",
		IncludeAutoEnrichment: true,
	})
	require.NoError(t, err)
	require.NotNil(t, answer.AutoEnrichment, "failed enrichment still yields a noted result")
	assert.False(t, answer.AutoEnrichment.Matched)
	assert.Nil(t, answer.AutoEnrichment.Snippet)
	assert.Equal(t, ConfidenceLow, answer.Confidence)
}

func TestQueryAutoEnrichmentNoMatch(t *testing.T) {
	catalog := []SourceCatalogEntry{{Name: "src", Keywords: []string{"zebra", "quantum"}, Content: "irrelevant"}}
	svc, _ := newTestService(t, func(p *Params) {
		p.Enricher = NewAutoEnricher(catalog, KeywordMatcher{MinOverlap: 2}, time.Second)
	})

	answer, err := svc.Query(context.Background(), QueryInput{
		Query:                 "what is the onboarding sla?",
		IncludeAutoEnrichment: true,
	})
	require.NoError(t, err)
	require.NotNil(t, answer.AutoEnrichment)
	assert.False(t, answer.AutoEnrichment.Matched)
}

func TestQueryAdvisorSuggestionsAppended(t *testing.T) {
	svc, deps := newTestService(t, nil)
	deps.gen.response = `{"answer": "partial answer", "confidence": "medium", "missing_info": ["renewal terms"], "enrichment_suggestions": [], "reasoning": ""}`

	_, err := svc.Ingest(context.Background(), "doc", "the contract covers onboarding only")
	require.NoError(t, err)

	answer, err := svc.Query(context.Background(), QueryInput{Query: "what are the renewal terms?"})
	require.NoError(t, err)
	assert.Contains(t, answer.EnrichmentSuggestions, "Add a document covering: renewal terms")
}

type chanLogSink struct{ entries chan model.QueryLog }

func (s *chanLogSink) Publish(ctx context.Context, entry model.QueryLog) error {
	s.entries <- entry
	return nil
}

func TestQueryLogPublished(t *testing.T) {
	sink := &chanLogSink{entries: make(chan model.QueryLog, 1)}
	svc, _ := newTestService(t, func(p *Params) {
		p.LogSink = sink
	})

	_, err := svc.Query(context.Background(), QueryInput{Query: "log me"})
	require.NoError(t, err)

	select {
	case entry := <-sink.entries:
		assert.Equal(t, "log me", entry.Query)
		assert.Equal(t, string(ConfidenceLow), entry.Confidence)
	case <-time.After(2 * time.Second):
		t.Fatal("query log was not published")
	}
}
