package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"docuquery/internal/model"
)

const embeddingBatchSize = 10 // embedding APIs often limit batch size

// DocumentStore persists documents.
type DocumentStore interface {
	Create(doc *model.Document) error
	List() ([]model.Document, error)
	GetByID(id uint) (*model.Document, error)
	Count() (int64, error)
	DeleteByID(id uint) error
	DeleteAll() error
}

// ChunkStore persists chunks with their embeddings.
type ChunkStore interface {
	CreateBatch(chunks []model.Chunk) error
	ListAll() ([]model.Chunk, error)
	DeleteByDocumentID(documentID uint) error
	DeleteAll() error
}

// QueryLogSink receives answered-query audit records, typically a message
// queue publisher. Best effort; the query path never fails on it.
type QueryLogSink interface {
	Publish(ctx context.Context, entry model.QueryLog) error
}

// AnswerCache caches full query responses, typically redis.
type AnswerCache interface {
	Get(ctx context.Context, key string) (*StructuredAnswer, bool, error)
	Set(ctx context.Context, key string, answer *StructuredAnswer) error
}

// Service orchestrates ingestion and the query pipeline.
type Service struct {
	docs     DocumentStore
	chunks   ChunkStore
	index    VectorIndex
	embedder Embedder

	chunker     *Chunker
	retriever   *Retriever
	synthesizer *AnswerSynthesizer
	classifier  ConfidenceClassifier
	advisor     EnrichmentAdvisor
	enricher    *AutoEnricher

	logSink QueryLogSink // optional
	cache   AnswerCache  // optional

	defaultTopK int
	maxTopK     int
}

// Params wires a Service. LogSink, Cache and Enricher are optional.
type Params struct {
	Documents DocumentStore
	Chunks    ChunkStore
	Index     VectorIndex
	Embedder  Embedder
	Generator Generator

	ChunkSize       int
	ChunkOverlap    int
	DefaultTopK     int
	MaxTopK         int
	SimilarityFloor float64
	WeakThreshold   float64
	StrongThreshold float64

	Enricher *AutoEnricher
	LogSink  QueryLogSink
	Cache    AnswerCache
}

func NewService(p Params) *Service {
	defaultTopK := p.DefaultTopK
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	maxTopK := p.MaxTopK
	if maxTopK < defaultTopK {
		maxTopK = defaultTopK
	}
	return &Service{
		docs:        p.Documents,
		chunks:      p.Chunks,
		index:       p.Index,
		embedder:    p.Embedder,
		chunker:     NewChunker(p.ChunkSize, p.ChunkOverlap),
		retriever:   NewRetriever(p.Embedder, p.Index, p.SimilarityFloor),
		synthesizer: NewAnswerSynthesizer(p.Generator),
		classifier:  NewConfidenceClassifier(p.WeakThreshold, p.StrongThreshold),
		enricher:    p.Enricher,
		logSink:     p.LogSink,
		cache:       p.Cache,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// LoadIndex rebuilds the vector index from the committed chunks, one atomic
// commit per document. Called once at startup.
func (s *Service) LoadIndex() error {
	all, err := s.chunks.ListAll()
	if err != nil {
		return fmt.Errorf("load chunks for index failed: %w", err)
	}

	byDoc := make(map[uint][]IndexEntry)
	var docOrder []uint
	for i := range all {
		c := &all[i]
		if _, seen := byDoc[c.DocumentID]; !seen {
			docOrder = append(docOrder, c.DocumentID)
		}
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], IndexEntry{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Ordinal:    c.Ordinal,
			Vector:     c.EmbeddingVector(),
			Content:    c.Content,
		})
	}
	for _, docID := range docOrder {
		if err := s.index.CommitDocument(docID, byDoc[docID]); err != nil {
			return fmt.Errorf("commit document %d to index failed: %w", docID, err)
		}
	}
	return nil
}

// IngestResult reports one completed document ingestion.
type IngestResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
}

// Ingest chunks the content, embeds every chunk, persists document and chunks,
// and finally commits the batch to the index. The document only becomes
// retrievable at that last step, so queries never see it partially ingested.
func (s *Service) Ingest(ctx context.Context, name, content string) (*IngestResult, error) {
	content = strings.TrimRight(content, " \t\r\n")
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyDocument
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled"
	}

	spans := s.chunker.Chunk(content)
	if len(spans) == 0 {
		return nil, ErrEmptyDocument
	}

	texts := make([]string, len(spans))
	for i := range spans {
		texts[i] = spans[i].Text
	}
	var embeddings [][]float32
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks failed: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(spans) {
		return nil, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(spans), len(embeddings))
	}

	doc := &model.Document{Name: name, Content: content, ChunkCount: len(spans)}
	if err := s.docs.Create(doc); err != nil {
		return nil, err
	}

	chunks := make([]model.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = model.Chunk{
			DocumentID: doc.ID,
			Ordinal:    span.Ordinal,
			Offset:     span.Offset,
			Length:     span.Length,
			Content:    span.Text,
		}
		chunks[i].SetEmbedding(embeddings[i])
	}
	if err := s.chunks.CreateBatch(chunks); err != nil {
		_ = s.docs.DeleteByID(doc.ID)
		return nil, err
	}

	entries := make([]IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = IndexEntry{
			ChunkID:    chunks[i].ID,
			DocumentID: doc.ID,
			Ordinal:    chunks[i].Ordinal,
			Vector:     embeddings[i],
			Content:    chunks[i].Content,
		}
	}
	if err := s.index.CommitDocument(doc.ID, entries); err != nil {
		return nil, fmt.Errorf("commit document to index failed: %w", err)
	}

	return &IngestResult{Document: *doc, ChunkCount: len(chunks)}, nil
}

// QueryInput is one question against the knowledge base.
type QueryInput struct {
	Query                 string
	TopK                  int
	IncludeAutoEnrichment bool
}

// Query runs the full pipeline: retrieve, synthesize, classify, advise,
// optionally auto-enrich. Every path yields a valid StructuredAnswer; only
// invalid input or unreadable storage is an error.
func (s *Service) Query(ctx context.Context, input QueryInput) (*StructuredAnswer, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	topK := input.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	cacheKey := answerCacheKey(query, topK, input.IncludeAutoEnrichment)
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			return cached, nil
		}
	}

	started := time.Now()

	hits, err := s.retriever.Retrieve(ctx, query, topK)
	var answer *StructuredAnswer
	if err != nil {
		// Embedding or index trouble degrades the answer instead of failing
		// the request.
		answer = &StructuredAnswer{
			Answer:      "The knowledge base could not be searched for this question.",
			Confidence:  ConfidenceLow,
			MissingInfo: []string{fmt.Sprintf("retrieval failed: %v", err)},
			Sources:     []SourceRef{},
			Degraded:    true,
		}
		hits = nil
	} else {
		answer = s.synthesizer.Synthesize(ctx, query, hits)
	}

	topScore := 0.0
	if len(hits) > 0 {
		topScore = hits[0].Score
	}
	answer.Confidence = s.classifier.Classify(answer.Confidence, topScore, len(hits) > 0)

	// On a degraded answer missing_info names a pipeline failure, not a
	// knowledge gap; suggesting documents about it would be nonsense.
	if !answer.Degraded {
		for _, suggestion := range s.advisor.Suggest(answer.MissingInfo, query) {
			if !containsString(answer.EnrichmentSuggestions, suggestion.Action) {
				answer.EnrichmentSuggestions = append(answer.EnrichmentSuggestions, suggestion.Action)
			}
		}

		if input.IncludeAutoEnrichment && s.enricher != nil && len(answer.MissingInfo) > 0 {
			answer.AutoEnrichment = s.enricher.Enrich(ctx, query, answer.MissingInfo)
		}
	}

	if answer.MissingInfo == nil {
		answer.MissingInfo = []string{}
	}
	if answer.EnrichmentSuggestions == nil {
		answer.EnrichmentSuggestions = []string{}
	}
	if answer.Sources == nil {
		answer.Sources = []SourceRef{}
	}
	answer.RetrievedChunks = len(hits)
	answer.ProcessingTime = time.Since(started).Seconds()

	s.publishQueryLog(query, answer)

	// Cache only healthy answers; a degraded one would be replayed for the
	// full TTL after the failing dependency recovers.
	if s.cache != nil && !answer.Degraded {
		if err := s.cache.Set(ctx, cacheKey, answer); err != nil {
			log.Printf("cache answer failed: %v", err)
		}
	}
	return answer, nil
}

func (s *Service) publishQueryLog(query string, answer *StructuredAnswer) {
	if s.logSink == nil {
		return
	}
	entry := model.QueryLog{
		Query:           query,
		Answer:          answer.Answer,
		Confidence:      string(answer.Confidence),
		RetrievedChunks: answer.RetrievedChunks,
		ProcessingMs:    int64(answer.ProcessingTime * 1000),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.logSink.Publish(ctx, entry); err != nil {
			log.Printf("publish query log failed: %v", err)
		}
	}()
}

// ListDocuments returns id and metadata only, never full text.
func (s *Service) ListDocuments() ([]model.Document, error) {
	return s.docs.List()
}

// DeleteDocument removes one document, its chunks, and its index entries.
func (s *Service) DeleteDocument(id uint) error {
	doc, err := s.docs.GetByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.chunks.DeleteByDocumentID(id); err != nil {
		return err
	}
	if err := s.docs.DeleteByID(id); err != nil {
		return err
	}
	s.index.DeleteDocument(id)
	return nil
}

// Stats reports the administrative counters.
type Stats struct {
	DocumentCount int64 `json:"document_count"`
	IndexSize     int   `json:"index_size"`
}

func (s *Service) Stats() (*Stats, error) {
	count, err := s.docs.Count()
	if err != nil {
		return nil, err
	}
	return &Stats{DocumentCount: count, IndexSize: s.index.Count()}, nil
}

// Reset clears all documents, chunks and index entries. Idempotent: a second
// reset is a no-op yielding the same empty state.
func (s *Service) Reset() error {
	if err := s.chunks.DeleteAll(); err != nil {
		return err
	}
	if err := s.docs.DeleteAll(); err != nil {
		return err
	}
	s.index.DeleteAll()
	return nil
}

func answerCacheKey(query string, topK int, enrich bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%t", query, topK, enrich)))
	return "query:answer:" + hex.EncodeToString(sum[:])
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
