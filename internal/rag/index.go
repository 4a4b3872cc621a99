package rag

import (
	"math"
	"sort"
	"sync"
)

// IndexEntry is one (vector, chunk) pair held by a vector index.
type IndexEntry struct {
	ChunkID    uint
	DocumentID uint
	Ordinal    int
	Vector     []float32
	Content    string
}

// Hit is one ranked retrieval result.
type Hit struct {
	Entry IndexEntry
	Score float64
}

// VectorIndex stores (vector, chunk) pairs and answers nearest-neighbor
// queries. A document's entries must become visible in one atomic commit;
// readers never observe a partially committed document.
type VectorIndex interface {
	CommitDocument(documentID uint, entries []IndexEntry) error
	Query(vector []float32, k int) []Hit
	Count() int
	DeleteDocument(documentID uint)
	DeleteAll()
}

// MemoryIndex is a brute-force cosine-similarity index guarded by a RWMutex.
// Commits take the write lock, so a document's chunks appear all at once;
// queries run concurrently under the read lock.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []IndexEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) CommitDocument(documentID uint, entries []IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range entries {
		entries[i].DocumentID = documentID
	}
	m.entries = append(m.entries, entries...)
	return nil
}

// Query returns the k entries most similar to vector, ordered by descending
// score with ties broken by ascending chunk ordinal then document id.
func (m *MemoryIndex) Query(vector []float32, k int) []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil
	}

	hits := make([]Hit, len(m.entries))
	for i := range m.entries {
		hits[i] = Hit{
			Entry: m.entries[i],
			Score: cosineSimilarity(vector, m.entries[i].Vector),
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Entry.Ordinal != hits[j].Entry.Ordinal {
			return hits[i].Entry.Ordinal < hits[j].Entry.Ordinal
		}
		return hits[i].Entry.DocumentID < hits[j].Entry.DocumentID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) DeleteDocument(documentID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
}

func (m *MemoryIndex) DeleteAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
