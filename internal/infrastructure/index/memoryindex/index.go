// Package memoryindex is an in-memory cosine-similarity document index with
// immutable generations. Queries hold the snapshot current at query start;
// ingestion publishes a replacement generation atomically, so a search never
// observes a partial write.
package memoryindex

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/core/ports"
)

type Index struct {
	mu     sync.Mutex
	staged []domain.Document

	current atomic.Pointer[generation]
}

type generation struct {
	docs []domain.Document // sorted by ascending ID
	dim  int
}

func New() *Index {
	idx := &Index{}
	idx.current.Store(&generation{})
	return idx
}

// Add stages a document for the next generation. The embedding dimension is
// fixed by the first staged or published document.
func (i *Index) Add(doc domain.Document) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("memoryindex: document %q has no embedding", doc.ID)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dim := i.dimensionLocked()
	if dim != 0 && len(doc.Embedding) != dim {
		return fmt.Errorf("memoryindex: document %q embedding dimension %d, index uses %d", doc.ID, len(doc.Embedding), dim)
	}
	i.staged = append(i.staged, doc)
	return nil
}

// Commit publishes the current generation plus everything staged since the
// last publish as one new generation.
func (i *Index) Commit() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.staged) == 0 {
		return
	}
	cur := i.current.Load()
	docs := make([]domain.Document, 0, len(cur.docs)+len(i.staged))
	docs = append(docs, cur.docs...)
	docs = append(docs, i.staged...)
	i.staged = nil
	i.publishLocked(docs)
}

// Replace publishes a new generation holding exactly the given documents and
// drops anything staged. This is the full-reindex path.
func (i *Index) Replace(docs []domain.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	dim := 0
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("memoryindex: document %q has no embedding", doc.ID)
		}
		if dim == 0 {
			dim = len(doc.Embedding)
		} else if len(doc.Embedding) != dim {
			return fmt.Errorf("memoryindex: mixed embedding dimensions %d and %d", dim, len(doc.Embedding))
		}
	}

	i.staged = nil
	i.publishLocked(append([]domain.Document(nil), docs...))
	return nil
}

func (i *Index) Snapshot() ports.IndexSnapshot {
	return i.current.Load()
}

func (i *Index) publishLocked(docs []domain.Document) {
	sort.Slice(docs, func(a, b int) bool { return docs[a].ID < docs[b].ID })
	dim := 0
	if len(docs) > 0 {
		dim = len(docs[0].Embedding)
	}
	i.current.Store(&generation{docs: docs, dim: dim})
}

func (i *Index) dimensionLocked() int {
	if len(i.staged) > 0 {
		return len(i.staged[0].Embedding)
	}
	return i.current.Load().dim
}

func (g *generation) Len() int { return len(g.docs) }

// Search returns the top-k documents by cosine similarity with score >=
// minScore. Ties are broken by ascending document ID; an empty generation
// yields an empty result, not an error.
func (g *generation) Search(queryVector []float32, k int, minScore float64) []domain.ScoredDocument {
	if len(g.docs) == 0 || len(queryVector) != g.dim || k <= 0 {
		return nil
	}

	scored := make([]domain.ScoredDocument, 0, len(g.docs))
	for _, doc := range g.docs {
		score := cosine(queryVector, doc.Embedding)
		if score < minScore {
			continue
		}
		scored = append(scored, domain.ScoredDocument{Document: doc, Score: score})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Document.ID < scored[b].Document.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// cosine similarity clamped to [0,1]: opposed vectors carry no retrieval
// signal and must not produce negative scores downstream.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
