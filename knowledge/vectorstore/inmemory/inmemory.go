//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory vector store implementation.
// The offline ingestion pipeline persists the index as a JSON snapshot;
// LoadSnapshot restores it at startup.
package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pravobot/pravobot/knowledge/document"
	"github.com/pravobot/pravobot/knowledge/vectorstore"
)

var (
	errDocumentCannotBeNil     = errors.New("document cannot be nil")
	errDocumentIDCannotBeEmpty = errors.New("document ID cannot be empty")
	errEmbeddingCannotBeEmpty  = errors.New("embedding cannot be empty")
	errQueryVectorRequired     = errors.New("query vector is required for vector search")
)

// defaultMaxResults is the default maximum number of search results.
const defaultMaxResults = 10

var _ vectorstore.VectorStore = (*VectorStore)(nil)

// VectorStore implements vectorstore.VectorStore using in-memory storage
// with exhaustive cosine-similarity search.
type VectorStore struct {
	documents  map[string]*document.Document
	embeddings map[string][]float64
	mutex      sync.RWMutex

	maxResults int
}

// Option represents a functional option for configuring VectorStore.
type Option func(*VectorStore)

// WithMaxResults sets the maximum number of search results.
func WithMaxResults(maxResults int) Option {
	return func(vs *VectorStore) {
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		vs.maxResults = maxResults
	}
}

// New creates a new in-memory vector store instance with options.
func New(opts ...Option) *VectorStore {
	vs := &VectorStore{
		documents:  make(map[string]*document.Document),
		embeddings: make(map[string][]float64),
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(vs)
	}
	return vs
}

// snapshotEntry is the on-disk form of one indexed chunk.
type snapshotEntry struct {
	Document  *document.Document `json:"document"`
	Embedding []float64          `json:"embedding"`
}

// LoadSnapshot restores the store from a JSON snapshot produced by the
// offline indexing pipeline.
func (vs *VectorStore) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var entries []snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	vs.mutex.Lock()
	defer vs.mutex.Unlock()
	for _, entry := range entries {
		if entry.Document == nil || entry.Document.ID == "" || len(entry.Embedding) == 0 {
			continue
		}
		vs.documents[entry.Document.ID] = entry.Document
		vs.embeddings[entry.Document.ID] = entry.Embedding
	}
	return nil
}

// Add implements vectorstore.VectorStore.
func (vs *VectorStore) Add(ctx context.Context, doc *document.Document, embedding []float64) error {
	if doc == nil {
		return errDocumentCannotBeNil
	}
	if doc.ID == "" {
		return errDocumentIDCannotBeEmpty
	}
	if len(embedding) == 0 {
		return errEmbeddingCannotBeEmpty
	}

	vs.mutex.Lock()
	defer vs.mutex.Unlock()

	clonedDoc := doc.Clone()
	now := time.Now()
	if clonedDoc.CreatedAt.IsZero() {
		clonedDoc.CreatedAt = now
	}
	clonedDoc.UpdatedAt = now

	vs.documents[doc.ID] = clonedDoc
	vs.embeddings[doc.ID] = make([]float64, len(embedding))
	copy(vs.embeddings[doc.ID], embedding)

	return nil
}

// Get implements vectorstore.VectorStore.
func (vs *VectorStore) Get(ctx context.Context, id string) (*document.Document, []float64, error) {
	if id == "" {
		return nil, nil, errDocumentIDCannotBeEmpty
	}

	vs.mutex.RLock()
	defer vs.mutex.RUnlock()

	doc, exists := vs.documents[id]
	if !exists {
		return nil, nil, fmt.Errorf("document not found: %s", id)
	}
	embedding := vs.embeddings[id]

	embeddingCopy := make([]float64, len(embedding))
	copy(embeddingCopy, embedding)
	return doc.Clone(), embeddingCopy, nil
}

// Delete implements vectorstore.VectorStore.
func (vs *VectorStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errDocumentIDCannotBeEmpty
	}

	vs.mutex.Lock()
	defer vs.mutex.Unlock()

	if _, exists := vs.documents[id]; !exists {
		return fmt.Errorf("document not found: %s", id)
	}
	delete(vs.documents, id)
	delete(vs.embeddings, id)
	return nil
}

// Search implements vectorstore.VectorStore. Only vector mode is supported;
// keyword search lives in the lexical package.
func (vs *VectorStore) Search(ctx context.Context, query *vectorstore.SearchQuery) (*vectorstore.SearchResult, error) {
	if query == nil || len(query.Vector) == 0 {
		return nil, errQueryVectorRequired
	}

	limit := query.Limit
	if limit <= 0 {
		limit = vs.maxResults
	}

	vs.mutex.RLock()
	defer vs.mutex.RUnlock()

	scored := make([]*vectorstore.ScoredDocument, 0, len(vs.documents))
	for id, doc := range vs.documents {
		embedding := vs.embeddings[id]
		score := cosineSimilarity(query.Vector, embedding)
		if score < query.MinScore {
			continue
		}
		scored = append(scored, &vectorstore.ScoredDocument{
			Document: doc.Clone(),
			Score:    score,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	return &vectorstore.SearchResult{Results: scored}, nil
}

// Count implements vectorstore.VectorStore.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	vs.mutex.RLock()
	defer vs.mutex.RUnlock()
	return len(vs.documents), nil
}

// Close implements vectorstore.VectorStore.
func (vs *VectorStore) Close() error {
	return nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
