//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package vectorstore provides interfaces for vector storage and similarity search.
package vectorstore

import (
	"context"

	"github.com/pravobot/pravobot/knowledge/document"
)

// VectorStore defines the interface for vector storage and similarity
// search operations. The index itself is built offline; at serving time
// stores are read-mostly and safe for concurrent readers.
type VectorStore interface {
	// Add stores a document with its embedding vector.
	Add(ctx context.Context, doc *document.Document, embedding []float64) error

	// Get retrieves a document by ID along with its embedding.
	Get(ctx context.Context, id string) (*document.Document, []float64, error)

	// Delete removes a document and its embedding.
	Delete(ctx context.Context, id string) error

	// Search performs similarity search and returns the most similar documents.
	Search(ctx context.Context, query *SearchQuery) (*SearchResult, error)

	// Count counts documents in the vector store.
	Count(ctx context.Context) (int, error)

	// Close closes the vector store connection.
	Close() error
}

// SearchMode specifies the search mode.
type SearchMode = int

const (
	// SearchModeVector is pure dense vector search.
	SearchModeVector SearchMode = iota
	// SearchModeKeyword is lexical keyword search.
	SearchModeKeyword
	// SearchModeHybrid combines vector and keyword scoring inside the store.
	SearchModeHybrid
)

// SearchQuery represents a similarity search request.
type SearchQuery struct {
	// Query is the original text query, used by keyword and hybrid modes.
	Query string

	// Vector is the query embedding vector.
	Vector []float64

	// Limit specifies the number of top results to return.
	Limit int

	// MinScore specifies the minimum similarity score threshold.
	MinScore float64

	// SearchMode specifies the search mode.
	SearchMode SearchMode
}

// SearchResult represents the result of a similarity search.
type SearchResult struct {
	// Results contains the matching documents with their similarity scores.
	Results []*ScoredDocument
}

// ScoredDocument represents a document with its similarity score.
// Scores are normalized to higher-is-better.
type ScoredDocument struct {
	// Document is the matched document.
	Document *document.Document

	// Score is the similarity score (higher is more similar).
	Score float64
}
