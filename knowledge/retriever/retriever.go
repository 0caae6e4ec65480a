//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package retriever provides interfaces for knowledge retrieval operations.
package retriever

import (
	"context"

	"github.com/pravobot/pravobot/knowledge/document"
)

// Retriever defines the interface for retrieving relevant documents based on queries.
type Retriever interface {
	// Retrieve finds the most relevant documents for a given query.
	// An empty result set is a valid, non-error outcome.
	Retrieve(ctx context.Context, query *Query) (*Result, error)

	// Close closes the retriever and releases resources.
	Close() error
}

// Query represents a retrieval query.
type Query struct {
	// Text is the query text.
	Text string

	// UserID can help with personalized search results.
	UserID string

	// Limit specifies the number of documents to retrieve.
	Limit int

	// MinScore specifies the minimum relevance score threshold.
	MinScore float64
}

// Result represents the result of a retrieval operation.
type Result struct {
	// Documents contains the retrieved documents with relevance scores,
	// ordered best first.
	Documents []*RelevantDocument
}

// RelevantDocument represents a document with its relevance information.
type RelevantDocument struct {
	// Document is the retrieved document.
	Document *document.Document

	// Score is the relevance score (higher is more relevant).
	Score float64
}
