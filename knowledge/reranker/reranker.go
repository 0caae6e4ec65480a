//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package reranker provides result re-ranking for the knowledge base.
package reranker

import (
	"context"

	"github.com/pravobot/pravobot/knowledge/document"
)

// Reranker re-ranks search results based on query relevance.
type Reranker interface {
	// Rerank re-orders search results for the given query. The returned
	// ordering replaces the input ordering entirely.
	Rerank(ctx context.Context, query string, results []*Result) ([]*Result, error)
}

// Result represents a rankable search result.
type Result struct {
	// Document is the search result document.
	Document *document.Document

	// Score is the relevance score (higher is better).
	Score float64
}
