//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package reranker

import "context"

// Default value for top K results, indicating return all results.
const defaultTopK = -1

// TopKReranker is a pass-through reranker that returns the top K results
// unchanged, keeping the original order. It serves as the fallback when a
// cross-encoder is unavailable.
type TopKReranker struct {
	k int
}

// Option represents a functional option for configuring TopKReranker.
type Option func(*TopKReranker)

// WithK sets the number of top results to return.
func WithK(k int) Option {
	return func(tkr *TopKReranker) {
		if k <= 0 {
			k = defaultTopK
		}
		tkr.k = k
	}
}

// NewTopKReranker creates a new top-K reranker with options.
func NewTopKReranker(opts ...Option) *TopKReranker {
	tkr := &TopKReranker{
		k: defaultTopK,
	}
	for _, opt := range opts {
		opt(tkr)
	}
	return tkr
}

// Rerank implements the Reranker interface by returning top K results in
// original order.
func (t *TopKReranker) Rerank(ctx context.Context, query string, results []*Result) ([]*Result, error) {
	if t.k <= 0 || len(results) <= t.k {
		return results, nil
	}
	return results[:t.k], nil
}
