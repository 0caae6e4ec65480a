//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// Embedder is the interface that all embedders must implement.
//
// Function-level errors indicate system failures that prevent communication
// (nil input, network issues). An empty embedding slice with a nil error
// indicates an API-level failure; callers should treat it as unusable.
type Embedder interface {
	// GetEmbedding generates an embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the dimensionality of the embeddings produced by
	// this embedder. Returns 0 if dimensions are not known.
	GetDimensions() int
}
