//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package knowledge assembles the retrieval pipeline: a retriever producing
// candidates and a reranker refining them. The active retrieval mode is
// decided once at construction and is inspectable via Mode, so a fallback is
// never a hidden per-request decision.
package knowledge

import (
	"context"
	"fmt"

	"github.com/pravobot/pravobot/knowledge/reranker"
	"github.com/pravobot/pravobot/knowledge/retriever"
	"github.com/pravobot/pravobot/log"
)

// Mode identifies the active retrieval strategy.
type Mode string

// Retrieval strategy modes, strongest first.
const (
	// ModeRerankedHybrid is hybrid retrieval refined by a cross-encoder.
	ModeRerankedHybrid Mode = "reranked-hybrid"
	// ModeHybrid is dense + lexical fusion without reranking.
	ModeHybrid Mode = "hybrid"
	// ModeDenseOnly is pure vector retrieval.
	ModeDenseOnly Mode = "dense-only"
)

// SearchRequest represents a knowledge search request.
type SearchRequest struct {
	// Query is the search query text.
	Query string

	// UserID identifies the requesting user, for logging.
	UserID string

	// Limit overrides the configured fan-out when positive.
	Limit int
}

// SearchResult represents the outcome of a knowledge search.
type SearchResult struct {
	// Documents are the final, ordered relevant documents. Empty is a
	// valid outcome meaning nothing matched.
	Documents []*retriever.RelevantDocument
}

// Knowledge is the search interface exposed to tools and services.
type Knowledge interface {
	// Search finds relevant documents for the request.
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
}

// ModeReporter is implemented by retrievers that can report a degraded mode.
type ModeReporter interface {
	DenseOnly() bool
}

// BuiltinKnowledge implements Knowledge over a retriever and a reranker.
type BuiltinKnowledge struct {
	retriever retriever.Retriever
	reranker  reranker.Reranker
	limit     int
	mode      Mode
}

// Option represents a functional option for configuring BuiltinKnowledge.
type Option func(*BuiltinKnowledge)

// WithRetriever sets the candidate retriever.
func WithRetriever(r retriever.Retriever) Option {
	return func(bk *BuiltinKnowledge) {
		bk.retriever = r
	}
}

// WithReranker sets the reranker. Pass a TopKReranker to run unranked.
func WithReranker(r reranker.Reranker) Option {
	return func(bk *BuiltinKnowledge) {
		bk.reranker = r
	}
}

// WithLimit sets the retrieval fan-out count.
func WithLimit(limit int) Option {
	return func(bk *BuiltinKnowledge) {
		if limit > 0 {
			bk.limit = limit
		}
	}
}

// defaultLimit is the retrieval fan-out used when none is configured.
const defaultLimit = 4

// New creates a BuiltinKnowledge instance and resolves the active mode.
func New(opts ...Option) (*BuiltinKnowledge, error) {
	bk := &BuiltinKnowledge{limit: defaultLimit}
	for _, opt := range opts {
		opt(bk)
	}
	if bk.retriever == nil {
		return nil, fmt.Errorf("knowledge: retriever is required")
	}
	if bk.reranker == nil {
		bk.reranker = reranker.NewTopKReranker(reranker.WithK(bk.limit))
	}

	bk.mode = resolveMode(bk.retriever, bk.reranker)
	log.Infof("knowledge base initialized in %s mode", bk.mode)
	return bk, nil
}

// resolveMode inspects the assembled components once, at construction.
func resolveMode(r retriever.Retriever, rr reranker.Reranker) Mode {
	_, passThrough := rr.(*reranker.TopKReranker)
	denseOnly := false
	if mr, ok := r.(ModeReporter); ok {
		denseOnly = mr.DenseOnly()
	}
	switch {
	case !passThrough:
		return ModeRerankedHybrid
	case denseOnly:
		return ModeDenseOnly
	default:
		return ModeHybrid
	}
}

// Mode returns the active retrieval strategy.
func (bk *BuiltinKnowledge) Mode() Mode {
	return bk.mode
}

// Search implements the Knowledge interface.
func (bk *BuiltinKnowledge) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("knowledge: query cannot be empty")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = bk.limit
	}

	candidates, err := bk.retriever.Retrieve(ctx, &retriever.Query{
		Text:   req.Query,
		UserID: req.UserID,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge retrieve: %w", err)
	}
	if len(candidates.Documents) == 0 {
		return &SearchResult{}, nil
	}

	rankable := make([]*reranker.Result, len(candidates.Documents))
	for i, doc := range candidates.Documents {
		rankable[i] = &reranker.Result{Document: doc.Document, Score: doc.Score}
	}

	ranked, err := bk.reranker.Rerank(ctx, req.Query, rankable)
	if err != nil {
		// Call-time reranker failure degrades to the unranked candidate
		// set, capped to the fan-out, per the bypass policy.
		log.Errorf("reranker failed, returning unranked results: %v", err)
		ranked = rankable
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
	}

	documents := make([]*retriever.RelevantDocument, len(ranked))
	for i, res := range ranked {
		documents[i] = &retriever.RelevantDocument{Document: res.Document, Score: res.Score}
	}
	return &SearchResult{Documents: documents}, nil
}
