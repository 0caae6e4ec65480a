//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package hybrid provides a retriever that fuses dense vector search with
// lexical BM25 search using weighted score fusion.
//
// Both legs run concurrently and are each bounded to the query limit. Scores
// are normalized per leg, combined by a fixed linear weight, and summed for
// documents appearing in both result sets. A missing or failed lexical index
// degrades the retriever to dense-only mode at construction time; this is a
// logged condition, not a failure.
package hybrid

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pravobot/pravobot/knowledge/embedder"
	"github.com/pravobot/pravobot/knowledge/lexical"
	"github.com/pravobot/pravobot/knowledge/retriever"
	"github.com/pravobot/pravobot/knowledge/vectorstore"
	"github.com/pravobot/pravobot/log"
)

var _ retriever.Retriever = (*Retriever)(nil)

// Fusion weights. Dense and lexical contribute equally.
const (
	denseWeight   = 0.5
	lexicalWeight = 0.5
)

// defaultLimit bounds each leg when the query does not specify one.
const defaultLimit = 4

// Retriever fuses dense and lexical retrieval legs.
type Retriever struct {
	embedder    embedder.Embedder
	vectorStore vectorstore.VectorStore
	lexical     *lexical.Index
	limit       int
}

// Option represents a functional option for configuring the Retriever.
type Option func(*Retriever)

// WithEmbedder sets the query embedder for the dense leg.
func WithEmbedder(e embedder.Embedder) Option {
	return func(r *Retriever) {
		r.embedder = e
	}
}

// WithVectorStore sets the dense vector store.
func WithVectorStore(vs vectorstore.VectorStore) Option {
	return func(r *Retriever) {
		r.vectorStore = vs
	}
}

// WithLexicalIndex sets the lexical BM25 index. A nil or empty index puts
// the retriever in dense-only mode.
func WithLexicalIndex(idx *lexical.Index) Option {
	return func(r *Retriever) {
		r.lexical = idx
	}
}

// WithLimit sets the per-leg result count.
func WithLimit(limit int) Option {
	return func(r *Retriever) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

// New creates a hybrid retriever. The dense-only degrade decision is made
// here, once, so the active mode is stable across calls.
func New(opts ...Option) *Retriever {
	r := &Retriever{limit: defaultLimit}
	for _, opt := range opts {
		opt(r)
	}
	if r.lexical == nil || r.lexical.Len() == 0 {
		if r.lexical != nil {
			log.Warnf("lexical index is empty, hybrid retriever operating dense-only")
		} else {
			log.Warnf("no lexical index configured, hybrid retriever operating dense-only")
		}
		r.lexical = nil
	}
	return r
}

// DenseOnly reports whether the lexical leg is inactive.
func (r *Retriever) DenseOnly() bool {
	return r.lexical == nil
}

// Retrieve implements the retriever.Retriever interface.
func (r *Retriever) Retrieve(ctx context.Context, q *retriever.Query) (*retriever.Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = r.limit
	}

	var (
		denseResults   []*vectorstore.ScoredDocument
		lexicalResults []*lexical.ScoredDocument
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		denseResults, err = r.denseSearch(gctx, q.Text, limit)
		return err
	})
	if r.lexical != nil {
		g.Go(func() error {
			var err error
			lexicalResults, err = r.lexical.Search(gctx, q.Text, limit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuse(denseResults, lexicalResults)
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	if len(fused) > limit {
		fused = fused[:limit]
	}

	return &retriever.Result{Documents: fused}, nil
}

// denseSearch embeds the query and runs the vector leg.
func (r *Retriever) denseSearch(ctx context.Context, text string, limit int) ([]*vectorstore.ScoredDocument, error) {
	embedding, err := r.embedder.GetEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embedding) == 0 {
		log.Warnf("empty query embedding, dense leg returns no results")
		return nil, nil
	}

	result, err := r.vectorStore.Search(ctx, &vectorstore.SearchQuery{
		Vector:     embedding,
		Limit:      limit,
		SearchMode: vectorstore.SearchModeVector,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return result.Results, nil
}

// fuse combines the two result legs by normalized weighted score, summing
// contributions for documents present in both, deduplicated by document ID.
func fuse(dense []*vectorstore.ScoredDocument, lex []*lexical.ScoredDocument) []*retriever.RelevantDocument {
	combined := make(map[string]*retriever.RelevantDocument)
	order := make([]string, 0, len(dense)+len(lex))

	add := func(doc *retriever.RelevantDocument) {
		if existing, ok := combined[doc.Document.ID]; ok {
			existing.Score += doc.Score
			return
		}
		combined[doc.Document.ID] = doc
		order = append(order, doc.Document.ID)
	}

	for _, sd := range dense {
		add(&retriever.RelevantDocument{
			Document: sd.Document,
			Score:    denseWeight * normalize(sd.Score, maxDenseScore(dense)),
		})
	}
	lexMax := maxLexicalScore(lex)
	for _, sd := range lex {
		add(&retriever.RelevantDocument{
			Document: sd.Document,
			Score:    lexicalWeight * normalize(sd.Score, lexMax),
		})
	}

	out := make([]*retriever.RelevantDocument, 0, len(order))
	for _, id := range order {
		out = append(out, combined[id])
	}
	return out
}

func maxDenseScore(docs []*vectorstore.ScoredDocument) float64 {
	var m float64
	for _, d := range docs {
		if d.Score > m {
			m = d.Score
		}
	}
	return m
}

func maxLexicalScore(docs []*lexical.ScoredDocument) float64 {
	var m float64
	for _, d := range docs {
		if d.Score > m {
			m = d.Score
		}
	}
	return m
}

// normalize maps a leg score into [0, 1] relative to the leg's best score.
func normalize(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return score / max
}

// Close implements the retriever.Retriever interface.
func (r *Retriever) Close() error {
	if r.vectorStore != nil {
		return r.vectorStore.Close()
	}
	return nil
}
