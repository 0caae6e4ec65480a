//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package hybrid

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pravobot/pravobot/knowledge/document"
	"github.com/pravobot/pravobot/knowledge/lexical"
	"github.com/pravobot/pravobot/knowledge/retriever"
	"github.com/pravobot/pravobot/knowledge/vectorstore/inmemory"
)

// stubEmbedder returns a fixed vector for any text.
type stubEmbedder struct {
	vector []float64
	err    error
}

func (s *stubEmbedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	return s.vector, s.err
}

func (s *stubEmbedder) GetDimensions() int { return len(s.vector) }

func newStore(t *testing.T) *inmemory.VectorStore {
	t.Helper()
	ctx := context.Background()
	vs := inmemory.New()
	require.NoError(t, vs.Add(ctx,
		&document.Document{ID: "dense1", Content: "неустойка по договору"}, []float64{1, 0}))
	require.NoError(t, vs.Add(ctx,
		&document.Document{ID: "dense2", Content: "гарантийный срок"}, []float64{0, 1}))
	return vs
}

func TestDenseOnlyWhenNoLexicalIndex(t *testing.T) {
	r := New(
		WithEmbedder(&stubEmbedder{vector: []float64{1, 0}}),
		WithVectorStore(newStore(t)),
	)
	assert.True(t, r.DenseOnly())

	empty := lexical.NewIndex()
	r = New(
		WithEmbedder(&stubEmbedder{vector: []float64{1, 0}}),
		WithVectorStore(newStore(t)),
		WithLexicalIndex(empty),
	)
	assert.True(t, r.DenseOnly())
}

func TestRetrieveDenseOnly(t *testing.T) {
	r := New(
		WithEmbedder(&stubEmbedder{vector: []float64{1, 0}}),
		WithVectorStore(newStore(t)),
		WithLimit(1),
	)

	result, err := r.Retrieve(context.Background(), &retriever.Query{Text: "неустойка"})
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "dense1", result.Documents[0].Document.ID)
}

func TestRetrieveFusesBothLegs(t *testing.T) {
	idx := lexical.NewIndex()
	idx.Add(
		&document.Document{ID: "dense1", Content: "неустойка по договору"},
		&document.Document{ID: "lex1", Content: "неустойка за просрочку передачи товара"},
	)

	r := New(
		WithEmbedder(&stubEmbedder{vector: []float64{1, 0}}),
		WithVectorStore(newStore(t)),
		WithLexicalIndex(idx),
		WithLimit(4),
	)
	require.False(t, r.DenseOnly())

	result, err := r.Retrieve(context.Background(), &retriever.Query{Text: "неустойка"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Documents)

	// dense1 is the best dense match and also a lexical match, so its fused
	// score beats every single-leg document.
	assert.Equal(t, "dense1", result.Documents[0].Document.ID)

	ids := map[string]bool{}
	for _, d := range result.Documents {
		require.False(t, ids[d.Document.ID], "duplicate document %s", d.Document.ID)
		ids[d.Document.ID] = true
	}
	assert.True(t, ids["lex1"])
}

func TestRetrieveEmbedderError(t *testing.T) {
	r := New(
		WithEmbedder(&stubEmbedder{err: errors.New("embedding service down")}),
		WithVectorStore(newStore(t)),
	)

	_, err := r.Retrieve(context.Background(), &retriever.Query{Text: "неустойка"})
	require.Error(t, err)
}

func TestRetrieveLimitTruncates(t *testing.T) {
	r := New(
		WithEmbedder(&stubEmbedder{vector: []float64{1, 1}}),
		WithVectorStore(newStore(t)),
	)

	result, err := r.Retrieve(context.Background(), &retriever.Query{Text: "срок", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Documents, 1)
}
