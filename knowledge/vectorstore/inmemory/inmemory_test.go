//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pravobot/pravobot/knowledge/document"
	"github.com/pravobot/pravobot/knowledge/vectorstore"
)

func TestAddGetDelete(t *testing.T) {
	ctx := context.Background()
	vs := New()

	doc := &document.Document{ID: "doc1", Content: "статья 6 214-ФЗ"}
	require.NoError(t, vs.Add(ctx, doc, []float64{1, 0, 0}))

	got, embedding, err := vs.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", got.ID)
	assert.Equal(t, []float64{1, 0, 0}, embedding)

	count, err := vs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, vs.Delete(ctx, "doc1"))
	_, _, err = vs.Get(ctx, "doc1")
	require.Error(t, err)
	require.Error(t, vs.Delete(ctx, "doc1"))
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	vs := New()

	require.Error(t, vs.Add(ctx, nil, []float64{1}))
	require.Error(t, vs.Add(ctx, &document.Document{}, []float64{1}))
	require.Error(t, vs.Add(ctx, &document.Document{ID: "x"}, nil))
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	vs := New()

	require.NoError(t, vs.Add(ctx, &document.Document{ID: "close", Content: "a"}, []float64{1, 0.1, 0}))
	require.NoError(t, vs.Add(ctx, &document.Document{ID: "far", Content: "b"}, []float64{0, 1, 0}))
	require.NoError(t, vs.Add(ctx, &document.Document{ID: "mid", Content: "c"}, []float64{1, 1, 0}))

	result, err := vs.Search(ctx, &vectorstore.SearchQuery{
		Vector: []float64{1, 0, 0},
		Limit:  2,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "close", result.Results[0].Document.ID)
	assert.Equal(t, "mid", result.Results[1].Document.ID)
	assert.Greater(t, result.Results[0].Score, result.Results[1].Score)
}

func TestSearchMinScore(t *testing.T) {
	ctx := context.Background()
	vs := New()

	require.NoError(t, vs.Add(ctx, &document.Document{ID: "orthogonal", Content: "a"}, []float64{0, 1}))
	require.NoError(t, vs.Add(ctx, &document.Document{ID: "aligned", Content: "b"}, []float64{1, 0}))

	result, err := vs.Search(ctx, &vectorstore.SearchQuery{
		Vector:   []float64{1, 0},
		MinScore: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "aligned", result.Results[0].Document.ID)
}

func TestSearchRequiresVector(t *testing.T) {
	vs := New()
	_, err := vs.Search(context.Background(), &vectorstore.SearchQuery{Query: "text only"})
	require.Error(t, err)
}

func TestLoadSnapshot(t *testing.T) {
	entries := []snapshotEntry{
		{Document: &document.Document{ID: "1", Content: "x"}, Embedding: []float64{1, 0}},
		{Document: &document.Document{ID: "2", Content: "y"}, Embedding: []float64{0, 1}},
		{Document: &document.Document{ID: "", Content: "skipped"}, Embedding: []float64{1, 1}},
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "chunks.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	vs := New()
	require.NoError(t, vs.LoadSnapshot(path))

	count, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{0, 0}))
}
