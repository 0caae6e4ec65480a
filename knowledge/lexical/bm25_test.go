//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package lexical

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pravobot/pravobot/knowledge/document"
)

func newTestDocs() []*document.Document {
	return []*document.Document{
		{ID: "1", Content: "Неустойка по договору долевого участия рассчитывается от цены договора."},
		{ID: "2", Content: "Потребитель вправе требовать неустойку за просрочку выполнения работ."},
		{ID: "3", Content: "Гарантийный срок на товар устанавливается изготовителем."},
	}
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Неустойка по 214-ФЗ, статья 6!")
	assert.Equal(t, []string{"неустойка", "по", "214", "фз", "статья", "6"}, tokens)
}

func TestSearchRanksMatchingDocsFirst(t *testing.T) {
	idx := NewIndex()
	idx.Add(newTestDocs()...)
	require.Equal(t, 3, idx.Len())

	results, err := idx.Search(context.Background(), "неустойка по договору", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Tokens are matched verbatim, so only the first document hits all
	// three query terms.
	assert.Equal(t, "1", results[0].Document.ID)
	for _, r := range results {
		assert.NotEqual(t, "3", r.Document.ID)
		assert.Greater(t, r.Score, 0.0)
	}
}

func TestSearchLimit(t *testing.T) {
	idx := NewIndex()
	idx.Add(newTestDocs()...)

	results, err := idx.Search(context.Background(), "неустойка", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchEmptyQueryAndEmptyIndex(t *testing.T) {
	idx := NewIndex()

	results, err := idx.Search(context.Background(), "что угодно", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	idx.Add(newTestDocs()...)
	results, err = idx.Search(context.Background(), "!!!", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchCancelledContext(t *testing.T) {
	idx := NewIndex()
	idx.Add(newTestDocs()...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, "неустойка", 5)
	require.Error(t, err)
}

func TestLoadSnapshot(t *testing.T) {
	data, err := json.Marshal(newTestDocs())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bm25_index.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	idx := NewIndex()
	require.NoError(t, idx.Load(path))
	assert.Equal(t, 3, idx.Len())

	require.Error(t, NewIndex().Load(filepath.Join(t.TempDir(), "missing.json")))
}
