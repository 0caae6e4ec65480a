//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaString(t *testing.T) {
	doc := &Document{
		ID:      "doc-1",
		Content: "text",
		Metadata: map[string]any{
			MetaSource:  "ЗоЗПП",
			MetaArticle: "18",
			MetaChunkID: float64(12),
			"count":     7,
			"empty":     nil,
		},
	}

	assert.Equal(t, "ЗоЗПП", doc.MetaString(MetaSource))
	assert.Equal(t, "18", doc.MetaString(MetaArticle))
	// JSON decoding turns numeric chunk ids into float64; they must still
	// render as plain numbers for citations.
	assert.Equal(t, "12", doc.MetaString(MetaChunkID))
	assert.Equal(t, "7", doc.MetaString("count"))
	assert.Equal(t, "", doc.MetaString("empty"))
	assert.Equal(t, "", doc.MetaString("missing"))
	assert.Equal(t, "", (*Document)(nil).MetaString(MetaSource))
	assert.Equal(t, "", (&Document{}).MetaString(MetaSource))
}

func TestMetaStringAfterJSONRoundTrip(t *testing.T) {
	raw := `{"id":"c12","content":"Статья 18.","metadata":{"chunk_id":12,"source":"ЗоЗПП"}}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "12", doc.MetaString(MetaChunkID))
	assert.Equal(t, "ЗоЗПП", doc.MetaString(MetaSource))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, (*Document)(nil).IsEmpty())
	assert.True(t, (&Document{ID: "x"}).IsEmpty())
	assert.False(t, (&Document{Content: "text"}).IsEmpty())
}

func TestClone(t *testing.T) {
	doc := &Document{
		ID:       "doc-1",
		Content:  "text",
		Metadata: map[string]any{MetaSource: "ГК РФ"},
	}
	clone := doc.Clone()
	require.NotNil(t, clone)

	clone.Metadata[MetaSource] = "changed"
	assert.Equal(t, "ГК РФ", doc.Metadata[MetaSource])
	assert.Nil(t, (*Document)(nil).Clone())
}
