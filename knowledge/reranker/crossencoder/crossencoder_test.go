//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pravobot/pravobot/knowledge/document"
	"github.com/pravobot/pravobot/knowledge/reranker"
)

// scoreBykeyword serves /rerank with scores keyed by document text. Unknown
// texts (including the construction ping) score zero.
func scoreByKeyword(t *testing.T, scores map[string]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(scoreResponse{Score: scores[req.Text]})
	}))
}

func pair(content string, score float64) *reranker.Result {
	return &reranker.Result{
		Document: &document.Document{ID: content, Content: content},
		Score:    score,
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}

func TestNewFailsWhenServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no model loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestRerankReordersByServiceScore(t *testing.T) {
	srv := scoreByKeyword(t, map[string]float64{
		"про неустойку": 0.9,
		"про отпуск":    0.2,
		"про налоги":    0.5,
	})
	defer srv.Close()

	r, err := New(context.Background(), srv.URL)
	require.NoError(t, err)
	defer r.Close()

	// The initial retrieval order is deliberately wrong.
	results, err := r.Rerank(context.Background(), "неустойка по ДДУ", []*reranker.Result{
		pair("про отпуск", 0.99),
		pair("про налоги", 0.98),
		pair("про неустойку", 0.01),
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "про неустойку", results[0].Document.Content)
	assert.Equal(t, "про налоги", results[1].Document.Content)
	assert.Equal(t, "про отпуск", results[2].Document.Content)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
}

func TestRerankTruncatesToTopN(t *testing.T) {
	srv := scoreByKeyword(t, map[string]float64{"a": 3, "b": 2, "c": 1})
	defer srv.Close()

	r, err := New(context.Background(), srv.URL, WithTopN(2))
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "q", []*reranker.Result{
		pair("c", 0), pair("a", 0), pair("b", 0),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Document.Content)
	assert.Equal(t, "b", results[1].Document.Content)
}

func TestRerankEmptyInput(t *testing.T) {
	srv := scoreByKeyword(t, nil)
	defer srv.Close()

	r, err := New(context.Background(), srv.URL)
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerankPropagatesScoringFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Let the construction ping through, fail everything after it.
		if calls == 1 {
			json.NewEncoder(w).Encode(scoreResponse{Score: 0})
			return
		}
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := New(context.Background(), srv.URL)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "q", []*reranker.Result{pair("a", 0)})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 500"))
}

func TestWithModelSentToService(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		json.NewEncoder(w).Encode(scoreResponse{Score: 0})
	}))
	defer srv.Close()

	r, err := New(context.Background(), srv.URL, WithModel("BAAI/bge-reranker-v2-m3"))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "q", []*reranker.Result{pair("a", 0)})
	require.NoError(t, err)
	assert.Equal(t, "BAAI/bge-reranker-v2-m3", gotModel)
}
