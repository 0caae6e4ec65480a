//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package crossencoder provides a reranker backed by an external
// cross-encoder scoring service (text-embeddings-inference style /rerank
// endpoint). Pairs are scored through a bounded goroutine pool.
//
// Construction pings the service once; an unreachable service fails New so
// that callers can decide the fallback mode up front instead of degrading
// per request.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/pravobot/pravobot/knowledge/reranker"
)

var _ reranker.Reranker = (*Reranker)(nil)

const (
	defaultTopN     = 3
	defaultPoolSize = 4
	defaultTimeout  = 30 * time.Second
)

// Reranker scores (query, document) pairs against a cross-encoder service.
type Reranker struct {
	baseURL string
	model   string
	topN    int
	client  *http.Client
	pool    *ants.Pool
}

// Option represents a functional option for configuring the Reranker.
type Option func(*Reranker)

// WithModel sets the cross-encoder model identifier sent to the service.
func WithModel(model string) Option {
	return func(r *Reranker) {
		r.model = model
	}
}

// WithTopN sets how many results the reranker keeps.
func WithTopN(topN int) Option {
	return func(r *Reranker) {
		if topN > 0 {
			r.topN = topN
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Reranker) {
		r.client = client
	}
}

// New creates a cross-encoder reranker and verifies the scoring service is
// reachable. Initialization failure is returned to the caller, which is
// expected to fall back to an unranked mode.
func New(ctx context.Context, baseURL string, opts ...Option) (*Reranker, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("crossencoder: base URL is required")
	}

	r := &Reranker{
		baseURL: baseURL,
		topN:    defaultTopN,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, fmt.Errorf("crossencoder: create scoring pool: %w", err)
	}
	r.pool = pool

	if err := r.ping(ctx); err != nil {
		pool.Release()
		return nil, fmt.Errorf("crossencoder: service unreachable: %w", err)
	}
	return r, nil
}

// ping probes the scoring service with a trivial pair.
func (r *Reranker) ping(ctx context.Context) error {
	_, err := r.score(ctx, "ping", "ping")
	return err
}

// scoreRequest is the body of one scoring call.
type scoreRequest struct {
	Model string `json:"model,omitempty"`
	Query string `json:"query"`
	Text  string `json:"text"`
}

// scoreResponse is the body of one scoring result.
type scoreResponse struct {
	Score float64 `json:"score"`
}

// score sends one (query, text) pair to the service.
func (r *Reranker) score(ctx context.Context, query, text string) (float64, error) {
	body, err := json.Marshal(scoreRequest{Model: r.model, Query: query, Text: text})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("rerank status %d: %s", resp.StatusCode, payload)
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return 0, err
	}
	return sr.Score, nil
}

// Rerank implements the reranker.Reranker interface. Pairs are scored
// concurrently through the pool; the cross-encoder score replaces the
// original ranking and the set is truncated to top N.
func (r *Reranker) Rerank(ctx context.Context, query string, results []*reranker.Result) ([]*reranker.Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	rescored := make([]*reranker.Result, len(results))
	errs := make([]error, len(results))

	var wg sync.WaitGroup
	for i, res := range results {
		wg.Add(1)
		i, res := i, res
		submitErr := r.pool.Submit(func() {
			defer wg.Done()
			score, err := r.score(ctx, query, res.Document.Content)
			if err != nil {
				errs[i] = err
				return
			}
			rescored[i] = &reranker.Result{Document: res.Document, Score: score}
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("crossencoder rerank: %w", err)
		}
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Score > rescored[j].Score
	})
	if len(rescored) > r.topN {
		rescored = rescored[:r.topN]
	}
	return rescored, nil
}

// Close releases the scoring pool.
func (r *Reranker) Close() {
	r.pool.Release()
}
