//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package lexical provides an in-process BM25 term-frequency index over the
// pre-chunked corpus. The offline ingestion pipeline persists the chunk list
// as a JSON snapshot; Load restores it and builds the posting lists.
package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pravobot/pravobot/knowledge/document"
)

// BM25 parameters. Standard Okapi defaults.
const (
	k1 = 1.5
	b  = 0.75
)

// ScoredDocument is a lexical match with its BM25 score (higher is better).
type ScoredDocument struct {
	Document *document.Document
	Score    float64
}

// Index is a BM25 index over document chunks. Built once, read-only after
// Load, safe for concurrent readers.
type Index struct {
	mu        sync.RWMutex
	docs      []*document.Document
	docTokens [][]string
	docFreq   map[string]int
	avgDocLen float64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		docFreq: make(map[string]int),
	}
}

// Load restores the index from a JSON snapshot of document chunks.
func (idx *Index) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read lexical snapshot %s: %w", path, err)
	}

	var docs []*document.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("decode lexical snapshot %s: %w", path, err)
	}

	idx.Add(docs...)
	return nil
}

// Add indexes the given documents.
func (idx *Index) Add(docs ...*document.Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, doc := range docs {
		if doc.IsEmpty() {
			continue
		}
		tokens := Tokenize(doc.Content)
		if len(tokens) == 0 {
			continue
		}
		idx.docs = append(idx.docs, doc)
		idx.docTokens = append(idx.docTokens, tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			idx.docFreq[tok]++
		}
	}

	var total int
	for _, tokens := range idx.docTokens {
		total += len(tokens)
	}
	if len(idx.docTokens) > 0 {
		idx.avgDocLen = float64(total) / float64(len(idx.docTokens))
	}
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search returns the top-k BM25 matches for the query. An empty result is a
// valid outcome, not an error.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]*ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 || len(idx.docs) == 0 {
		return nil, nil
	}

	n := float64(len(idx.docs))
	scored := make([]*ScoredDocument, 0, len(idx.docs))
	for i, doc := range idx.docs {
		tokens := idx.docTokens[i]
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}

		var score float64
		docLen := float64(len(tokens))
		for _, qt := range queryTokens {
			freq := float64(tf[qt])
			if freq == 0 {
				continue
			}
			df := float64(idx.docFreq[qt])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * (freq * (k1 + 1)) / (freq + k1*(1-b+b*docLen/idx.avgDocLen))
		}
		if score > 0 {
			scored = append(scored, &ScoredDocument{Document: doc, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Tokenize lowercases the text and splits it on non-letter, non-digit runes.
// Works for both Cyrillic and Latin text.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
