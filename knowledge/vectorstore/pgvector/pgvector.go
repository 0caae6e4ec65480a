//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package pgvector provides a PostgreSQL + pgvector backed vector store.
// Unlike the in-memory store it supports keyword and hybrid search natively
// through tsvector full-text ranking, so a single store can serve all three
// search modes.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/pravobot/pravobot/knowledge/document"
	"github.com/pravobot/pravobot/knowledge/vectorstore"
)

var _ vectorstore.VectorStore = (*VectorStore)(nil)

const (
	defaultTable     = "legal_chunks"
	defaultLanguage  = "russian"
	defaultDimension = 312
	defaultLimit     = 10
)

var errDocumentCannotBeNil = errors.New("pgvector: document cannot be nil")

// VectorStore implements vectorstore.VectorStore on PostgreSQL with the
// pgvector extension.
type VectorStore struct {
	pool   *pgxpool.Pool
	option options
}

type options struct {
	connString   string
	table        string
	language     string
	dimension    int
	vectorWeight float64
	textWeight   float64
}

// Option represents a functional option for configuring the store.
type Option func(*options)

// WithConnString sets the PostgreSQL connection string.
func WithConnString(connString string) Option {
	return func(o *options) {
		o.connString = connString
	}
}

// WithTable sets the table name.
func WithTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

// WithLanguage sets the full-text search language configuration.
func WithLanguage(language string) Option {
	return func(o *options) {
		o.language = language
	}
}

// WithDimension sets the embedding dimension.
func WithDimension(dimension int) Option {
	return func(o *options) {
		o.dimension = dimension
	}
}

// WithHybridWeights sets the weights for hybrid search scoring.
// Weights are normalized to sum to 1.0; invalid input keeps the defaults.
func WithHybridWeights(vectorWeight, textWeight float64) Option {
	return func(o *options) {
		total := vectorWeight + textWeight
		if total > 0 {
			o.vectorWeight = vectorWeight / total
			o.textWeight = textWeight / total
		}
	}
}

// New creates the store, connects, and ensures the table and indexes exist.
func New(ctx context.Context, opts ...Option) (*VectorStore, error) {
	o := options{
		table:        defaultTable,
		language:     defaultLanguage,
		dimension:    defaultDimension,
		vectorWeight: 0.5,
		textWeight:   0.5,
	}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := pgxpool.New(ctx, o.connString)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}

	vs := &VectorStore{pool: pool, option: o}
	if err := vs.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, vs.option.table, vs.option.dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_fts_idx ON %s USING gin (to_tsvector('%s', content))",
			vs.option.table, vs.option.table, vs.option.language),
	}
	for _, stmt := range stmts {
		if _, err := vs.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector ensure schema: %w", err)
		}
	}
	return nil
}

// Add implements vectorstore.VectorStore.
func (vs *VectorStore) Add(ctx context.Context, doc *document.Document, embedding []float64) error {
	if doc == nil {
		return errDocumentCannotBeNil
	}
	if doc.ID == "" {
		return errors.New("pgvector: document ID cannot be empty")
	}
	if len(embedding) != vs.option.dimension {
		return fmt.Errorf("pgvector: embedding dimension mismatch: expected %d, got %d",
			vs.option.dimension, len(embedding))
	}

	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("pgvector marshal metadata: %w", err)
	}

	now := time.Now()
	_, err = vs.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s
		(id, name, content, metadata, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, content = EXCLUDED.content,
		metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding,
		updated_at = EXCLUDED.updated_at`, vs.option.table),
		doc.ID, doc.Name, doc.Content, metadata,
		pgv.NewVector(toFloat32(embedding)), now)
	if err != nil {
		return fmt.Errorf("pgvector add: %w", err)
	}
	return nil
}

// Get implements vectorstore.VectorStore.
func (vs *VectorStore) Get(ctx context.Context, id string) (*document.Document, []float64, error) {
	row := vs.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT id, name, content, metadata, embedding, created_at, updated_at FROM %s WHERE id = $1",
		vs.option.table), id)

	doc, embedding, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("pgvector: document not found: %s", id)
		}
		return nil, nil, fmt.Errorf("pgvector get: %w", err)
	}
	return doc, embedding, nil
}

// Delete implements vectorstore.VectorStore.
func (vs *VectorStore) Delete(ctx context.Context, id string) error {
	tag, err := vs.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", vs.option.table), id)
	if err != nil {
		return fmt.Errorf("pgvector delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgvector: document not found: %s", id)
	}
	return nil
}

// Search implements vectorstore.VectorStore.
func (vs *VectorStore) Search(ctx context.Context, query *vectorstore.SearchQuery) (*vectorstore.SearchResult, error) {
	if query == nil {
		return nil, errors.New("pgvector: query cannot be nil")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var sql string
	var args []any
	switch query.SearchMode {
	case vectorstore.SearchModeKeyword:
		if query.Query == "" {
			return nil, errors.New("pgvector: keyword is required for keyword search")
		}
		sql = fmt.Sprintf(`SELECT id, name, content, metadata,
			ts_rank_cd(to_tsvector('%[1]s', content), plainto_tsquery('%[1]s', $1)) AS score
			FROM %[2]s
			WHERE to_tsvector('%[1]s', content) @@ plainto_tsquery('%[1]s', $1)
			ORDER BY score DESC LIMIT $2`, vs.option.language, vs.option.table)
		args = []any{query.Query, limit}

	case vectorstore.SearchModeHybrid:
		if len(query.Vector) == 0 || query.Query == "" {
			return nil, errors.New("pgvector: vector and keyword are required for hybrid search")
		}
		sql = fmt.Sprintf(`SELECT id, name, content, metadata,
			(1 - (embedding <=> $1)) * %.3f +
			ts_rank_cd(to_tsvector('%s', content), plainto_tsquery('%s', $2)) * %.3f AS score
			FROM %s
			ORDER BY score DESC LIMIT $3`,
			vs.option.vectorWeight, vs.option.language, vs.option.language,
			vs.option.textWeight, vs.option.table)
		args = []any{pgv.NewVector(toFloat32(query.Vector)), query.Query, limit}

	default: // SearchModeVector
		if len(query.Vector) == 0 {
			return nil, errors.New("pgvector: vector is required for vector search")
		}
		sql = fmt.Sprintf(`SELECT id, name, content, metadata,
			1 - (embedding <=> $1) AS score
			FROM %s
			ORDER BY score DESC LIMIT $2`, vs.option.table)
		args = []any{pgv.NewVector(toFloat32(query.Vector)), limit}
	}

	rows, err := vs.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	result := &vectorstore.SearchResult{}
	for rows.Next() {
		var (
			doc      document.Document
			metadata []byte
			score    float64
		)
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("pgvector unmarshal metadata: %w", err)
			}
		}
		if score < query.MinScore {
			continue
		}
		result.Results = append(result.Results, &vectorstore.ScoredDocument{
			Document: &doc,
			Score:    score,
		})
	}
	return result, rows.Err()
}

// Count implements vectorstore.VectorStore.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.option.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgvector count: %w", err)
	}
	return count, nil
}

// Close implements vectorstore.VectorStore.
func (vs *VectorStore) Close() error {
	vs.pool.Close()
	return nil
}

func scanDocument(row pgx.Row) (*document.Document, []float64, error) {
	var (
		doc       document.Document
		metadata  []byte
		embedding pgv.Vector
	)
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Content, &metadata,
		&embedding, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, nil, err
		}
	}
	return &doc, toFloat64(embedding.Slice()), nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
