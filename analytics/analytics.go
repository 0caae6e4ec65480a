//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package analytics records answered questions to a local SQLite database.
// Logging is best effort and never propagates failures into the answer path.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pravobot/pravobot/log"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS chat_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT,
	timestamp DATETIME,
	question TEXT,
	answer TEXT,
	retrieved_context_sources TEXT
)`

const insertSQL = `
INSERT INTO chat_logs (user_id, timestamp, question, answer, retrieved_context_sources)
VALUES (?, ?, ?, ?, ?)`

// Recorder writes chat interactions to SQLite.
type Recorder struct {
	db *sql.DB
}

// Entry is one logged interaction.
type Entry struct {
	UserID   string
	Question string
	Answer   string
	// Sources lists the knowledge sources retrieved for the answer,
	// comma separated. Empty when retrieval was not involved.
	Sources string
}

// NewRecorder opens (creating if needed) the analytics database at path and
// ensures the chat_logs table exists.
func NewRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("analytics: open %s: %w", path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics: init schema: %w", err)
	}
	log.Infof("Analytics DB initialized at %s", path)
	return &Recorder{db: db}, nil
}

// LogChat records one interaction. Failures are logged and swallowed so a
// broken analytics store never affects answering.
func (r *Recorder) LogChat(ctx context.Context, entry Entry) {
	if r == nil || r.db == nil {
		return
	}
	_, err := r.db.ExecContext(ctx, insertSQL,
		entry.UserID, time.Now(), entry.Question, entry.Answer, entry.Sources)
	if err != nil {
		log.Errorf("Failed to log chat: %v", err)
	}
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
