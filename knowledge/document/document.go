//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package document defines the document chunk unit used by the knowledge base.
package document

import (
	"fmt"
	"time"
)

// Metadata keys used for citation display. All of them are advisory:
// absence of a key omits that citation detail, it is never an error.
const (
	MetaSource  = "source"
	MetaChapter = "chapter"
	MetaArticle = "article"
	MetaTitle   = "title"
	MetaChunkID = "chunk_id"
)

// Document represents an immutable chunk of source text with metadata.
type Document struct {
	// ID is the unique identifier of the document chunk.
	ID string `json:"id"`

	// Name is a human-readable name for the document.
	Name string `json:"name,omitempty"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Metadata carries advisory citation fields (source, chapter, article,
	// title, chunk_id).
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at,omitempty"`

	// UpdatedAt is the last update timestamp.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsEmpty reports whether the document carries no content.
func (d *Document) IsEmpty() bool {
	return d == nil || d.Content == ""
}

// Clone creates a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Metadata != nil {
		clone.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// MetaString returns the metadata value for key rendered as a string, or ""
// when the key is absent. Non-string values (e.g. numeric chunk_id from JSON
// decoding) are formatted with fmt.Sprint.
func (d *Document) MetaString(key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	val, ok := d.Metadata[key]
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}
