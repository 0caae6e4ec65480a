//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package sse exposes the runner over HTTP with server-sent event streaming.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pravobot/pravobot/event"
	"github.com/pravobot/pravobot/log"
	"github.com/pravobot/pravobot/model"
	"github.com/pravobot/pravobot/runner"
)

// MsgInitializing is returned while the runner is not ready yet.
const MsgInitializing = "Бот инициализируется, пожалуйста, подождите..."

// MsgHistoryCleared confirms a successful reset.
const MsgHistoryCleared = "История диалога очищена. Можем начать сначала!"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	// Direct selects the retrieval-first path without the tool loop.
	Direct bool `json:"direct,omitempty"`
}

// ResetRequest is the body of POST /reset.
type ResetRequest struct {
	UserID string `json:"user_id"`
}

// ChatChunk is one SSE data payload.
type ChatChunk struct {
	InvocationID string `json:"invocation_id"`
	Object       string `json:"object"`
	Delta        string `json:"delta,omitempty"`
	Content      string `json:"content,omitempty"`
	Done         bool   `json:"done"`
	Error        string `json:"error,omitempty"`
}

// Server serves the chat API.
type Server struct {
	router   *mux.Router
	botToken string

	// runner may be swapped in after startup; requests before that get the
	// initializing message. Guarded atomically because SetRunner races with
	// in-flight requests.
	runner atomic.Pointer[runner.Runner]
}

// Option configures the Server.
type Option func(*Server)

// WithBotToken enables bearer token authentication on chat endpoints.
func WithBotToken(token string) Option {
	return func(s *Server) {
		s.botToken = token
	}
}

// WithRunner sets the runner at construction.
func WithRunner(r *runner.Runner) Option {
	return func(s *Server) {
		s.runner.Store(r)
	}
}

// New creates the server and registers its routes.
func New(opts ...Option) *Server {
	s := &Server{router: mux.NewRouter()}
	for _, opt := range opts {
		opt(s)
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// SetRunner installs the runner once initialization finishes.
func (s *Server) SetRunner(r *runner.Runner) {
	s.runner.Store(r)
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/chat", s.auth(s.handleChat)).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/reset", s.auth(s.handleReset)).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.botToken != "" && r.Header.Get("Authorization") != "Bearer "+s.botToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.UserID == "" || req.Question == "" {
		http.Error(w, "user_id and question are required", http.StatusBadRequest)
		return
	}
	rn := s.runner.Load()
	if rn == nil {
		http.Error(w, MsgInitializing, http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	var (
		out <-chan *event.Event
		err error
	)
	if req.Direct {
		out, err = rn.AskDirect(r.Context(), req.UserID, req.Question)
	} else {
		out, err = rn.Ask(r.Context(), req.UserID, req.Question)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for evt := range out {
		chunk := convertEvent(evt)
		if chunk == nil {
			continue
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			log.Errorf("Error marshalling SSE event: %v", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	rn := s.runner.Load()
	if rn == nil {
		http.Error(w, MsgInitializing, http.StatusServiceUnavailable)
		return
	}
	if err := rn.Reset(r.Context(), req.UserID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": MsgHistoryCleared})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.runner.Load() == nil {
		http.Error(w, MsgInitializing, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// convertEvent flattens an event into the wire chunk. Internal bookkeeping
// events that carry nothing readable are dropped.
func convertEvent(evt *event.Event) *ChatChunk {
	if evt == nil || evt.Response == nil {
		return nil
	}
	chunk := &ChatChunk{
		InvocationID: evt.InvocationID,
		Object:       evt.Object,
		Done:         evt.Done,
	}
	if evt.Error != nil {
		// Raw error text stays server-side; clients only see the category.
		log.Errorf("Model error in invocation %s: %s (%s)",
			evt.InvocationID, evt.Error.Message, evt.Error.Type)
		chunk.Error = evt.Error.Type
		return chunk
	}
	switch evt.Object {
	case model.ObjectTypeToolStart:
		return chunk
	case model.ObjectTypeToolResponse:
		// Tool payloads stay internal; only the marker is forwarded.
		return chunk
	}
	if len(evt.Choices) == 0 {
		return nil
	}
	if evt.IsPartial {
		chunk.Delta = evt.Choices[0].Delta.Content
		if chunk.Delta == "" {
			return nil
		}
		return chunk
	}
	chunk.Content = evt.Choices[0].Message.Content
	if chunk.Content == "" && !evt.Done {
		return nil
	}
	return chunk
}
