//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Command pravobot runs the legal assistant chat service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pravobot/pravobot/analytics"
	"github.com/pravobot/pravobot/config"
	"github.com/pravobot/pravobot/knowledge"
	"github.com/pravobot/pravobot/knowledge/embedder"
	embopenai "github.com/pravobot/pravobot/knowledge/embedder/openai"
	"github.com/pravobot/pravobot/knowledge/lexical"
	"github.com/pravobot/pravobot/knowledge/reranker"
	"github.com/pravobot/pravobot/knowledge/reranker/crossencoder"
	"github.com/pravobot/pravobot/knowledge/retriever/hybrid"
	ktool "github.com/pravobot/pravobot/knowledge/tool"
	"github.com/pravobot/pravobot/knowledge/vectorstore"
	"github.com/pravobot/pravobot/knowledge/vectorstore/inmemory"
	"github.com/pravobot/pravobot/knowledge/vectorstore/pgvector"
	"github.com/pravobot/pravobot/log"
	"github.com/pravobot/pravobot/model"
	"github.com/pravobot/pravobot/model/openai"
	"github.com/pravobot/pravobot/runner"
	"github.com/pravobot/pravobot/server/sse"
	"github.com/pravobot/pravobot/session"
	sessinmemory "github.com/pravobot/pravobot/session/inmemory"
	sessredis "github.com/pravobot/pravobot/session/redis"
	"github.com/pravobot/pravobot/tool"
	"github.com/pravobot/pravobot/tool/penalty"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The server comes up immediately; requests arriving before resource
	// initialization completes get the initializing message.
	srv := sse.New(sse.WithBotToken(cfg.BotToken))
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}
	go func() {
		log.Infof("Listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Initialization failure keeps the server up: clients keep getting the
	// initializing message until an operator restarts with fixed resources.
	r, cleanup, err := initializeRunner(ctx, cfg)
	if err != nil {
		log.Errorf("Failed to initialize resources: %v", err)
	} else {
		defer cleanup()
		srv.SetRunner(r)
		log.Infof("Runner initialized successfully.")
	}

	<-ctx.Done()
	log.Infof("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
}

// initializeRunner builds the model, the knowledge stack, the tools and the
// stores from the configuration.
func initializeRunner(ctx context.Context, cfg *config.Config) (*runner.Runner, func(), error) {
	log.Infof("Initializing resources with model %s", cfg.OllamaModel)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	m := openai.New(cfg.OllamaModel,
		openai.WithBaseURL(cfg.OllamaBaseURL),
		openai.WithAPIKey("ollama"),
	)

	emb := newEmbedder(cfg)
	store, err := newVectorStore(ctx, cfg, emb)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { store.Close() })

	kb, err := newKnowledge(ctx, cfg, emb, store)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	tools := map[string]tool.Tool{}
	for _, t := range []tool.Tool{
		ktool.NewSearchLawsTool(kb),
		penalty.New214FZTool(),
		penalty.NewZPPTool(),
	} {
		tools[t.Declaration().Name] = t
	}

	sessions := newSessionService(cfg)
	closers = append(closers, func() { sessions.Close() })

	var recorder *analytics.Recorder
	if rec, err := analytics.NewRecorder(filepath.Join(cfg.DataDir, "analytics.db")); err != nil {
		log.Errorf("Failed to open analytics DB, continuing without: %v", err)
	} else {
		recorder = rec
		closers = append(closers, func() { recorder.Close() })
	}

	temperature := cfg.Temperature
	r, err := runner.New(m,
		runner.WithTools(tools),
		runner.WithSessionService(sessions),
		runner.WithKnowledge(kb),
		runner.WithAnalytics(recorder),
		runner.WithConcurrency(cfg.LLMConcurrency),
		runner.WithMaxDistance(cfg.MaxDistance),
		runner.WithRetrieveLimit(cfg.RetrieverK),
		runner.WithGenerationConfig(model.GenerationConfig{
			Temperature: &temperature,
			Stream:      true,
		}),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return r, cleanup, nil
}

func newEmbedder(cfg *config.Config) embedder.Embedder {
	opts := []embopenai.Option{embopenai.WithModel(cfg.EmbeddingModel)}
	if cfg.EmbeddingURL != "" {
		opts = append(opts, embopenai.WithBaseURL(cfg.EmbeddingURL))
	}
	return embopenai.New(opts...)
}

// newVectorStore prefers pgvector when Postgres is configured and falls back
// to the in-memory store fed from the local snapshot.
func newVectorStore(ctx context.Context, cfg *config.Config, emb embedder.Embedder) (vectorstore.VectorStore, error) {
	if cfg.PostgresURL != "" {
		store, err := pgvector.New(ctx,
			pgvector.WithConnString(cfg.PostgresURL),
			pgvector.WithDimension(emb.GetDimensions()),
		)
		if err != nil {
			return nil, err
		}
		log.Infof("Using pgvector store")
		return store, nil
	}

	store := inmemory.New()
	snapshot := filepath.Join(cfg.DataDir, "chunks.json")
	if err := store.LoadSnapshot(snapshot); err != nil {
		return nil, err
	}
	log.Infof("Loaded vector snapshot from %s", snapshot)
	return store, nil
}

// newKnowledge assembles the hybrid retriever and the reranker. A missing
// BM25 snapshot degrades to dense-only retrieval; an unreachable reranker
// service degrades to the top-k passthrough.
func newKnowledge(ctx context.Context, cfg *config.Config, emb embedder.Embedder, store vectorstore.VectorStore) (knowledge.Knowledge, error) {
	retrieverOpts := []hybrid.Option{
		hybrid.WithEmbedder(emb),
		hybrid.WithVectorStore(store),
		hybrid.WithLimit(cfg.RetrieverK),
	}

	bm25Path := filepath.Join(cfg.DataDir, "bm25_index.json")
	idx := lexical.NewIndex()
	if err := idx.Load(bm25Path); err != nil {
		log.Warnf("BM25 index not found at %s. Using dense retrieval only.", bm25Path)
	} else {
		retrieverOpts = append(retrieverOpts, hybrid.WithLexicalIndex(idx))
	}

	var rr reranker.Reranker
	if cfg.RerankerURL != "" {
		ce, err := crossencoder.New(ctx, cfg.RerankerURL, crossencoder.WithTopN(cfg.RerankerK))
		if err != nil {
			log.Errorf("Failed to initialize reranker: %v. Using base retriever.", err)
		} else {
			rr = ce
		}
	}
	if rr == nil {
		rr = reranker.NewTopKReranker(reranker.WithK(cfg.RerankerK))
	}

	return knowledge.New(
		knowledge.WithRetriever(hybrid.New(retrieverOpts...)),
		knowledge.WithReranker(rr),
		knowledge.WithLimit(cfg.RetrieverK),
	)
}

func newSessionService(cfg *config.Config) session.Service {
	if cfg.RedisURL != "" {
		svc, err := sessredis.NewService(sessredis.WithRedisURL(cfg.RedisURL))
		if err != nil {
			log.Errorf("Failed to connect session Redis: %v. Falling back to in-memory.", err)
		} else {
			log.Infof("Using Redis session store")
			return svc
		}
	}
	return sessinmemory.NewService()
}
