//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/pravobot/pravobot/log"
)

// Config holds the full runtime configuration.
type Config struct {
	// BotToken authenticates requests to the chat API surface.
	BotToken string

	// ListenAddr is the HTTP server bind address.
	ListenAddr string

	// Model settings.
	OllamaBaseURL string
	OllamaModel   string
	Temperature   float64

	// Retrieval settings.
	EmbeddingModel string
	EmbeddingURL   string
	RerankerURL    string
	RetrieverK     int
	RerankerK      int

	// MaxDistance gates direct retrieval answers. Zero disables the gate.
	MaxDistance float64

	// Storage locations.
	DataDir     string
	PostgresURL string
	RedisURL    string

	// LLMConcurrency bounds concurrent generations.
	LLMConcurrency int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present. BotToken is required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env file: %v", err)
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("environment variable BOT_TOKEN is required but not set")
	}

	return &Config{
		BotToken:       botToken,
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "qwen2.5:7b"),
		Temperature:    getFloatEnv("TEMPERATURE", 0.3),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "cointegrated/rubert-tiny2"),
		EmbeddingURL:   getEnv("EMBEDDING_URL", ""),
		RerankerURL:    getEnv("RERANKER_URL", ""),
		RetrieverK:     getIntEnv("RETRIEVER_K", 4),
		RerankerK:      getIntEnv("RERANKER_K", 3),
		MaxDistance:    getFloatEnv("MAX_DISTANCE", 0),
		DataDir:        getEnv("DATA_DIR", "db"),
		PostgresURL:    getEnv("POSTGRES_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		LLMConcurrency: getIntEnv("LLM_CONCURRENCY", 1),
	}, nil
}

func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(name string, fallback int) int {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("Invalid integer for %s: %s. Using default: %d", name, value, fallback)
		return fallback
	}
	return parsed
}

func getFloatEnv(name string, fallback float64) float64 {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warnf("Invalid float for %s: %s. Using default: %g", name, value, fallback)
		return fallback
	}
	return parsed
}
