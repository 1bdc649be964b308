package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	ListenAddr      string
	DatabaseURL     string
	AnalysisWorkers int

	OllamaBaseURL    string
	OllamaModel      string
	OllamaTimeoutSec int
	OllamaMaxRetries int

	ChunkSize      int
	ChunkOverlap   int
	MatchCacheSize int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	// Best-effort .env for local runs; env vars always win.
	_ = godotenv.Load()

	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AnalysisWorkers: getenvInt("ANALYSIS_WORKERS", 0),

		OllamaBaseURL:    getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:      getenv("OLLAMA_MODEL", "llama3.1"),
		OllamaTimeoutSec: getenvInt("OLLAMA_TIMEOUT_SECONDS", 120),
		OllamaMaxRetries: getenvInt("OLLAMA_MAX_RETRIES", 3),

		ChunkSize:      getenvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getenvInt("CHUNK_OVERLAP", 100),
		MatchCacheSize: getenvInt("MATCH_CACHE_SIZE", 512),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
