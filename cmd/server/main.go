package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "redline/internal/adapters/http"
	"redline/internal/adapters/ollama"
	pg "redline/internal/adapters/postgres"
	"redline/internal/config"
	"redline/internal/domain"
	ports "redline/internal/ports"
	analysissvc "redline/internal/services/analysis"
	promosvc "redline/internal/services/promotion"
	"redline/internal/services/rulematch"
	"redline/internal/services/segmenter"
	analysisworker "redline/internal/workers/analysisrunner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("warning: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pg.Migrate(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("migrations error: %v", err)
	}

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()
	db.Chunking = segmenter.ChunkOptions{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}

	// Wire repositories to services (ports)
	var _ ports.RuleRepository = db
	var _ ports.DeepAnalysisRepository = db
	var _ ports.JobRepository = db

	llm := ollama.New(cfg.OllamaBaseURL, cfg.OllamaModel,
		time.Duration(cfg.OllamaTimeoutSec)*time.Second,
		ollama.WithMaxRetries(cfg.OllamaMaxRetries))
	if err := llm.HealthCheck(ctx); err != nil {
		log.Printf("warning: ollama health check: %v", err)
	}

	matcher := rulematch.New(db, llm, cfg.MatchCacheSize)
	analysis := analysissvc.New(db, db, db, db, db, llm)
	promotion := promosvc.New(db, db, db, db, matcher)

	processor := analysisworker.ProcessorFunc(func(ctx context.Context, submissionID string, weights domain.SeverityWeights) error {
		_, err := analysis.Run(ctx, submissionID, weights)
		return err
	})

	srv := httpadapter.New(analysis, promotion, db, db, db, db, processor, llm)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	// Optional background job workers
	if cfg.AnalysisWorkers > 0 {
		go analysisworker.Run(ctx, db, processor, cfg.AnalysisWorkers, 500*time.Millisecond)
		log.Printf("analysis workers started: %d", cfg.AnalysisWorkers)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.Printf("listening on %s", cfg.ListenAddr)

	// graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutting down on %s", sig)
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Fatal(fmt.Errorf("server error: %w", err))
	}
}
