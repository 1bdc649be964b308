package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"redline/internal/domain"
	"redline/internal/ports"
	analysisrunner "redline/internal/workers/analysisrunner"
)

// AnalysisService is the orchestrator surface the handlers need.
type AnalysisService interface {
	RunStreaming(ctx context.Context, submissionID string, weights domain.SeverityWeights, sink ports.ProgressSink) (domain.DeepAnalysisRecord, error)
	Results(ctx context.Context, submissionID string) (domain.DeepAnalysisRecord, error)
}

// PromotionService promotes audit findings into the parent check.
type PromotionService interface {
	Sync(ctx context.Context, submissionID string) error
}

type Server struct {
	analysis    AnalysisService
	promotion   PromotionService
	submissions ports.SubmissionRepository
	checks      ports.CheckRepository
	findings    ports.FindingRepository
	jobs        ports.JobRepository
	processor   analysisrunner.Processor
	detector    ports.Detector
}

func New(analysis AnalysisService, promotion PromotionService, submissions ports.SubmissionRepository, checks ports.CheckRepository, findings ports.FindingRepository, jobs ports.JobRepository, processor analysisrunner.Processor, detector ports.Detector) *Server {
	return &Server{analysis: analysis, promotion: promotion, submissions: submissions, checks: checks, findings: findings, jobs: jobs, processor: processor, detector: detector}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.getHealthz)
	r.Route("/api/compliance", func(r chi.Router) {
		r.Get("/deep-analyze/presets", s.getPresets)
		r.Get("/{submissionID}", s.getCheck)
		r.Post("/{submissionID}/deep-analyze", s.postDeepAnalyze)
		r.Get("/{submissionID}/deep-results", s.getDeepResults)
		r.Get("/{submissionID}/deep-analyze/stream", s.streamDeepAnalyze)
		r.Post("/{submissionID}/deep-analysis/sync", s.postSync)
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.detector.HealthCheck(r.Context()); err != nil {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) getCheck(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	check, err := s.checks.GetCheckBySubmission(r.Context(), submissionID)
	if err != nil {
		respondErr(w, err)
		return
	}
	findings, err := s.findings.ListFindings(r.Context(), check.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkResponseFrom(check, findings))
}

func (s *Server) postDeepAnalyze(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	weights, err := decodeWeightsBody(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	// Missing submission is a not-found condition before any persistence.
	if _, err := s.submissions.GetSubmission(r.Context(), submissionID); err != nil {
		respondErr(w, err)
		return
	}

	payload, _ := json.Marshal(weights)
	jobID, err := s.jobs.EnqueueAnalysis(r.Context(), submissionID, payload)
	if err != nil {
		respondErr(w, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
		return
	}

	// Blocking path: drain the queued job with the same processor the
	// background workers use.
	if err := analysisrunner.ProcessInline(r.Context(), s.jobs, s.processor, submissionID, weights); err != nil {
		respondErr(w, err)
		return
	}
	record, err := s.analysis.Results(r.Context(), submissionID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recordResponseFrom(submissionID, record))
}

func (s *Server) getDeepResults(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	record, err := s.analysis.Results(r.Context(), submissionID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recordResponseFrom(submissionID, record))
}

func (s *Server) getPresets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"presets": map[string]any{
			"strict":   presetBody(domain.StrictWeights(), "Harsh penalties - suitable for final review"),
			"balanced": presetBody(domain.BalancedWeights(), "Standard weighting - recommended default"),
			"lenient":  presetBody(domain.LenientWeights(), "Reduced penalties - good for initial drafts"),
		},
	})
}

func (s *Server) postSync(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	if err := s.promotion.Sync(r.Context(), submissionID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Results synced to overview"})
}

func presetBody(w domain.SeverityWeights, description string) map[string]any {
	return map[string]any{
		"critical":    w.Critical,
		"high":        w.High,
		"medium":      w.Medium,
		"low":         w.Low,
		"description": description,
	}
}

func decodeWeightsBody(r *http.Request) (domain.SeverityWeights, error) {
	weights := domain.BalancedWeights()
	if r.Body == nil || r.ContentLength == 0 {
		return weights, nil
	}
	var body struct {
		SeverityWeights *domain.SeverityWeights `json:"severity_weights"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return weights, errors.New("invalid request body")
	}
	if body.SeverityWeights != nil {
		weights = body.SeverityWeights.Clamp()
	}
	return weights, nil
}

func respondErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, errorBody(err.Error()))
		return
	}
	log.Printf("http: %v", err)
	respondJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}
