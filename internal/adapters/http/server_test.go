package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline/internal/domain"
	"redline/internal/ports"
	analysisrunner "redline/internal/workers/analysisrunner"
)

type fakeAnalysis struct {
	record  domain.DeepAnalysisRecord
	err     error
	weights domain.SeverityWeights
}

func (f *fakeAnalysis) Run(ctx context.Context, submissionID string, weights domain.SeverityWeights) (domain.DeepAnalysisRecord, error) {
	f.weights = weights
	return f.record, f.err
}

func (f *fakeAnalysis) RunStreaming(ctx context.Context, submissionID string, weights domain.SeverityWeights, sink ports.ProgressSink) (domain.DeepAnalysisRecord, error) {
	f.weights = weights
	if f.err != nil {
		return domain.DeepAnalysisRecord{}, f.err
	}
	sink.Emit(ports.ProgressEvent{Status: "started", TotalUnits: f.record.TotalUnits})
	sink.Emit(ports.ProgressEvent{Status: "complete", Progress: 100, AverageScore: f.record.AverageScore})
	return f.record, nil
}

func (f *fakeAnalysis) Results(ctx context.Context, submissionID string) (domain.DeepAnalysisRecord, error) {
	return f.record, f.err
}

type fakePromotion struct {
	err    error
	synced []string
}

func (f *fakePromotion) Sync(ctx context.Context, submissionID string) error {
	if f.err != nil {
		return f.err
	}
	f.synced = append(f.synced, submissionID)
	return nil
}

type fakeSubmissions struct {
	submission domain.Submission
	err        error
}

func (f *fakeSubmissions) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	return f.submission, f.err
}

type fakeChecks struct {
	check domain.ComplianceCheck
	err   error
}

func (f *fakeChecks) GetCheckBySubmission(ctx context.Context, submissionID string) (domain.ComplianceCheck, error) {
	return f.check, f.err
}
func (f *fakeChecks) UpdateCheckScores(ctx context.Context, check domain.ComplianceCheck) error {
	return nil
}

type fakeFindings struct {
	findings []domain.Finding
}

func (f *fakeFindings) ListFindings(ctx context.Context, checkID string) ([]domain.Finding, error) {
	return f.findings, nil
}
func (f *fakeFindings) ReplaceFindings(ctx context.Context, checkID string, findings []domain.Finding) error {
	return nil
}

type fakeJobQueue struct {
	jobID     string
	enqueued  []string
	lastBytes []byte
	completed []string
	failed    []string
}

func (f *fakeJobQueue) EnqueueAnalysis(ctx context.Context, submissionID string, weights []byte) (string, error) {
	f.enqueued = append(f.enqueued, submissionID)
	f.lastBytes = weights
	return f.jobID, nil
}
func (f *fakeJobQueue) ClaimNext(ctx context.Context) (ports.AnalysisJob, bool, error) {
	return ports.AnalysisJob{}, false, nil
}
func (f *fakeJobQueue) MarkCompleted(ctx context.Context, jobID string) error {
	f.completed = append(f.completed, jobID)
	return nil
}
func (f *fakeJobQueue) MarkFailed(ctx context.Context, jobID string, reason string) error {
	f.failed = append(f.failed, jobID)
	return nil
}
func (f *fakeJobQueue) StartJobForSubmission(ctx context.Context, submissionID string) (string, error) {
	// Only a previously enqueued job can be started.
	if len(f.enqueued) == 0 {
		return "", ports.ErrNotFound
	}
	return f.jobID, nil
}

type healthDetector struct{ err error }

func (h *healthDetector) Detect(ctx context.Context, unitText string, position int, documentLabel string, rules []domain.Rule) ports.DetectResult {
	return ports.DetectResult{}
}
func (h *healthDetector) HealthCheck(ctx context.Context) error { return h.err }

type serverFixture struct {
	analysis    *fakeAnalysis
	promotion   *fakePromotion
	submissions *fakeSubmissions
	checks      *fakeChecks
	findings    *fakeFindings
	jobs        *fakeJobQueue
	detector    *healthDetector
	handler     http.Handler
}

func newFixture() *serverFixture {
	f := &serverFixture{
		analysis:    &fakeAnalysis{},
		promotion:   &fakePromotion{},
		submissions: &fakeSubmissions{submission: domain.Submission{ID: "sub-1", Title: "Fund brochure"}},
		checks:      &fakeChecks{check: domain.ComplianceCheck{ID: "chk-1", SubmissionID: "sub-1", OverallScore: 85.0, Grade: "B", Status: "flagged"}},
		findings:    &fakeFindings{},
		jobs:        &fakeJobQueue{jobID: "job-1"},
		detector:    &healthDetector{},
	}
	// Same shape as the production wiring: the processor drains a job by
	// running the orchestrator.
	processor := analysisrunner.ProcessorFunc(func(ctx context.Context, submissionID string, weights domain.SeverityWeights) error {
		_, err := f.analysis.Run(ctx, submissionID, weights)
		return err
	})
	f.handler = New(f.analysis, f.promotion, f.submissions, f.checks, f.findings, f.jobs, processor, f.detector).Routes()
	return f
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestGetHealthz(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.detector.err = errors.New("model missing")
	rec = f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rec.Body.String())
}

func TestGetCheck(t *testing.T) {
	f := newFixture()
	ruleID := "r1"
	f.findings.findings = []domain.Finding{{ID: "f1", RuleID: &ruleID, Severity: domain.SeverityHigh, Category: domain.CategoryBrand, Description: "off tone"}}

	rec := f.do(t, http.MethodGet, "/api/compliance/sub-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body checkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "chk-1", body.ID)
	assert.Equal(t, 85.0, body.OverallScore)
	require.Len(t, body.Findings, 1)
	assert.Equal(t, "r1", *body.Findings[0].RuleID)
}

func TestGetCheckNotFound(t *testing.T) {
	f := newFixture()
	f.checks.err = ports.ErrNotFound
	rec := f.do(t, http.MethodGet, "/api/compliance/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostDeepAnalyzeSync(t *testing.T) {
	f := newFixture()
	f.analysis.record = domain.DeepAnalysisRecord{
		CheckID:      "chk-1",
		TotalUnits:   3,
		AverageScore: 88.5,
		Status:       domain.AnalysisCompleted,
		CreatedAt:    time.Now(),
	}

	rec := f.do(t, http.MethodPost, "/api/compliance/sub-1/deep-analyze",
		`{"severity_weights":{"critical":2.0,"high":1.5,"medium":1.0,"low":0.5}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, domain.StrictWeights(), f.analysis.weights)

	var body recordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sub-1", body.SubmissionID)
	assert.Equal(t, 88.5, body.AverageScore)
	assert.Equal(t, "completed", body.Status)
	assert.NotNil(t, body.Units)

	// The blocking path still tracks the run through the job queue.
	assert.Equal(t, []string{"sub-1"}, f.jobs.enqueued)
	assert.Equal(t, []string{"job-1"}, f.jobs.completed)
}

func TestPostDeepAnalyzeUnknownSubmission(t *testing.T) {
	f := newFixture()
	f.submissions.err = ports.ErrNotFound

	for _, path := range []string{
		"/api/compliance/ghost/deep-analyze",
		"/api/compliance/ghost/deep-analyze?async=true",
	} {
		rec := f.do(t, http.MethodPost, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "path: %s", path)
	}
	// Nothing was persisted for the missing submission.
	assert.Empty(t, f.jobs.enqueued)
}

func TestPostDeepAnalyzeRunFailureMarksJob(t *testing.T) {
	f := newFixture()
	f.analysis.err = errors.New("detector wiring broken")

	rec := f.do(t, http.MethodPost, "/api/compliance/sub-1/deep-analyze", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"job-1"}, f.jobs.failed)
	assert.Empty(t, f.jobs.completed)
}

func TestPostDeepAnalyzeDefaultsWeights(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/compliance/sub-1/deep-analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BalancedWeights(), f.analysis.weights)
}

func TestPostDeepAnalyzeBadBody(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/compliance/sub-1/deep-analyze", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostDeepAnalyzeAsync(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/compliance/sub-1/deep-analyze?async=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-1"}`, rec.Body.String())
	assert.Equal(t, []string{"sub-1"}, f.jobs.enqueued)

	var queued domain.SeverityWeights
	require.NoError(t, json.Unmarshal(f.jobs.lastBytes, &queued))
	assert.Equal(t, domain.BalancedWeights(), queued)
}

func TestGetDeepResultsNotFound(t *testing.T) {
	f := newFixture()
	f.analysis.err = ports.ErrNotFound
	rec := f.do(t, http.MethodGet, "/api/compliance/sub-1/deep-results", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPresets(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/compliance/deep-analyze/presets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Presets map[string]struct {
			Critical    float64 `json:"critical"`
			Description string  `json:"description"`
		} `json:"presets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Presets, 3)
	assert.Equal(t, 2.0, body.Presets["strict"].Critical)
	assert.Equal(t, 1.5, body.Presets["balanced"].Critical)
	assert.Equal(t, 1.0, body.Presets["lenient"].Critical)
}

func TestPostSync(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/compliance/sub-1/deep-analysis/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sub-1"}, f.promotion.synced)

	f.promotion.err = ports.ErrNotFound
	rec = f.do(t, http.MethodPost, "/api/compliance/sub-1/deep-analysis/sync", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamDeepAnalyze(t *testing.T) {
	f := newFixture()
	f.analysis.record = domain.DeepAnalysisRecord{TotalUnits: 2, AverageScore: 91.0}

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/compliance/sub-1/deep-analyze/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{
		"severity_weights": map[string]float64{"critical": 2.0, "high": 1.5, "medium": 1.0, "low": 0.5},
	}))

	var started ports.ProgressEvent
	require.NoError(t, wsjson.Read(ctx, conn, &started))
	assert.Equal(t, "started", started.Status)
	assert.Equal(t, 2, started.TotalUnits)

	var complete ports.ProgressEvent
	require.NoError(t, wsjson.Read(ctx, conn, &complete))
	assert.Equal(t, "complete", complete.Status)
	assert.Equal(t, 91.0, complete.AverageScore)

	assert.Equal(t, domain.StrictWeights(), f.analysis.weights)
}
