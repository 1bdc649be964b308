package analysisrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline/internal/domain"
	"redline/internal/ports"
)

type fakeJobs struct {
	mu        sync.Mutex
	queue     []ports.AnalysisJob
	completed []string
	failed    map[string]string
	startID   string
	startErr  error
}

func newFakeJobs(jobs ...ports.AnalysisJob) *fakeJobs {
	return &fakeJobs{queue: jobs, failed: make(map[string]string)}
}

func (f *fakeJobs) EnqueueAnalysis(ctx context.Context, submissionID string, weights []byte) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeJobs) ClaimNext(ctx context.Context) (ports.AnalysisJob, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return ports.AnalysisJob{}, false, nil
	}
	job := f.queue[0]
	f.queue = f.queue[1:]
	return job, true, nil
}

func (f *fakeJobs) MarkCompleted(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, jobID)
	return nil
}

func (f *fakeJobs) MarkFailed(ctx context.Context, jobID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[jobID] = reason
	return nil
}

func (f *fakeJobs) StartJobForSubmission(ctx context.Context, submissionID string) (string, error) {
	return f.startID, f.startErr
}

func (f *fakeJobs) snapshot() ([]string, map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	completed := append([]string(nil), f.completed...)
	failed := make(map[string]string, len(f.failed))
	for k, v := range f.failed {
		failed[k] = v
	}
	return completed, failed
}

func TestRunProcessesQueuedJobs(t *testing.T) {
	repo := newFakeJobs(
		ports.AnalysisJob{ID: "j1", SubmissionID: "s1"},
		ports.AnalysisJob{ID: "j2", SubmissionID: "s2", Weights: []byte(`{"critical":2.0,"high":1.5,"medium":1.0,"low":0.5}`)},
	)

	var mu sync.Mutex
	seen := make(map[string]domain.SeverityWeights)
	processor := ProcessorFunc(func(ctx context.Context, submissionID string, weights domain.SeverityWeights) error {
		mu.Lock()
		defer mu.Unlock()
		seen[submissionID] = weights
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Run(ctx, repo, processor, 2, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		completed, _ := repo.snapshot()
		return len(completed) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// Missing weights payload falls back to the balanced preset.
	assert.Equal(t, domain.BalancedWeights(), seen["s1"])
	assert.Equal(t, domain.StrictWeights(), seen["s2"])
}

func TestRunMarksFailedJobs(t *testing.T) {
	repo := newFakeJobs(ports.AnalysisJob{ID: "j1", SubmissionID: "s1"})
	processor := ProcessorFunc(func(ctx context.Context, submissionID string, weights domain.SeverityWeights) error {
		return errors.New("submission vanished")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Run(ctx, repo, processor, 1, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, failed := repo.snapshot()
		return failed["j1"] == "submission vanished"
	}, 2*time.Second, 10*time.Millisecond)
	completed, _ := repo.snapshot()
	assert.Empty(t, completed)
}

func TestProcessInline(t *testing.T) {
	repo := newFakeJobs()
	repo.startID = "j9"
	processor := ProcessorFunc(func(ctx context.Context, submissionID string, weights domain.SeverityWeights) error {
		return nil
	})

	err := ProcessInline(context.Background(), repo, processor, "s1", domain.BalancedWeights())
	require.NoError(t, err)
	completed, _ := repo.snapshot()
	assert.Equal(t, []string{"j9"}, completed)
}

func TestProcessInlineFailure(t *testing.T) {
	repo := newFakeJobs()
	repo.startID = "j9"
	processor := ProcessorFunc(func(ctx context.Context, submissionID string, weights domain.SeverityWeights) error {
		return errors.New("boom")
	})

	err := ProcessInline(context.Background(), repo, processor, "s1", domain.BalancedWeights())
	require.Error(t, err)
	_, failed := repo.snapshot()
	assert.Equal(t, "boom", failed["j9"])
}

func TestDecodeWeights(t *testing.T) {
	assert.Equal(t, domain.BalancedWeights(), decodeWeights(nil))
	assert.Equal(t, domain.BalancedWeights(), decodeWeights([]byte("not json")))

	w := decodeWeights([]byte(`{"critical":9.0,"high":1.0,"medium":0.5,"low":0.2}`))
	assert.Equal(t, 3.0, w.Critical)
}
