package analysisrunner

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"redline/internal/domain"
	"redline/internal/ports"
)

// Processor performs the deep analysis work for a job's submission.
type Processor interface {
	Process(ctx context.Context, submissionID string, weights domain.SeverityWeights) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, submissionID string, weights domain.SeverityWeights) error

func (f ProcessorFunc) Process(ctx context.Context, submissionID string, weights domain.SeverityWeights) error {
	return f(ctx, submissionID, weights)
}

// Run starts worker goroutines that claim queued analysis jobs and process
// them. Units within a run stay strictly sequential; concurrency here only
// lets independent submissions run side by side.
func Run(ctx context.Context, repo ports.JobRepository, processor Processor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.AnalysisJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Printf("job claim error: %v", err)
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				if err := processor.Process(ctx, job.SubmissionID, decodeWeights(job.Weights)); err != nil {
					_ = repo.MarkFailed(ctx, job.ID, err.Error())
					log.Printf("worker %d: job %s failed: %v", idx, job.ID, err)
					continue
				}
				if err := repo.MarkCompleted(ctx, job.ID); err != nil {
					log.Printf("worker %d: complete err: %v", idx, err)
				}
			}
		}(i)
	}
}

// ProcessInline starts and processes a queued job for a specific submission
// synchronously using the same processor logic as the background workers.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor Processor, submissionID string, weights domain.SeverityWeights) error {
	jobID, err := repo.StartJobForSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, submissionID, weights); err != nil {
		_ = repo.MarkFailed(ctx, jobID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, jobID)
}

func decodeWeights(raw []byte) domain.SeverityWeights {
	if len(raw) == 0 {
		return domain.BalancedWeights()
	}
	var w domain.SeverityWeights
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.BalancedWeights()
	}
	return w.Clamp()
}
