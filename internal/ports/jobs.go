package ports

import "context"

type AnalysisJob struct {
	ID           string
	SubmissionID string
	Weights      []byte // severity weights payload, JSON
}

// JobRepository supports claiming and updating queued analysis jobs.
type JobRepository interface {
	EnqueueAnalysis(ctx context.Context, submissionID string, weights []byte) (jobID string, err error)
	ClaimNext(ctx context.Context) (job AnalysisJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	StartJobForSubmission(ctx context.Context, submissionID string) (jobID string, err error)
}
