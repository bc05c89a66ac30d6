package transcribe

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus is the terminal state of a submitted job.
type JobStatus string

const (
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job pairs a request with an identifier so outcomes can be correlated by
// the submitter.
type Job struct {
	ID      string
	Request Request
}

// Outcome is the terminal report for one job: exactly one of Result or Err
// is set.
type Outcome struct {
	JobID  string
	Status JobStatus
	Result Result
	Err    error
}

// Worker decouples request submission from the blocking pipeline: callers
// hand requests to Submit and read terminal outcomes from Outcomes. Requests
// are processed strictly one at a time, so the model is an exclusively owned
// resource and no shared mutable state exists between submitters.
type Worker struct {
	handler  *Handler
	logger   *zap.Logger
	requests chan Job
	outcomes chan Outcome
	done     chan struct{}
}

func NewWorker(handler *Handler, logger *zap.Logger, queueDepth int) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Worker{
		handler:  handler,
		logger:   logger,
		requests: make(chan Job, queueDepth),
		outcomes: make(chan Outcome, queueDepth),
		done:     make(chan struct{}),
	}
}

// Submit enqueues a request and returns its job id. It blocks when the queue
// is full and fails only when the worker is shutting down.
func (w *Worker) Submit(ctx context.Context, req Request) (string, error) {
	job := Job{ID: uuid.NewString(), Request: req}
	select {
	case w.requests <- job:
		return job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Outcomes delivers one terminal Outcome per submitted job, in completion
// order. The channel closes after Run returns.
func (w *Worker) Outcomes() <-chan Outcome {
	return w.outcomes
}

// Run processes submitted jobs until ctx is cancelled. It must be called
// exactly once.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer close(w.outcomes)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.requests:
			w.logger.Info("job started", zap.String("job", job.ID), zap.String("source", job.Request.Source))
			result, err := w.handler.Transcribe(ctx, job.Request)
			outcome := Outcome{JobID: job.ID}
			if err != nil {
				outcome.Status = JobFailed
				outcome.Err = err
				w.logger.Warn("job failed", zap.String("job", job.ID), zap.Error(err))
			} else {
				outcome.Status = JobCompleted
				outcome.Result = result
				w.logger.Info("job completed", zap.String("job", job.ID), zap.String("destination", result.Destination))
			}

			select {
			case w.outcomes <- outcome:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() {
	<-w.done
}
