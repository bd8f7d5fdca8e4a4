package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/errors"
	"audiograb/pkg/grabber"
	"audiograb/pkg/logger"

	"github.com/google/uuid"
)

// Job is one page waiting to be grabbed
type Job struct {
	ID      string
	PageURL string
}

// JobResult is the outcome of a finished job
type JobResult struct {
	Job      Job
	Result   *grabber.Result
	Err      error
	Duration time.Duration
}

// Cancelled reports whether the job was stopped by the user rather than failing
func (r JobResult) Cancelled() bool {
	return errors.IsCancelled(r.Err)
}

// Runner executes one page run
type Runner interface {
	Run(ctx context.Context, req grabber.Request) (*grabber.Result, error)
}

// Queue runs jobs one after another on a single background worker
type Queue struct {
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
	ctx         context.Context
	stop        context.CancelFunc
	stopped     cancel.Flag
	runner      Runner
	template    grabber.Request
	logger      logger.Logger
}

// New creates a queue. template supplies the callbacks and options copied into every job's request.
func New(runner Runner, template grabber.Request, log logger.Logger) *Queue {
	ctx, stop := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}

	return &Queue{
		jobQueue:    make(chan Job, 16),
		resultQueue: make(chan JobResult, 16),
		ctx:         ctx,
		stop:        stop,
		runner:      runner,
		template:    template,
		logger:      log.WithField("component", "queue"),
	}
}

// Start launches the worker
func (q *Queue) Start() {
	q.logger.Info("Starting queue")
	q.wg.Add(1)
	go q.worker()
}

// Close signals that no more jobs will be submitted, waits for the pending ones and closes Results
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	close(q.jobQueue)
	q.mu.Unlock()

	q.wg.Wait()
	close(q.resultQueue)
	q.stop()
	q.logger.Info("Queue stopped")
}

// Cancel stops the running job at its next cancellation point. Jobs still queued are reported as cancelled without running.
func (q *Queue) Cancel() {
	q.stopped.Cancel()
}

// Submit enqueues a page and returns its job id
func (q *Queue) Submit(pageURL string) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", fmt.Errorf("queue is shutting down")
	}

	job := Job{ID: uuid.NewString(), PageURL: pageURL}
	q.jobQueue <- job
	q.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
		"job_id":   job.ID,
		"page_url": pageURL,
	})
	return job.ID, nil
}

// Results returns the channel of finished jobs, in submission order
func (q *Queue) Results() <-chan JobResult {
	return q.resultQueue
}

// Pending returns the number of jobs waiting to run
func (q *Queue) Pending() int {
	return len(q.jobQueue)
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for job := range q.jobQueue {
		result := q.process(job)

		select {
		case q.resultQueue <- result:
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) process(job Job) JobResult {
	start := time.Now()
	fields := map[string]interface{}{
		"job_id":   job.ID,
		"page_url": job.PageURL,
	}

	if q.stopped.Cancelled() {
		return JobResult{Job: job, Err: errors.Cancelled()}
	}

	req := q.template
	req.PageURL = job.PageURL
	req.Cancel = cancel.Func(func() bool {
		return q.stopped.Cancelled() || (q.template.Cancel != nil && q.template.Cancel.Cancelled())
	})

	q.logger.InfoWithFields("Job started", fields)
	res, err := q.runner.Run(q.ctx, req)
	result := JobResult{Job: job, Result: res, Err: err, Duration: time.Since(start)}

	fields["duration"] = result.Duration
	switch {
	case err == nil:
		q.logger.InfoWithFields("Job completed", fields)
	case errors.IsCancelled(err):
		q.logger.InfoWithFields("Job cancelled", fields)
	default:
		fields["error"] = err.Error()
		q.logger.ErrorWithFields("Job failed", fields)
	}
	return result
}
