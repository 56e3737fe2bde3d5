// Package worker implements the single-concurrency job queue. Every
// wallet-mutating operation in the agent funnels through one worker
// goroutine, which is the only concurrency control the shared wallet needs:
// no locks, no nonce races, no overlapping submissions.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/persistence"
)

// Job is one unit of work flowing through the queue.
type Job struct {
	ID         string
	Type       domain.JobType
	TaskID     string
	Payload    interface{}
	EnqueuedAt time.Time
}

// Result records a finished job for the audit histories.
type Result struct {
	JobID    string
	TaskID   string
	Type     domain.JobType
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Success  bool
	Error    string
}

// Handler executes one decoded job payload. Handlers own their retry policy;
// the queue never resubmits a failed job.
type Handler func(ctx context.Context, job Job) error

// Observer receives completion notifications (metrics).
type Observer interface {
	JobFinished(jobType string, success bool, duration time.Duration)
}

// Options bounds the worker's queue and histories.
type Options struct {
	QueueSize        int
	CompletedHistory int
	FailedHistory    int
	ShutdownTimeout  time.Duration
}

// DefaultOptions returns the standard bounds.
func DefaultOptions() Options {
	return Options{
		QueueSize:        1024,
		CompletedHistory: 64,
		FailedHistory:    256,
		ShutdownTimeout:  2 * time.Minute,
	}
}

// Worker is the single-concurrency job queue.
type Worker struct {
	opts  Options
	queue chan Job
	tasks persistence.TaskRepo
	obs   Observer

	mu        sync.Mutex
	handlers  map[domain.JobType]Handler
	completed []Result
	failed    []Result
	confirmed map[string]struct{} // position IDs with a confirmed trade

	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a worker. tasks may be nil when task records are not
// persisted (tests, offline runs); obs may be nil.
func New(opts Options, tasks persistence.TaskRepo, obs Observer) *Worker {
	if opts.QueueSize <= 0 {
		opts = DefaultOptions()
	}
	return &Worker{
		opts:      opts,
		queue:     make(chan Job, opts.QueueSize),
		tasks:     tasks,
		obs:       obs,
		handlers:  make(map[domain.JobType]Handler),
		confirmed: make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// Register binds a handler to a job type. Later registrations replace
// earlier ones.
func (w *Worker) Register(jt domain.JobType, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jt] = h
}

// Submit decodes the task into a typed job and queues it FIFO. Unknown job
// types fail immediately and are never retried. A buy/sell whose position ID
// already confirmed is dropped as a no-op: re-submitting a confirmed trade
// must not spend twice.
func (w *Worker) Submit(task domain.Task) error {
	jt := domain.JobType(task.Name)
	payload, err := domain.DecodeJobPayload(jt, task.Metadata)
	if err != nil {
		job := Job{ID: uuid.NewString(), Type: jt, TaskID: task.ID, EnqueuedAt: time.Now()}
		w.record(job, time.Now(), time.Now(), err)
		return err
	}

	job := Job{
		ID:         uuid.NewString(),
		Type:       jt,
		TaskID:     task.ID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}

	if pid := positionID(payload); pid != "" && w.isConfirmed(pid) {
		log.Info().Str("job_type", string(jt)).Str("position_id", pid).
			Msg("trade already confirmed for this position id, dropping duplicate job")
		w.finishTask(job.TaskID)
		return nil
	}

	select {
	case w.queue <- job:
		return nil
	default:
		return fmt.Errorf("job queue full (%d pending)", len(w.queue))
	}
}

// Start launches the single worker goroutine.
func (w *Worker) Start(parent context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.runCtx, w.cancel = context.WithCancel(parent)
	w.mu.Unlock()

	go w.run()
}

// Stop drains the in-flight job, bounded by the shutdown timeout. The
// in-flight job keeps its own context and runs to a terminal state; queued
// jobs that never started are left unexecuted.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.cancel()
	select {
	case <-w.done:
	case <-time.After(w.opts.ShutdownTimeout):
		log.Error().Msg("worker shutdown timed out waiting for in-flight job")
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.runCtx.Done():
			return
		case job := <-w.queue:
			w.execute(job)
		}
	}
}

// execute runs exactly one job to a terminal state. Wallet-mutating jobs
// never overlap because this is the only goroutine draining the queue.
func (w *Worker) execute(job Job) {
	start := time.Now()

	w.mu.Lock()
	handler, ok := w.handlers[job.Type]
	w.mu.Unlock()

	var err error
	if !ok {
		err = fmt.Errorf("%w: no handler for %q", domain.ErrUnknownJobType, job.Type)
	} else {
		// Not derived from the run context: shutdown cancellation must not
		// reach an in-flight wallet mutation. The shutdown timeout doubles as
		// the per-job deadline, so a hung handler cannot block Stop forever.
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.ShutdownTimeout)
		err = handler(ctx, job)
		cancel()
	}

	w.record(job, start, time.Now(), err)
	w.finishTask(job.TaskID)

	if err == nil {
		if pid := positionID(job.Payload); pid != "" {
			w.markConfirmed(pid)
		}
	}
}

func (w *Worker) record(job Job, start, end time.Time, err error) {
	result := Result{
		JobID:    job.ID,
		TaskID:   job.TaskID,
		Type:     job.Type,
		Start:    start,
		End:      end,
		Duration: end.Sub(start),
		Success:  err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	w.mu.Lock()
	if err == nil {
		w.completed = appendBounded(w.completed, result, w.opts.CompletedHistory)
	} else {
		w.failed = appendBounded(w.failed, result, w.opts.FailedHistory)
	}
	w.mu.Unlock()

	if err == nil {
		log.Info().Str("job_id", job.ID).Str("job_type", string(job.Type)).
			Dur("duration", result.Duration).Msg("job completed")
	} else {
		log.Error().Err(err).Str("job_id", job.ID).Str("job_type", string(job.Type)).
			Str("task_id", job.TaskID).RawJSON("payload", payloadJSON(job.Payload)).
			Msg("job failed")
	}

	if w.obs != nil {
		w.obs.JobFinished(string(job.Type), err == nil, result.Duration)
	}
}

// finishTask deletes the backing task record after a terminal state.
func (w *Worker) finishTask(taskID string) {
	if w.tasks == nil || taskID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.tasks.DeleteTask(ctx, taskID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		log.Warn().Err(err).Str("task_id", taskID).Msg("failed to delete completed task")
	}
}

// CompletedHistory returns a copy of the bounded success history.
func (w *Worker) CompletedHistory() []Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Result(nil), w.completed...)
}

// FailedHistory returns a copy of the bounded failure history.
func (w *Worker) FailedHistory() []Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Result(nil), w.failed...)
}

// Pending returns the number of queued jobs.
func (w *Worker) Pending() int {
	return len(w.queue)
}

func (w *Worker) isConfirmed(positionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.confirmed[positionID]
	return ok
}

func (w *Worker) markConfirmed(positionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.confirmed[positionID] = struct{}{}
}

func appendBounded(history []Result, r Result, limit int) []Result {
	history = append(history, r)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func positionID(payload interface{}) string {
	switch p := payload.(type) {
	case domain.BuyPayload:
		return p.Signal.PositionID
	case domain.SellPayload:
		return p.Signal.PositionID
	}
	return ""
}

func payloadJSON(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return []byte("{}")
	}
	return data
}
