// Package scheduler turns configured cadences into persisted tasks on the
// job queue. Intervals are policy: monitoring, optimization and performance
// cycles all run on configurable tickers, and a stopped scheduler cancels
// every ticker as a group.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/application/worker"
	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/persistence"
)

// Runner accepts persisted tasks for execution and handler registrations.
// The job worker satisfies this.
type Runner interface {
	Submit(task domain.Task) error
	Register(jt domain.JobType, h worker.Handler)
}

// Validator can veto a job before its handler runs.
type Validator func(job worker.Job) error

// PayloadFactory builds the payload for one firing of a recurring task.
// Returning an error skips the firing.
type PayloadFactory func(ctx context.Context) (interface{}, error)

type recurring struct {
	name     domain.JobType
	interval time.Duration
	payload  PayloadFactory
	tags     []string
	local    func(ctx context.Context) // runs in the ticker, bypassing the queue
}

// Scheduler owns the recurring tickers and the enqueue path. One-shot tasks
// go through Enqueue directly; recurring ones are registered before Start.
type Scheduler struct {
	tasks  persistence.TaskRepo
	runner Runner

	mu        sync.Mutex
	recurring []recurring
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

// New creates a scheduler. tasks may be nil when task persistence is
// disabled.
func New(tasks persistence.TaskRepo, runner Runner) *Scheduler {
	return &Scheduler{tasks: tasks, runner: runner}
}

// RegisterHandler binds a job type to its executor, with an optional
// pre-execution validator. A validator failure fails the job without
// invoking execute.
func (s *Scheduler) RegisterHandler(jt domain.JobType, execute worker.Handler, validate Validator) {
	s.runner.Register(jt, func(ctx context.Context, job worker.Job) error {
		if validate != nil {
			if err := validate(job); err != nil {
				return fmt.Errorf("validate %s: %w", jt, err)
			}
		}
		return execute(ctx, job)
	})
}

// RegisterRecurring schedules a job type on a fixed interval. Must be called
// before Start.
func (s *Scheduler) RegisterRecurring(jt domain.JobType, interval time.Duration, payload PayloadFactory, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring = append(s.recurring, recurring{
		name:     jt,
		interval: interval,
		payload:  payload,
		tags:     tags,
	})
}

// RegisterRecurringFunc schedules a local function on a fixed interval,
// without going through the job queue. For read-only cycles (performance
// analysis) that must not occupy the wallet lane.
func (s *Scheduler) RegisterRecurringFunc(name string, interval time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring = append(s.recurring, recurring{
		name:     domain.JobType(name),
		interval: interval,
		local:    fn,
	})
}

// Start launches one ticker goroutine per recurring registration. All
// tickers share a cancel so Stop tears them down as a group.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	for _, r := range s.recurring {
		s.wg.Add(1)
		go s.runTicker(ctx, r)
	}
	log.Info().Int("recurring", len(s.recurring)).Msg("scheduler started")
}

// Stop cancels every ticker and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runTicker(ctx context.Context, r recurring) {
	defer s.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, r)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, r recurring) {
	if r.local != nil {
		r.local(ctx)
		return
	}
	payload := interface{}(nil)
	if r.payload != nil {
		var err error
		payload, err = r.payload(ctx)
		if err != nil {
			log.Warn().Err(err).Str("job_type", string(r.name)).
				Msg("payload factory failed, skipping firing")
			return
		}
	}
	if err := s.Enqueue(ctx, r.name, payload, r.tags...); err != nil {
		log.Error().Err(err).Str("job_type", string(r.name)).
			Msg("failed to enqueue recurring task")
	}
}

// Enqueue persists a task and submits it to the worker. The task record
// outlives a crash between persist and submit; the worker deletes it on
// terminal completion.
func (s *Scheduler) Enqueue(ctx context.Context, jt domain.JobType, payload interface{}, tags ...string) error {
	metadata, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode task payload: %w", err)
	}
	if payload == nil {
		metadata = []byte("{}")
	}

	task := domain.Task{
		ID:        uuid.NewString(),
		Name:      string(jt),
		Tags:      append([]string{"queue"}, tags...),
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if s.tasks != nil {
		if err := s.tasks.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("persist task %s: %w", task.Name, err)
		}
	}
	if err := s.runner.Submit(task); err != nil {
		return fmt.Errorf("submit task %s: %w", task.Name, err)
	}

	log.Debug().Str("task_id", task.ID).Str("job_type", string(jt)).Msg("task enqueued")
	return nil
}

// Resume reloads queued tasks that survived a restart and resubmits them in
// creation order.
func (s *Scheduler) Resume(ctx context.Context) error {
	if s.tasks == nil {
		return nil
	}
	pending, err := s.tasks.GetTasks(ctx, persistence.TaskFilter{Tags: []string{"queue"}})
	if err != nil {
		return fmt.Errorf("load pending tasks: %w", err)
	}
	for _, task := range pending {
		if err := s.runner.Submit(task); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Str("name", task.Name).
				Msg("failed to resubmit persisted task")
		}
	}
	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("resumed persisted tasks")
	}
	return nil
}
