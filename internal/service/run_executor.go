package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/observability"
)

// RunStatus is the state of a run: idle -> running -> one terminal state.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusNoTasks   RunStatus = "no_tasks"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusNoTasks, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// RunProgress counts task attempts, successful or not.
type RunProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// RunOutcome is the terminal report of a run.
//
// Failed carries the first failing task and a *ScorerError. Cancelled leaves
// Done at the last attempt that finished before the stop took effect.
type RunOutcome struct {
	Status     RunStatus
	Done       int
	Total      int
	Succeeded  int
	FailedTask *EvalTask
	Err        error
}

// TaskScorer scores one task against the external scorer.
type TaskScorer interface {
	Score(ctx context.Context, task EvalTask) (models.Evaluation, error)
}

// TaskScorerFunc adapts a function to TaskScorer.
type TaskScorerFunc func(ctx context.Context, task EvalTask) (models.Evaluation, error)

// Score calls f.
func (f TaskScorerFunc) Score(ctx context.Context, task EvalTask) (models.Evaluation, error) {
	return f(ctx, task)
}

// ProgressFunc observes progress. Calls are serialised and Done never decreases.
type ProgressFunc func(RunProgress)

// RunExecutorConfig controls dispatch. Concurrency <= 1 runs tasks strictly
// one after another; RetryMax 0 calls the scorer at most once per task.
type RunExecutorConfig struct {
	Concurrency    int
	RetryMax       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	TaskTimeout    time.Duration
}

// RunExecutor drives a batch of tasks against a scorer.
type RunExecutor struct {
	cfg    RunExecutorConfig
	logger zerolog.Logger
}

// NewRunExecutor builds an executor.
func NewRunExecutor(cfg RunExecutorConfig, logger zerolog.Logger) *RunExecutor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 15 * time.Second
	}
	return &RunExecutor{
		cfg:    cfg,
		logger: logger.With().Str("component", "run_executor").Logger(),
	}
}

// Run executes tasks and blocks until the run is terminal.
func (e *RunExecutor) Run(ctx context.Context, tasks []EvalTask, scorer TaskScorer) RunOutcome {
	return e.Start(ctx, tasks, scorer, nil).Wait()
}

// Start launches the run in the background and returns its handle. Tasks are
// dispatched in slice order.
func (e *RunExecutor) Start(ctx context.Context, tasks []EvalTask, scorer TaskScorer, onProgress ProgressFunc) *RunHandle {
	handle := newRunHandle(len(tasks), onProgress)

	if len(tasks) == 0 {
		handle.finish(RunOutcome{Status: RunStatusNoTasks})
		return handle
	}

	handle.setStatus(RunStatusRunning)
	go func() {
		var outcome RunOutcome
		if e.cfg.Concurrency <= 1 {
			outcome = e.runSequential(ctx, handle, tasks, scorer)
		} else {
			outcome = e.runPooled(ctx, handle, tasks, scorer)
		}
		handle.finish(outcome)
	}()
	return handle
}

func (e *RunExecutor) runSequential(ctx context.Context, h *RunHandle, tasks []EvalTask, scorer TaskScorer) RunOutcome {
	succeeded := 0
	for _, task := range tasks {
		if h.halted(ctx) {
			return h.cancelled(succeeded)
		}

		err := e.attempt(ctx, task, scorer)
		done := h.advance()
		if err != nil {
			if ctx.Err() != nil {
				return h.cancelled(succeeded)
			}
			e.logFailure(task, err, done, h.total)
			failed := task
			return RunOutcome{
				Status:     RunStatusFailed,
				Done:       done,
				Total:      h.total,
				Succeeded:  succeeded,
				FailedTask: &failed,
				Err:        &ScorerError{Task: task, Err: err},
			}
		}
		succeeded++
	}

	return RunOutcome{Status: RunStatusCompleted, Done: h.total, Total: h.total, Succeeded: succeeded}
}

// runPooled dispatches through a bounded worker group. The first failure stops
// further dispatch; tasks already in flight are allowed to finish.
func (e *RunExecutor) runPooled(ctx context.Context, h *RunHandle, tasks []EvalTask, scorer TaskScorer) RunOutcome {
	var (
		mu        sync.Mutex
		failure   *ScorerError
		succeeded int
		halt      = make(chan struct{})
		haltOnce  sync.Once
	)

	stopped := func() bool {
		select {
		case <-halt:
			return true
		default:
			return h.halted(ctx)
		}
	}

	group := new(errgroup.Group)
	group.SetLimit(e.cfg.Concurrency)
	for _, task := range tasks {
		if stopped() {
			break
		}
		group.Go(func() error {
			if stopped() {
				return nil
			}
			err := e.attempt(ctx, task, scorer)
			done := h.advance()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if failure == nil && ctx.Err() == nil {
					e.logFailure(task, err, done, h.total)
					failure = &ScorerError{Task: task, Err: err}
					haltOnce.Do(func() { close(halt) })
				}
				return nil
			}
			succeeded++
			return nil
		})
	}
	_ = group.Wait()

	done := h.Progress().Done
	switch {
	case failure != nil:
		failed := failure.Task
		return RunOutcome{
			Status:     RunStatusFailed,
			Done:       done,
			Total:      h.total,
			Succeeded:  succeeded,
			FailedTask: &failed,
			Err:        failure,
		}
	case succeeded < h.total:
		return h.cancelled(succeeded)
	default:
		return RunOutcome{Status: RunStatusCompleted, Done: done, Total: h.total, Succeeded: succeeded}
	}
}

// attempt scores one task, retrying with exponential backoff when configured.
func (e *RunExecutor) attempt(ctx context.Context, task EvalTask, scorer TaskScorer) error {
	call := func() error {
		callCtx := ctx
		if e.cfg.TaskTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
			defer cancel()
		}
		_, err := scorer.Score(callCtx, task)
		return err
	}

	var err error
	if e.cfg.RetryMax == 0 {
		err = call()
	} else {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = e.cfg.RetryBaseDelay
		policy.MaxInterval = e.cfg.RetryMaxDelay
		policy.MaxElapsedTime = 0

		attempts := 0
		err = backoff.Retry(func() error {
			attempts++
			callErr := call()
			if callErr != nil && attempts <= e.cfg.RetryMax {
				e.logger.Warn().Err(callErr).
					Str("submission_id", task.SubmissionID).
					Str("template_id", task.TemplateID).
					Str("judge_id", task.JudgeID).
					Int("attempt", attempts).
					Msg("scorer call failed, retrying")
			}
			return callErr
		}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.cfg.RetryMax)), ctx))
	}

	if err != nil {
		observability.RunTasks().WithLabelValues("failed").Inc()
		return err
	}
	observability.RunTasks().WithLabelValues("succeeded").Inc()
	return nil
}

func (e *RunExecutor) logFailure(task EvalTask, err error, done, total int) {
	e.logger.Error().Err(err).
		Str("submission_id", task.SubmissionID).
		Str("template_id", task.TemplateID).
		Str("judge_id", task.JudgeID).
		Int("done", done).
		Int("total", total).
		Msg("scorer failed, aborting run")
}

// RunHandle observes and controls a started run.
type RunHandle struct {
	total int
	done  atomic.Int64

	progressMu sync.Mutex
	onProgress ProgressFunc

	stateMu sync.RWMutex
	status  RunStatus
	outcome RunOutcome

	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

func newRunHandle(total int, onProgress ProgressFunc) *RunHandle {
	return &RunHandle{
		total:      total,
		onProgress: onProgress,
		status:     RunStatusIdle,
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
}

// Cancel asks the run to stop once the task in flight completes. It is safe
// to call more than once and after the run ended.
func (h *RunHandle) Cancel() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Progress returns the current (done, total).
func (h *RunHandle) Progress() RunProgress {
	return RunProgress{Done: int(h.done.Load()), Total: h.total}
}

// Status returns the current run state.
func (h *RunHandle) Status() RunStatus {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.status
}

// Done is closed once the run reaches a terminal state.
func (h *RunHandle) Done() <-chan struct{} {
	return h.finished
}

// Wait blocks until the run is terminal and returns its outcome.
func (h *RunHandle) Wait() RunOutcome {
	<-h.finished
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.outcome
}

// Outcome returns the outcome when the run is terminal.
func (h *RunHandle) Outcome() (RunOutcome, bool) {
	select {
	case <-h.finished:
		return h.Wait(), true
	default:
		return RunOutcome{}, false
	}
}

func (h *RunHandle) setStatus(status RunStatus) {
	h.stateMu.Lock()
	h.status = status
	h.stateMu.Unlock()
}

func (h *RunHandle) finish(outcome RunOutcome) {
	outcome.Total = h.total
	h.stateMu.Lock()
	h.status = outcome.Status
	h.outcome = outcome
	h.stateMu.Unlock()
	close(h.finished)
}

func (h *RunHandle) halted(ctx context.Context) bool {
	select {
	case <-h.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (h *RunHandle) advance() int {
	h.progressMu.Lock()
	defer h.progressMu.Unlock()
	done := int(h.done.Add(1))
	if h.onProgress != nil {
		h.onProgress(RunProgress{Done: done, Total: h.total})
	}
	return done
}

func (h *RunHandle) cancelled(succeeded int) RunOutcome {
	return RunOutcome{
		Status:    RunStatusCancelled,
		Done:      h.Progress().Done,
		Total:     h.total,
		Succeeded: succeeded,
		Err:       ErrCancelled,
	}
}
