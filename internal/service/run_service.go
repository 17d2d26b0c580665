package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-judge/internal/observability"
	"github.com/noah-isme/gema-judge/internal/repository"
)

// RunOptions tunes a single run request.
type RunOptions struct {
	// SkipScored drops tasks whose triple already has a verdict.
	SkipScored bool
}

// RunSnapshot is a point-in-time view of a run.
type RunSnapshot struct {
	RunID      string
	QueueID    string
	Status     RunStatus
	Done       int
	Total      int
	Succeeded  int
	Skipped    int
	FailedTask *EvalTask
	Err        error
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunService starts, tracks and cancels evaluation runs per queue.
type RunService interface {
	Start(ctx context.Context, queueID string, opts RunOptions) (RunSnapshot, error)
	Execute(ctx context.Context, queueID string, opts RunOptions) (RunSnapshot, error)
	Status(ctx context.Context, queueID string) (RunSnapshot, error)
	Cancel(ctx context.Context, queueID string) (RunSnapshot, error)
	Subscribe(queueID string) (<-chan RunEvent, func())
	Shutdown(ctx context.Context) error
}

type trackedRun struct {
	id        string
	queueID   string
	skipped   int
	startedAt time.Time
	handle    *RunHandle
	settled   chan struct{}
	abort     context.CancelFunc

	mu         sync.Mutex
	finishedAt *time.Time
}

func (r *trackedRun) snapshot() RunSnapshot {
	progress := r.handle.Progress()
	snapshot := RunSnapshot{
		RunID:     r.id,
		QueueID:   r.queueID,
		Status:    r.handle.Status(),
		Done:      progress.Done,
		Total:     progress.Total,
		Skipped:   r.skipped,
		StartedAt: r.startedAt,
	}
	if outcome, ok := r.handle.Outcome(); ok {
		snapshot.Status = outcome.Status
		snapshot.Done = outcome.Done
		snapshot.Succeeded = outcome.Succeeded
		snapshot.FailedTask = outcome.FailedTask
		snapshot.Err = outcome.Err
	}
	r.mu.Lock()
	snapshot.FinishedAt = r.finishedAt
	r.mu.Unlock()
	return snapshot
}

func (r *trackedRun) isSettled() bool {
	select {
	case <-r.settled:
		return true
	default:
		return false
	}
}

type runService struct {
	builder     TaskBuilder
	executor    *RunExecutor
	scorer      TaskScorer
	evaluations repository.EvaluationRepository
	locker      RunLocker
	events      RunEventBus
	logger      zerolog.Logger
	tracer      trace.Tracer

	mu   sync.RWMutex
	runs map[string]*trackedRun
	// remote holds the latest run seen on other instances, per queue.
	remote map[string]RunSnapshot
}

// NewRunService wires the task builder and executor into a run surface.
func NewRunService(builder TaskBuilder, executor *RunExecutor, scorer TaskScorer, evaluations repository.EvaluationRepository, locker RunLocker, events RunEventBus, logger zerolog.Logger) RunService {
	if locker == nil {
		locker = NewMemoryRunLocker()
	}
	if events == nil {
		events = NewRunEventBus(nil, nil, "", logger)
	}
	svc := &runService{
		builder:     builder,
		executor:    executor,
		scorer:      scorer,
		evaluations: evaluations,
		locker:      locker,
		events:      events,
		logger:      logger.With().Str("component", "run_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-judge/internal/service/run"),
		runs:        make(map[string]*trackedRun),
		remote:      make(map[string]RunSnapshot),
	}
	events.Observe(svc.observeRemote)
	return svc
}

// Start derives the queue's tasks and launches the run in the background. The
// run outlives ctx; use Cancel to stop it.
func (s *runService) Start(ctx context.Context, queueID string, opts RunOptions) (RunSnapshot, error) {
	run, err := s.launch(ctx, queueID, opts)
	if err != nil {
		return RunSnapshot{}, err
	}
	return run.snapshot(), nil
}

// Execute runs the queue and blocks until the run settles or ctx ends.
func (s *runService) Execute(ctx context.Context, queueID string, opts RunOptions) (RunSnapshot, error) {
	run, err := s.launch(ctx, queueID, opts)
	if err != nil {
		return RunSnapshot{}, err
	}
	select {
	case <-run.settled:
		return run.snapshot(), nil
	case <-ctx.Done():
		return run.snapshot(), ctx.Err()
	}
}

// Status reports the latest run for the queue, whether this instance or a
// peer sharing the event bus owns it.
func (s *runService) Status(_ context.Context, queueID string) (RunSnapshot, error) {
	snapshot, _, ok := s.current(queueID)
	if !ok {
		return RunSnapshot{QueueID: queueID, Status: RunStatusIdle}, ErrRunNotFound
	}
	return snapshot, nil
}

// Cancel requests a stop after the in-flight task. Runs owned by a peer are
// cancelled by publishing a request the owner acts on. Cancelling a finished
// run is a no-op.
func (s *runService) Cancel(ctx context.Context, queueID string) (RunSnapshot, error) {
	snapshot, run, ok := s.current(queueID)
	if !ok {
		return RunSnapshot{QueueID: queueID, Status: RunStatusIdle}, ErrRunNotFound
	}
	if run != nil {
		run.handle.Cancel()
		s.logger.Info().Str("queue_id", queueID).Str("run_id", run.id).Msg("run cancellation requested")
		return run.snapshot(), nil
	}

	if snapshot.FinishedAt == nil {
		s.events.Publish(ctx, RunEvent{
			Type:    RunEventCancelRequested,
			RunID:   snapshot.RunID,
			QueueID: queueID,
			Status:  snapshot.Status,
			Done:    snapshot.Done,
			Total:   snapshot.Total,
		})
		s.logger.Info().Str("queue_id", queueID).Str("run_id", snapshot.RunID).Msg("run cancellation forwarded to owner")
	}
	return snapshot, nil
}

// Shutdown cancels every run this instance owns and waits for them to settle
// so their locks are released. When ctx ends first, in-flight scorer calls are
// aborted and ctx's error is returned.
func (s *runService) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	runs := make([]*trackedRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	for _, run := range runs {
		run.handle.Cancel()
	}
	for _, run := range runs {
		select {
		case <-run.settled:
		case <-ctx.Done():
			for _, pending := range runs {
				pending.abort()
			}
			s.logger.Warn().Err(ctx.Err()).Msg("runs did not settle before shutdown deadline")
			return ctx.Err()
		}
	}
	return nil
}

func (s *runService) Subscribe(queueID string) (<-chan RunEvent, func()) {
	return s.events.Subscribe(queueID)
}

// current picks the run to report for a queue. A run owned here wins while it
// is active; otherwise the newest run observed from a peer does.
func (s *runService) current(queueID string) (RunSnapshot, *trackedRun, bool) {
	s.mu.RLock()
	run, local := s.runs[queueID]
	remote, seen := s.remote[queueID]
	s.mu.RUnlock()

	switch {
	case local && (!seen || !run.isSettled()):
		return run.snapshot(), run, true
	case seen:
		return remote, nil, true
	default:
		return RunSnapshot{}, nil, false
	}
}

func (s *runService) observeRemote(event RunEvent) {
	if event.QueueID == "" {
		return
	}

	if event.Type == RunEventCancelRequested {
		s.mu.RLock()
		run, ok := s.runs[event.QueueID]
		s.mu.RUnlock()
		if ok && (event.RunID == "" || event.RunID == run.id) {
			run.handle.Cancel()
			s.logger.Info().Str("queue_id", event.QueueID).Str("run_id", run.id).Msg("run cancellation requested by peer")
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, seen := s.remote[event.QueueID]
	if seen && snapshot.RunID == event.RunID && snapshot.FinishedAt != nil {
		return
	}
	if !seen || snapshot.RunID != event.RunID {
		snapshot = RunSnapshot{RunID: event.RunID, QueueID: event.QueueID, StartedAt: event.At}
	}

	snapshot.Status = event.Status
	snapshot.Done = event.Done
	snapshot.Total = event.Total
	if event.Type == RunEventFinished {
		at := event.At
		snapshot.FinishedAt = &at
		snapshot.FailedTask = event.FailedTask
		snapshot.Err = remoteRunError(event)
		if event.Status == RunStatusCompleted {
			snapshot.Succeeded = event.Done
		}
	}
	s.remote[event.QueueID] = snapshot
}

// peerRunError carries a peer's error message under the matching sentinel.
type peerRunError struct {
	message string
	kind    error
}

func (e *peerRunError) Error() string { return e.message }

func (e *peerRunError) Unwrap() error { return e.kind }

func remoteRunError(event RunEvent) error {
	switch event.Status {
	case RunStatusCancelled:
		return ErrCancelled
	case RunStatusFailed:
		if event.Error == "" {
			return ErrScorerFailure
		}
		return &peerRunError{message: event.Error, kind: ErrScorerFailure}
	default:
		return nil
	}
}

func (s *runService) launch(ctx context.Context, queueID string, opts RunOptions) (*trackedRun, error) {
	release, err := s.locker.Acquire(ctx, queueID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.builder.BuildTasks(ctx, queueID)
	if err != nil {
		release()
		return nil, err
	}

	skipped := 0
	if opts.SkipScored && len(tasks) > 0 {
		scored, err := s.evaluations.ListScoredInQueue(ctx, queueID)
		if err != nil {
			release()
			return nil, &DependencyError{QueueID: queueID, Dependency: DependencyEvaluations, Err: err}
		}
		remaining := filterScored(tasks, scored)
		skipped = len(tasks) - len(remaining)
		tasks = remaining
	}

	runCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	runID := uuid.NewString()
	runCtx, span := s.tracer.Start(runCtx, "runs.execute", trace.WithAttributes(
		attribute.String("queue.id", queueID),
		attribute.String("run.id", runID),
		attribute.Int("run.total", len(tasks)),
	))

	// Events still go out after an abort.
	publishCtx := context.WithoutCancel(runCtx)
	runLogger := s.logger.With().Str("queue_id", queueID).Str("run_id", runID).Logger()
	onProgress := func(progress RunProgress) {
		runLogger.Debug().Int("done", progress.Done).Int("total", progress.Total).Msg("run progress")
		s.events.Publish(publishCtx, RunEvent{
			Type:    RunEventProgress,
			RunID:   runID,
			QueueID: queueID,
			Status:  RunStatusRunning,
			Done:    progress.Done,
			Total:   progress.Total,
		})
	}

	run := &trackedRun{
		id:        runID,
		queueID:   queueID,
		skipped:   skipped,
		startedAt: time.Now().UTC(),
		settled:   make(chan struct{}),
		abort:     abort,
	}

	runLogger.Info().Int("total", len(tasks)).Int("skipped", skipped).Msg("run started")
	s.events.Publish(publishCtx, RunEvent{
		Type:    RunEventStarted,
		RunID:   runID,
		QueueID: queueID,
		Status:  RunStatusRunning,
		Total:   len(tasks),
	})

	run.handle = s.executor.Start(runCtx, tasks, s.scorer, onProgress)

	s.mu.Lock()
	s.runs[queueID] = run
	delete(s.remote, queueID)
	s.mu.Unlock()

	go s.settle(publishCtx, run, span, release, runLogger)
	return run, nil
}

func (s *runService) settle(ctx context.Context, run *trackedRun, span trace.Span, release func(), logger zerolog.Logger) {
	defer span.End()
	outcome := run.handle.Wait()
	finished := time.Now().UTC()

	run.mu.Lock()
	run.finishedAt = &finished
	run.mu.Unlock()

	observability.Runs().WithLabelValues(string(outcome.Status)).Inc()
	observability.RunDuration().WithLabelValues(string(outcome.Status)).Observe(finished.Sub(run.startedAt).Seconds())
	span.SetAttributes(
		attribute.String("run.status", string(outcome.Status)),
		attribute.Int("run.done", outcome.Done),
	)

	event := RunEvent{
		Type:       RunEventFinished,
		RunID:      run.id,
		QueueID:    run.queueID,
		Status:     outcome.Status,
		Done:       outcome.Done,
		Total:      outcome.Total,
		FailedTask: outcome.FailedTask,
	}

	entry := logger.With().Int("done", outcome.Done).Int("total", outcome.Total).Logger()
	switch outcome.Status {
	case RunStatusFailed:
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "run failed")
		event.Error = outcome.Err.Error()
		entry.Error().Err(outcome.Err).Msg("run failed")
	case RunStatusCancelled:
		event.Error = outcome.Err.Error()
		entry.Info().Msg("run cancelled")
	case RunStatusNoTasks:
		entry.Info().Msg("run has no tasks")
	default:
		entry.Info().Int("succeeded", outcome.Succeeded).Msg("run completed")
	}

	s.events.Publish(ctx, event)
	release()
	run.abort()
	close(run.settled)
}
