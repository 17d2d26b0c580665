package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-judge/internal/models"
)

type recordingScorer struct {
	mu     sync.Mutex
	calls  []EvalTask
	failOn map[EvalTask]error
	delay  time.Duration
}

func (s *recordingScorer) Score(ctx context.Context, task EvalTask) (models.Evaluation, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.calls = append(s.calls, task)
	err := s.failOn[task]
	s.mu.Unlock()
	if err != nil {
		return models.Evaluation{}, err
	}
	return models.Evaluation{SubmissionID: task.SubmissionID, TemplateID: task.TemplateID, JudgeID: task.JudgeID, Verdict: models.VerdictPass}, nil
}

func (s *recordingScorer) Calls() []EvalTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EvalTask(nil), s.calls...)
}

func sampleTasks(n int) []EvalTask {
	tasks := make([]EvalTask, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, EvalTask{SubmissionID: string(rune('A' + i)), TemplateID: "T1", JudgeID: "J1"})
	}
	return tasks
}

func TestRunExecutorNoTasksDoesNotCallScorer(t *testing.T) {
	scorer := &recordingScorer{}
	executor := NewRunExecutor(RunExecutorConfig{}, testLogger())

	outcome := executor.Run(context.Background(), []EvalTask{}, scorer)
	require.Equal(t, RunStatusNoTasks, outcome.Status)
	require.Zero(t, outcome.Total)
	require.NoError(t, outcome.Err)
	require.Empty(t, scorer.Calls())
}

func TestRunExecutorCompletesSequentially(t *testing.T) {
	tasks := sampleTasks(3)
	scorer := &recordingScorer{}
	executor := NewRunExecutor(RunExecutorConfig{}, testLogger())

	var seen []RunProgress
	outcome := executor.Start(context.Background(), tasks, scorer, func(p RunProgress) {
		seen = append(seen, p)
	}).Wait()

	require.Equal(t, RunStatusCompleted, outcome.Status)
	require.Equal(t, 3, outcome.Done)
	require.Equal(t, 3, outcome.Total)
	require.Equal(t, 3, outcome.Succeeded)
	require.Equal(t, tasks, scorer.Calls())
	require.Equal(t, []RunProgress{{1, 3}, {2, 3}, {3, 3}}, seen)
}

func TestRunExecutorFailsFastOnSecondTask(t *testing.T) {
	tasks := sampleTasks(3)
	boom := errors.New("model overloaded")
	scorer := &recordingScorer{failOn: map[EvalTask]error{tasks[1]: boom}}
	executor := NewRunExecutor(RunExecutorConfig{}, testLogger())

	outcome := executor.Run(context.Background(), tasks, scorer)
	require.Equal(t, RunStatusFailed, outcome.Status)
	require.Equal(t, 2, outcome.Done)
	require.Equal(t, 3, outcome.Total)
	require.Equal(t, 1, outcome.Succeeded)
	require.NotNil(t, outcome.FailedTask)
	require.Equal(t, tasks[1], *outcome.FailedTask)
	require.ErrorIs(t, outcome.Err, ErrScorerFailure)
	require.ErrorIs(t, outcome.Err, boom)
	require.Contains(t, outcome.Err.Error(), "submission=B")
	require.Equal(t, tasks[:2], scorer.Calls())
}

func TestRunExecutorCancelStopsAfterInFlightTask(t *testing.T) {
	tasks := sampleTasks(5)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	scorer := TaskScorerFunc(func(ctx context.Context, task EvalTask) (models.Evaluation, error) {
		if calls.Add(1) == 2 {
			close(started)
			<-release
		}
		return models.Evaluation{}, nil
	})

	executor := NewRunExecutor(RunExecutorConfig{}, testLogger())
	handle := executor.Start(context.Background(), tasks, scorer, nil)

	<-started
	require.Equal(t, RunStatusRunning, handle.Status())
	handle.Cancel()
	handle.Cancel()
	close(release)

	outcome := handle.Wait()
	require.Equal(t, RunStatusCancelled, outcome.Status)
	require.Equal(t, 2, outcome.Done)
	require.Equal(t, 5, outcome.Total)
	require.ErrorIs(t, outcome.Err, ErrCancelled)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, RunProgress{Done: 2, Total: 5}, handle.Progress())
}

func TestRunExecutorContextCancellationReportsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tasks := sampleTasks(3)

	scorer := TaskScorerFunc(func(ctx context.Context, task EvalTask) (models.Evaluation, error) {
		if task == tasks[0] {
			cancel()
			return models.Evaluation{}, ctx.Err()
		}
		return models.Evaluation{}, nil
	})

	outcome := NewRunExecutor(RunExecutorConfig{}, testLogger()).Run(ctx, tasks, scorer)
	require.Equal(t, RunStatusCancelled, outcome.Status)
	require.Equal(t, 1, outcome.Done)
	require.Nil(t, outcome.FailedTask)
}

func TestRunExecutorPooledProgressIsMonotonic(t *testing.T) {
	tasks := sampleTasks(12)
	scorer := &recordingScorer{delay: 2 * time.Millisecond}
	executor := NewRunExecutor(RunExecutorConfig{Concurrency: 4}, testLogger())

	var (
		mu   sync.Mutex
		last int
		seen int
	)
	outcome := executor.Start(context.Background(), tasks, scorer, func(p RunProgress) {
		mu.Lock()
		defer mu.Unlock()
		require.Greater(t, p.Done, last)
		last = p.Done
		seen++
	}).Wait()

	require.Equal(t, RunStatusCompleted, outcome.Status)
	require.Equal(t, 12, outcome.Done)
	require.Equal(t, 12, outcome.Succeeded)
	require.Equal(t, 12, seen)
	require.ElementsMatch(t, tasks, scorer.Calls())
}

func TestRunExecutorPooledAttributesFailure(t *testing.T) {
	tasks := sampleTasks(20)
	boom := errors.New("bad gateway")
	scorer := &recordingScorer{failOn: map[EvalTask]error{tasks[3]: boom}, delay: time.Millisecond}
	executor := NewRunExecutor(RunExecutorConfig{Concurrency: 2}, testLogger())

	outcome := executor.Run(context.Background(), tasks, scorer)
	require.Equal(t, RunStatusFailed, outcome.Status)
	require.Equal(t, tasks[3], *outcome.FailedTask)
	require.ErrorIs(t, outcome.Err, boom)
	require.Less(t, outcome.Done, len(tasks))
	require.Equal(t, outcome.Done, len(scorer.Calls()))
}

func TestRunExecutorRetriesBeforeFailing(t *testing.T) {
	tasks := sampleTasks(1)
	var attempts atomic.Int32
	scorer := TaskScorerFunc(func(ctx context.Context, task EvalTask) (models.Evaluation, error) {
		if attempts.Add(1) < 3 {
			return models.Evaluation{}, errors.New("transient")
		}
		return models.Evaluation{}, nil
	})

	executor := NewRunExecutor(RunExecutorConfig{
		RetryMax:       2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}, testLogger())

	outcome := executor.Run(context.Background(), tasks, scorer)
	require.Equal(t, RunStatusCompleted, outcome.Status)
	require.Equal(t, 1, outcome.Done)
	require.Equal(t, int32(3), attempts.Load())
}

func TestRunExecutorRetryExhaustionFails(t *testing.T) {
	tasks := sampleTasks(2)
	var attempts atomic.Int32
	scorer := TaskScorerFunc(func(ctx context.Context, task EvalTask) (models.Evaluation, error) {
		attempts.Add(1)
		return models.Evaluation{}, errors.New("still down")
	})

	executor := NewRunExecutor(RunExecutorConfig{
		RetryMax:       1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	}, testLogger())

	outcome := executor.Run(context.Background(), tasks, scorer)
	require.Equal(t, RunStatusFailed, outcome.Status)
	require.Equal(t, 1, outcome.Done)
	require.Equal(t, tasks[0], *outcome.FailedTask)
	require.Equal(t, int32(2), attempts.Load())
}

func TestRunExecutorTaskTimeoutBoundsScorerCall(t *testing.T) {
	tasks := sampleTasks(1)
	scorer := TaskScorerFunc(func(ctx context.Context, task EvalTask) (models.Evaluation, error) {
		<-ctx.Done()
		return models.Evaluation{}, ctx.Err()
	})

	executor := NewRunExecutor(RunExecutorConfig{TaskTimeout: 10 * time.Millisecond}, testLogger())
	outcome := executor.Run(context.Background(), tasks, scorer)
	require.Equal(t, RunStatusFailed, outcome.Status)
	require.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
}
