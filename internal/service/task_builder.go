package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/repository"
)

// EvalTask is one unit of scoring work: grade one submission's answer to one
// template with one judge. Tasks are derived on demand and never persisted.
type EvalTask struct {
	SubmissionID string `json:"submission_id"`
	TemplateID   string `json:"template_id"`
	JudgeID      string `json:"judge_id"`
}

func (t EvalTask) String() string {
	return fmt.Sprintf("task(submission=%s template=%s judge=%s)", t.SubmissionID, t.TemplateID, t.JudgeID)
}

// TaskBuilder derives the evaluation tasks of a queue.
type TaskBuilder interface {
	BuildTasks(ctx context.Context, queueID string) ([]EvalTask, error)
}

type taskBuilder struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	judges      repository.JudgeRepository
	logger      zerolog.Logger
}

// NewTaskBuilder constructs a task builder over the record store.
func NewTaskBuilder(submissions repository.SubmissionRepository, assignments repository.AssignmentRepository, judges repository.JudgeRepository, logger zerolog.Logger) TaskBuilder {
	return &taskBuilder{
		submissions: submissions,
		assignments: assignments,
		judges:      judges,
		logger:      logger.With().Str("component", "task_builder").Logger(),
	}
}

// BuildTasks returns submissions × templates-in-queue × judges assigned to the
// template, in that nesting order. Assignments to inactive judges are skipped.
// Any fetch failure aborts the build; partial lists are never returned.
func (b *taskBuilder) BuildTasks(ctx context.Context, queueID string) ([]EvalTask, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-judge/internal/service/task_builder")
	ctx, span := tracer.Start(ctx, "tasks.build")
	span.SetAttributes(attribute.String("queue.id", queueID))
	defer span.End()

	var (
		submissionIDs []string
		templateIDs   []string
		assignments   []models.JudgeAssignment
		activeJudges  []models.Judge
	)

	// The submission -> template chain is sequential; assignments and judges
	// are independent reads.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ids, err := b.submissions.ListIDsByQueue(groupCtx, queueID)
		if err != nil {
			return &DependencyError{QueueID: queueID, Dependency: DependencySubmissions, Err: err}
		}
		submissionIDs = ids
		if len(ids) == 0 {
			return nil
		}
		templates, err := b.submissions.ListTemplateIDs(groupCtx, ids)
		if err != nil {
			return &DependencyError{QueueID: queueID, Dependency: DependencyTemplates, Err: err}
		}
		templateIDs = templates
		return nil
	})
	group.Go(func() error {
		rows, err := b.assignments.ListByQueue(groupCtx, queueID)
		if err != nil {
			return &DependencyError{QueueID: queueID, Dependency: DependencyAssignments, Err: err}
		}
		assignments = rows
		return nil
	})
	group.Go(func() error {
		judges, err := b.judges.ListActive(groupCtx)
		if err != nil {
			return &DependencyError{QueueID: queueID, Dependency: DependencyJudges, Err: err}
		}
		activeJudges = judges
		return nil
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dependency_fetch_failed")
		b.logger.Error().Err(err).Str("queue_id", queueID).Msg("task derivation aborted")
		return nil, err
	}

	tasks := deriveTasks(submissionIDs, templateIDs, assignments, activeJudges)
	span.SetAttributes(attribute.Int("tasks.count", len(tasks)))
	b.logger.Debug().
		Str("queue_id", queueID).
		Int("submissions", len(submissionIDs)).
		Int("templates", len(templateIDs)).
		Int("tasks", len(tasks)).
		Msg("tasks derived")

	return tasks, nil
}

// deriveTasks is the pure cross product behind BuildTasks.
func deriveTasks(submissionIDs, templateIDs []string, assignments []models.JudgeAssignment, activeJudges []models.Judge) []EvalTask {
	if len(submissionIDs) == 0 || len(templateIDs) == 0 {
		return []EvalTask{}
	}

	active := make(map[string]struct{}, len(activeJudges))
	for _, judge := range activeJudges {
		active[judge.ID] = struct{}{}
	}

	judgesByTemplate := make(map[string][]string)
	seen := make(map[[2]string]struct{}, len(assignments))
	for _, row := range assignments {
		if _, ok := active[row.JudgeID]; !ok {
			continue
		}
		key := [2]string{row.TemplateID, row.JudgeID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		judgesByTemplate[row.TemplateID] = append(judgesByTemplate[row.TemplateID], row.JudgeID)
	}

	tasks := make([]EvalTask, 0)
	for _, submissionID := range submissionIDs {
		for _, templateID := range templateIDs {
			for _, judgeID := range judgesByTemplate[templateID] {
				tasks = append(tasks, EvalTask{SubmissionID: submissionID, TemplateID: templateID, JudgeID: judgeID})
			}
		}
	}
	return tasks
}

// filterScored drops tasks whose triple already carries a verdict.
func filterScored(tasks []EvalTask, scored []models.Evaluation) []EvalTask {
	if len(scored) == 0 {
		return tasks
	}
	done := make(map[EvalTask]struct{}, len(scored))
	for _, row := range scored {
		done[EvalTask{SubmissionID: row.SubmissionID, TemplateID: row.TemplateID, JudgeID: row.JudgeID}] = struct{}{}
	}
	remaining := make([]EvalTask, 0, len(tasks))
	for _, task := range tasks {
		if _, ok := done[task]; ok {
			continue
		}
		remaining = append(remaining, task)
	}
	return remaining
}
