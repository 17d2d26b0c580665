package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/repository"
	"github.com/noah-isme/gema-judge/pkg/ai"
)

// ErrEvaluatorUnavailable indicates no judge model is configured.
var ErrEvaluatorUnavailable = errors.New("evaluator unavailable")

type judgeScorer struct {
	judges      repository.JudgeRepository
	templates   repository.TemplateRepository
	submissions repository.SubmissionRepository
	evaluations repository.EvaluationRepository
	evaluator   ai.Evaluator
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewJudgeScorer returns the TaskScorer that grades one answer with the
// judge's model and appends the verdict.
func NewJudgeScorer(judges repository.JudgeRepository, templates repository.TemplateRepository, submissions repository.SubmissionRepository, evaluations repository.EvaluationRepository, evaluator ai.Evaluator, logger zerolog.Logger) TaskScorer {
	return &judgeScorer{
		judges:      judges,
		templates:   templates,
		submissions: submissions,
		evaluations: evaluations,
		evaluator:   evaluator,
		logger:      logger.With().Str("component", "judge_scorer").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-judge/internal/service/scorer"),
		now:         time.Now,
	}
}

func (s *judgeScorer) Score(ctx context.Context, task EvalTask) (models.Evaluation, error) {
	ctx, span := s.tracer.Start(ctx, "scorer.score", trace.WithAttributes(
		attribute.String("submission.id", task.SubmissionID),
		attribute.String("template.id", task.TemplateID),
		attribute.String("judge.id", task.JudgeID),
	))
	defer span.End()

	evaluation, err := s.score(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score failed")
		return models.Evaluation{}, err
	}
	span.SetAttributes(attribute.String("evaluation.verdict", evaluation.Verdict))
	return evaluation, nil
}

func (s *judgeScorer) score(ctx context.Context, task EvalTask) (models.Evaluation, error) {
	if s.evaluator == nil {
		return models.Evaluation{}, ErrEvaluatorUnavailable
	}

	judge, err := s.judges.GetByID(ctx, task.JudgeID)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("load judge %s: %w", task.JudgeID, err)
	}
	template, err := s.templates.GetByID(ctx, task.TemplateID)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("load template %s: %w", task.TemplateID, err)
	}

	// A submission without an answer row is graded as blank.
	answer, err := s.submissions.GetAnswer(ctx, task.SubmissionID, task.TemplateID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Evaluation{}, fmt.Errorf("load answer: %w", err)
	}

	result, err := s.evaluator.Evaluate(ctx, ai.EvaluationInput{
		Model:        judge.Model,
		Rubric:       judge.SystemPrompt,
		QuestionType: template.QuestionType,
		QuestionText: template.QuestionText,
		Choice:       deref(answer.Choice),
		Freeform:     deref(answer.Freeform),
		Reasoning:    deref(answer.Reasoning),
	})
	if err != nil {
		return models.Evaluation{}, err
	}

	evaluation := models.Evaluation{
		ID:           uuid.NewString(),
		SubmissionID: task.SubmissionID,
		TemplateID:   task.TemplateID,
		JudgeID:      task.JudgeID,
		Verdict:      models.NormalizeVerdict(result.Verdict),
		Reasoning:    result.Reasoning,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.evaluations.Create(ctx, &evaluation); err != nil {
		return models.Evaluation{}, fmt.Errorf("store verdict: %w", err)
	}

	s.logger.Debug().
		Str("submission_id", task.SubmissionID).
		Str("template_id", task.TemplateID).
		Str("judge_id", task.JudgeID).
		Str("verdict", evaluation.Verdict).
		Msg("task scored")
	return evaluation, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
