package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/observability"
	"github.com/noah-isme/gema-judge/internal/repository"
)

// ErrJudgeNotAssignable indicates a mapping names a judge that is unknown or
// inactive.
var ErrJudgeNotAssignable = errors.New("judge not assignable")

// AssignmentService reads and replaces the judge assignments of a queue.
type AssignmentService interface {
	List(ctx context.Context, queueID string) (dto.AssignmentSetResponse, error)
	ReplaceAll(ctx context.Context, queueID string, mapping map[string][]string) (dto.AssignmentSetResponse, error)
}

type assignmentService struct {
	repo   repository.AssignmentRepository
	judges repository.JudgeRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, judges repository.JudgeRepository, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:   repo,
		judges: judges,
		logger: logger.With().Str("component", "assignment_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-judge/internal/service/assignment"),
	}
}

func (s *assignmentService) List(ctx context.Context, queueID string) (dto.AssignmentSetResponse, error) {
	rows, err := s.repo.ListByQueue(ctx, queueID)
	if err != nil {
		return dto.AssignmentSetResponse{}, &StoreError{Op: "list", QueueID: queueID, Err: err}
	}
	return dto.NewAssignmentSetResponse(queueID, rows), nil
}

// ReplaceAll makes the queue's assignment set exactly the flattened mapping.
// Templates are written in id order and judges in the order given; repeated
// judges under one template collapse to one row. Every judge must exist and
// be active; otherwise nothing is written and ErrJudgeNotAssignable is
// returned. A judge deactivated later keeps its rows, and task derivation
// skips it.
func (s *assignmentService) ReplaceAll(ctx context.Context, queueID string, mapping map[string][]string) (dto.AssignmentSetResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignments.replace", trace.WithAttributes(
		attribute.String("queue.id", queueID),
		attribute.Int("assignments.templates", len(mapping)),
	))
	defer span.End()

	rows := flattenAssignments(queueID, mapping)
	span.SetAttributes(attribute.Int("assignments.rows", len(rows)))

	if err := s.checkJudges(ctx, queueID, rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "judge check failed")
		return dto.AssignmentSetResponse{}, err
	}

	if err := s.repo.Replace(ctx, queueID, rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		observability.AssignmentWrites().WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("queue_id", queueID).Int("rows", len(rows)).Msg("failed to replace assignments")
		return dto.AssignmentSetResponse{}, &StoreError{Op: "replace", QueueID: queueID, Err: err}
	}

	observability.AssignmentWrites().WithLabelValues("ok").Inc()
	s.logger.Info().Str("queue_id", queueID).Int("rows", len(rows)).Msg("assignments replaced")
	return dto.NewAssignmentSetResponse(queueID, rows), nil
}

func (s *assignmentService) checkJudges(ctx context.Context, queueID string, rows []models.JudgeAssignment) error {
	if len(rows) == 0 {
		return nil
	}
	active, err := s.judges.ListActive(ctx)
	if err != nil {
		return &DependencyError{QueueID: queueID, Dependency: DependencyJudges, Err: err}
	}

	eligible := make(map[string]struct{}, len(active))
	for _, judge := range active {
		eligible[judge.ID] = struct{}{}
	}
	rejected := make(map[string]struct{})
	for _, row := range rows {
		if _, ok := eligible[row.JudgeID]; !ok {
			rejected[row.JudgeID] = struct{}{}
		}
	}
	if len(rejected) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rejected))
	for id := range rejected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.logger.Warn().Str("queue_id", queueID).Strs("judge_ids", ids).Msg("rejected assignment to unknown or inactive judges")
	return fmt.Errorf("%w: %s", ErrJudgeNotAssignable, strings.Join(ids, ", "))
}

func flattenAssignments(queueID string, mapping map[string][]string) []models.JudgeAssignment {
	templateIDs := make([]string, 0, len(mapping))
	for templateID := range mapping {
		if strings.TrimSpace(templateID) == "" {
			continue
		}
		templateIDs = append(templateIDs, templateID)
	}
	sort.Strings(templateIDs)

	rows := make([]models.JudgeAssignment, 0)
	for _, templateID := range templateIDs {
		seen := make(map[string]struct{}, len(mapping[templateID]))
		for _, judgeID := range mapping[templateID] {
			if strings.TrimSpace(judgeID) == "" {
				continue
			}
			if _, dup := seen[judgeID]; dup {
				continue
			}
			seen[judgeID] = struct{}{}
			rows = append(rows, models.JudgeAssignment{
				QueueID:    queueID,
				TemplateID: templateID,
				JudgeID:    judgeID,
				Position:   len(rows),
			})
		}
	}
	return rows
}
