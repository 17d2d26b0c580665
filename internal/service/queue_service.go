package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/repository"
)

// QueueService lists queues and the templates reachable from them.
type QueueService interface {
	List(ctx context.Context) ([]dto.QueueResponse, error)
	Templates(ctx context.Context, queueID string) ([]dto.TemplateResponse, error)
}

type queueService struct {
	queues      repository.QueueRepository
	submissions repository.SubmissionRepository
	templates   repository.TemplateRepository
	logger      zerolog.Logger
}

// NewQueueService builds a queue service.
func NewQueueService(queues repository.QueueRepository, submissions repository.SubmissionRepository, templates repository.TemplateRepository, logger zerolog.Logger) QueueService {
	return &queueService{
		queues:      queues,
		submissions: submissions,
		templates:   templates,
		logger:      logger.With().Str("component", "queue_service").Logger(),
	}
}

func (s *queueService) List(ctx context.Context) ([]dto.QueueResponse, error) {
	queues, err := s.queues.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewQueueResponseSlice(queues), nil
}

// Templates returns the templates referenced by any submission in the queue,
// ordered by template id.
func (s *queueService) Templates(ctx context.Context, queueID string) ([]dto.TemplateResponse, error) {
	submissionIDs, err := s.submissions.ListIDsByQueue(ctx, queueID)
	if err != nil {
		return nil, &DependencyError{QueueID: queueID, Dependency: DependencySubmissions, Err: err}
	}
	if len(submissionIDs) == 0 {
		return []dto.TemplateResponse{}, nil
	}

	templateIDs, err := s.submissions.ListTemplateIDs(ctx, submissionIDs)
	if err != nil {
		return nil, &DependencyError{QueueID: queueID, Dependency: DependencyTemplates, Err: err}
	}
	if len(templateIDs) == 0 {
		return []dto.TemplateResponse{}, nil
	}

	templates, err := s.templates.ListByIDs(ctx, templateIDs)
	if err != nil {
		return nil, &DependencyError{QueueID: queueID, Dependency: DependencyTemplates, Err: err}
	}
	return dto.NewTemplateResponseSlice(templates), nil
}
