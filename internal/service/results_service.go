package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/repository"
)

// MaxResultsPageSize caps a single results fetch.
const MaxResultsPageSize = 500

// ResultsService reads verdicts back for presentation.
type ResultsService interface {
	Fetch(ctx context.Context, filter dto.ResultFilterRequest) ([]dto.VerdictRecord, error)
}

type resultsService struct {
	repo     repository.EvaluationRepository
	pageSize int
	logger   zerolog.Logger
}

// NewResultsService builds a results service. pageSize outside 1..500 falls
// back to 500.
func NewResultsService(repo repository.EvaluationRepository, pageSize int, logger zerolog.Logger) ResultsService {
	if pageSize <= 0 || pageSize > MaxResultsPageSize {
		pageSize = MaxResultsPageSize
	}
	return &resultsService{
		repo:     repo,
		pageSize: pageSize,
		logger:   logger.With().Str("component", "results_service").Logger(),
	}
}

// Fetch returns verdicts newest first, never more than the page size.
func (s *resultsService) Fetch(ctx context.Context, filter dto.ResultFilterRequest) ([]dto.VerdictRecord, error) {
	limit := s.pageSize
	if filter.Limit > 0 && filter.Limit < limit {
		limit = filter.Limit
	}

	records, err := s.repo.List(ctx, repository.EvaluationFilter{
		QueueID:    filter.QueueID,
		JudgeID:    filter.JudgeID,
		TemplateID: filter.TemplateID,
		Verdict:    filter.Verdict,
		Limit:      limit,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("queue_id", filter.QueueID).Msg("failed to fetch verdicts")
		return nil, err
	}

	result := make([]dto.VerdictRecord, 0, len(records))
	for _, record := range records {
		result = append(result, dto.VerdictRecord{
			ID:           record.ID,
			QueueID:      record.QueueID,
			SubmissionID: record.SubmissionID,
			TemplateID:   record.TemplateID,
			JudgeID:      record.JudgeID,
			Verdict:      record.Verdict,
			Reasoning:    record.Reasoning,
			JudgeName:    record.JudgeName,
			JudgeModel:   record.JudgeModel,
			TemplateText: record.TemplateText,
			TemplateType: record.TemplateType,
			CreatedAt:    record.CreatedAt,
		})
	}
	return result, nil
}

// ComputeStats counts verdicts by outcome. PassRatePercent is
// 100*pass/total rounded half up, and 0 for an empty set.
func ComputeStats(records []dto.VerdictRecord) dto.ResultStats {
	stats := dto.ResultStats{Total: len(records)}
	for _, record := range records {
		switch record.Verdict {
		case models.VerdictPass:
			stats.PassCount++
		case models.VerdictFail:
			stats.FailCount++
		default:
			stats.InconclusiveCount++
		}
	}
	stats.PassRatePercent = passRatePercent(stats.PassCount, stats.Total)
	return stats
}

// passRatePercent rounds in integer arithmetic: (200p + t) / 2t is
// floor(100p/t + 1/2).
func passRatePercent(pass, total int) int {
	if total == 0 {
		return 0
	}
	return (200*pass + total) / (2 * total)
}
