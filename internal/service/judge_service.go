package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/repository"
)

var (
	// ErrJudgeNotFound indicates the requested judge does not exist.
	ErrJudgeNotFound = errors.New("judge not found")
	// ErrJudgeNameEmpty indicates the name was empty once markup was stripped.
	ErrJudgeNameEmpty = errors.New("judge name empty after sanitization")
)

// JudgeService manages the configured graders.
type JudgeService interface {
	List(ctx context.Context, activeOnly bool) ([]dto.JudgeResponse, error)
	Get(ctx context.Context, id string) (dto.JudgeResponse, error)
	Create(ctx context.Context, payload dto.JudgeCreateRequest) (dto.JudgeResponse, error)
	Update(ctx context.Context, id string, payload dto.JudgeUpdateRequest) (dto.JudgeResponse, error)
}

type judgeService struct {
	repo         repository.JudgeRepository
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	defaultModel string
	logger       zerolog.Logger
	now          func() time.Time
}

// NewJudgeService builds a judge service. Judges created without a model use defaultModel.
func NewJudgeService(repo repository.JudgeRepository, validate *validator.Validate, defaultModel string, logger zerolog.Logger) JudgeService {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &judgeService{
		repo:         repo,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		defaultModel: defaultModel,
		logger:       logger.With().Str("component", "judge_service").Logger(),
		now:          time.Now,
	}
}

func (s *judgeService) List(ctx context.Context, activeOnly bool) ([]dto.JudgeResponse, error) {
	var (
		judges []models.Judge
		err    error
	)
	if activeOnly {
		judges, err = s.repo.ListActive(ctx)
	} else {
		judges, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return dto.NewJudgeResponseSlice(judges), nil
}

func (s *judgeService) Get(ctx context.Context, id string) (dto.JudgeResponse, error) {
	judge, err := s.find(ctx, id)
	if err != nil {
		return dto.JudgeResponse{}, err
	}
	return dto.NewJudgeResponse(judge), nil
}

// cleanName strips markup from a display name. The policy output is
// unescaped again so characters like & and < are stored as typed.
func (s *judgeService) cleanName(name string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(name)))
}

func (s *judgeService) Create(ctx context.Context, payload dto.JudgeCreateRequest) (dto.JudgeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.JudgeResponse{}, err
	}

	name := s.cleanName(payload.Name)
	if name == "" {
		return dto.JudgeResponse{}, ErrJudgeNameEmpty
	}

	model := strings.TrimSpace(payload.Model)
	if model == "" {
		model = s.defaultModel
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}

	judge := models.Judge{
		ID:           uuid.NewString(),
		Name:         name,
		SystemPrompt: strings.TrimSpace(payload.SystemPrompt),
		Model:        model,
		Active:       active,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, &judge); err != nil {
		s.logger.Error().Err(err).Msg("failed to create judge")
		return dto.JudgeResponse{}, err
	}

	s.logger.Info().Str("judge_id", judge.ID).Str("model", judge.Model).Msg("judge created")
	return dto.NewJudgeResponse(judge), nil
}

func (s *judgeService) Update(ctx context.Context, id string, payload dto.JudgeUpdateRequest) (dto.JudgeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.JudgeResponse{}, err
	}

	judge, err := s.find(ctx, id)
	if err != nil {
		return dto.JudgeResponse{}, err
	}

	if payload.Name != nil {
		name := s.cleanName(*payload.Name)
		if name == "" {
			return dto.JudgeResponse{}, ErrJudgeNameEmpty
		}
		judge.Name = name
	}
	if payload.SystemPrompt != nil {
		judge.SystemPrompt = strings.TrimSpace(*payload.SystemPrompt)
	}
	if payload.Model != nil {
		judge.Model = strings.TrimSpace(*payload.Model)
	}
	if payload.Active != nil {
		judge.Active = *payload.Active
	}

	if err := s.repo.Update(ctx, &judge); err != nil {
		s.logger.Error().Err(err).Str("judge_id", id).Msg("failed to update judge")
		return dto.JudgeResponse{}, err
	}
	return dto.NewJudgeResponse(judge), nil
}

func (s *judgeService) find(ctx context.Context, id string) (models.Judge, error) {
	judge, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Judge{}, ErrJudgeNotFound
		}
		return models.Judge{}, err
	}
	return judge, nil
}
