package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/service"
	"github.com/noah-isme/gema-judge/internal/utils"
)

// ResultHandler serves verdict listings with summary stats.
type ResultHandler struct {
	service   service.ResultsService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewResultHandler constructs the handler.
func NewResultHandler(service service.ResultsService, validator *validator.Validate, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "result_handler").Logger(),
	}
}

// Register attaches result endpoints.
func (h *ResultHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ResultHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	filter := dto.ResultFilterRequest{
		QueueID:    strings.TrimSpace(c.Query("queue_id")),
		JudgeID:    strings.TrimSpace(c.Query("judge_id")),
		TemplateID: strings.TrimSpace(c.Query("template_id")),
		Verdict:    strings.ToLower(strings.TrimSpace(c.Query("verdict"))),
		Limit:      limit,
	}
	if err := h.validator.Struct(filter); err != nil {
		return handleError(c, h.logger, err)
	}

	records, err := h.service.Fetch(requestContext(c), filter)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	applied := service.MaxResultsPageSize
	if filter.Limit > 0 {
		applied = filter.Limit
	}
	return utils.SendSuccess(c, "results retrieved", dto.ResultsResponse{
		Records: records,
		Stats:   service.ComputeStats(records),
		Limit:   applied,
	})
}
