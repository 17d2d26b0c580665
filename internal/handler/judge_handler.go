package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/service"
	"github.com/noah-isme/gema-judge/internal/utils"
)

// JudgeHandler wires judge management routes.
type JudgeHandler struct {
	service service.JudgeService
	logger  zerolog.Logger
}

// NewJudgeHandler constructs the handler.
func NewJudgeHandler(service service.JudgeService, logger zerolog.Logger) *JudgeHandler {
	return &JudgeHandler{
		service: service,
		logger:  logger.With().Str("component", "judge_handler").Logger(),
	}
}

// Register attaches judge endpoints to the router group.
func (h *JudgeHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Put("/:id", h.update)
}

func (h *JudgeHandler) list(c *fiber.Ctx) error {
	activeOnly := false
	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid active flag")
		}
		activeOnly = parsed
	}

	judges, err := h.service.List(requestContext(c), activeOnly)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "judges retrieved", judges)
}

func (h *JudgeHandler) get(c *fiber.Ctx) error {
	judge, err := h.service.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "judge retrieved", judge)
}

func (h *JudgeHandler) create(c *fiber.Ctx) error {
	var payload dto.JudgeCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	judge, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "judge created", judge)
}

func (h *JudgeHandler) update(c *fiber.Ctx) error {
	var payload dto.JudgeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	judge, err := h.service.Update(requestContext(c), c.Params("id"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "judge updated", judge)
}
