package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/service"
	"github.com/noah-isme/gema-judge/internal/utils"
)

// QueueHandler lists queues and their templates.
type QueueHandler struct {
	service service.QueueService
	logger  zerolog.Logger
}

// NewQueueHandler constructs the handler.
func NewQueueHandler(service service.QueueService, logger zerolog.Logger) *QueueHandler {
	return &QueueHandler{
		service: service,
		logger:  logger.With().Str("component", "queue_handler").Logger(),
	}
}

// Register attaches queue endpoints to the queues group.
func (h *QueueHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:queueId/templates", h.templates)
}

func (h *QueueHandler) list(c *fiber.Ctx) error {
	queues, err := h.service.List(requestContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "queues retrieved", queues)
}

func (h *QueueHandler) templates(c *fiber.Ctx) error {
	queueID, err := queueIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	templates, err := h.service.Templates(requestContext(c), queueID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "templates retrieved", templates)
}
