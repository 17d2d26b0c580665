package handler

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/service"
	"github.com/noah-isme/gema-judge/internal/utils"
)

const maxImportBytes = 20 << 20

// ImportHandler accepts submission documents either as a raw JSON body or as
// a multipart "file" field.
type ImportHandler struct {
	service service.ImportService
	logger  zerolog.Logger
}

// NewImportHandler constructs an import handler.
func NewImportHandler(service service.ImportService, logger zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		service: service,
		logger:  logger.With().Str("component", "import_handler").Logger(),
	}
}

// Register wires import routes.
func (h *ImportHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
}

func (h *ImportHandler) upload(c *fiber.Ctx) error {
	document, err := h.readDocument(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if len(document) > maxImportBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "import document too large")
	}

	result, err := h.service.Import(requestContext(c), document)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "import completed", result)
}

func (h *ImportHandler) readDocument(c *fiber.Ctx) ([]byte, error) {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return c.Body(), nil
	}

	header, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, maxImportBytes+1))
}
