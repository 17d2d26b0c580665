package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/middleware"
	"github.com/noah-isme/gema-judge/internal/service"
	"github.com/noah-isme/gema-judge/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func queueIDParam(c *fiber.Ctx) (string, error) {
	queueID := strings.TrimSpace(c.Params("queueId"))
	if queueID == "" || len(queueID) > 128 {
		return "", errors.New("invalid queue id")
	}
	return queueID, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

// handleError maps the service error taxonomy onto HTTP statuses. Upstream
// failures keep their message so the caller can see which dependency or task
// failed.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid request", validationDetails(validationErrors))
	case errors.Is(err, service.ErrUnsupportedImportType):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrInvalidImport), errors.Is(err, service.ErrJudgeNameEmpty), errors.Is(err, service.ErrJudgeNotAssignable):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrJudgeNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "judge not found")
	case errors.Is(err, service.ErrRunNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "run not found")
	case errors.Is(err, service.ErrRunAlreadyInProgress):
		return utils.SendError(c, fiber.StatusConflict, "a run is already in progress for this queue")
	case errors.Is(err, service.ErrDependencyFetchFailed),
		errors.Is(err, service.ErrStoreUnavailable),
		errors.Is(err, service.ErrScorerFailure),
		errors.Is(err, service.ErrEvaluatorUnavailable):
		requestLogger(logger, c).Warn().Err(err).Msg("upstream dependency failed")
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func newTaskResponse(task service.EvalTask) dto.TaskResponse {
	return dto.TaskResponse{SubmissionID: task.SubmissionID, TemplateID: task.TemplateID, JudgeID: task.JudgeID}
}

func newRunResponse(snapshot service.RunSnapshot) dto.RunResponse {
	response := dto.RunResponse{
		RunID:      snapshot.RunID,
		QueueID:    snapshot.QueueID,
		Status:     string(snapshot.Status),
		Done:       snapshot.Done,
		Total:      snapshot.Total,
		Succeeded:  snapshot.Succeeded,
		Skipped:    snapshot.Skipped,
		FinishedAt: snapshot.FinishedAt,
	}
	if !snapshot.StartedAt.IsZero() {
		started := snapshot.StartedAt
		response.StartedAt = &started
	}
	if snapshot.FailedTask != nil {
		failed := newTaskResponse(*snapshot.FailedTask)
		response.FailedTask = &failed
	}
	if snapshot.Err != nil {
		response.Error = snapshot.Err.Error()
	}
	return response
}
