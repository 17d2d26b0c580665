package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/middleware"
	"github.com/noah-isme/gema-judge/internal/service"
	"github.com/noah-isme/gema-judge/internal/utils"
)

const runStreamWriteTimeout = 5 * time.Second

// RunHandler exposes task preview and run control for a queue.
type RunHandler struct {
	tasks  service.TaskBuilder
	runs   service.RunService
	logger zerolog.Logger
}

// NewRunHandler constructs the handler.
func NewRunHandler(tasks service.TaskBuilder, runs service.RunService, logger zerolog.Logger) *RunHandler {
	return &RunHandler{
		tasks:  tasks,
		runs:   runs,
		logger: logger.With().Str("component", "run_handler").Logger(),
	}
}

// Register attaches run endpoints to the queues group.
func (h *RunHandler) Register(router fiber.Router) {
	router.Use("/:queueId/runs/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/:queueId/tasks", h.preview)
	router.Post("/:queueId/runs", h.start)
	router.Get("/:queueId/runs/current", h.status)
	router.Post("/:queueId/runs/cancel", h.cancel)
	router.Get("/:queueId/runs/ws", websocket.New(h.stream))
}

func (h *RunHandler) preview(c *fiber.Ctx) error {
	queueID, err := queueIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	tasks, err := h.tasks.BuildTasks(requestContext(c), queueID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	response := dto.TaskPreviewResponse{
		QueueID: queueID,
		Total:   len(tasks),
		Tasks:   make([]dto.TaskResponse, 0, len(tasks)),
	}
	for _, task := range tasks {
		response.Tasks = append(response.Tasks, newTaskResponse(task))
	}
	return utils.SendSuccess(c, "tasks derived", response)
}

func (h *RunHandler) start(c *fiber.Ctx) error {
	queueID, err := queueIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RunStartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	if raw := c.Query("wait"); raw != "" {
		wait, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid wait flag")
		}
		payload.Wait = wait
	}
	if raw := c.Query("skip_scored"); raw != "" {
		skip, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid skip_scored flag")
		}
		payload.SkipScored = skip
	}

	opts := service.RunOptions{SkipScored: payload.SkipScored}
	ctx := requestContext(c)

	if payload.Wait {
		snapshot, err := h.runs.Execute(ctx, queueID, opts)
		if err != nil && !errors.Is(err, context.Canceled) {
			return handleError(c, h.logger, err)
		}
		return utils.SendSuccess(c, runMessage(snapshot.Status), newRunResponse(snapshot))
	}

	snapshot, err := h.runs.Start(ctx, queueID, opts)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "run started", newRunResponse(snapshot))
}

func (h *RunHandler) status(c *fiber.Ctx) error {
	queueID, err := queueIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	snapshot, err := h.runs.Status(requestContext(c), queueID)
	if err != nil && !errors.Is(err, service.ErrRunNotFound) {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, runMessage(snapshot.Status), newRunResponse(snapshot))
}

func (h *RunHandler) cancel(c *fiber.Ctx) error {
	queueID, err := queueIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	snapshot, err := h.runs.Cancel(requestContext(c), queueID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "cancellation requested", newRunResponse(snapshot))
}

// stream sends the current run state and then every event for the queue
// until the client disconnects.
func (h *RunHandler) stream(conn *websocket.Conn) {
	queueID := strings.TrimSpace(conn.Params("queueId"))
	if queueID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "queue id required"))
		_ = conn.Close()
		return
	}

	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := h.logger.With().Str("queue_id", queueID).Logger()
	if correlation, ok := conn.Locals("correlation_id").(string); ok && correlation != "" {
		logger = logger.With().Str("correlation_id", correlation).Logger()
	}

	events, unsubscribe := h.runs.Subscribe(queueID)
	defer unsubscribe()

	snapshot, _ := h.runs.Status(ctx, queueID)
	initial := service.RunEvent{
		Type:       service.RunEventSnapshot,
		RunID:      snapshot.RunID,
		QueueID:    queueID,
		Status:     snapshot.Status,
		Done:       snapshot.Done,
		Total:      snapshot.Total,
		FailedTask: snapshot.FailedTask,
		At:         time.Now().UTC(),
	}
	if err := h.write(conn, initial); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Info().Msg("run stream connected")
	defer logger.Info().Msg("run stream disconnected")

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, event); err != nil {
				logger.Debug().Err(err).Msg("run stream write failed")
				return
			}
		}
	}
}

func (h *RunHandler) write(conn *websocket.Conn, event service.RunEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(runStreamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

func runMessage(status service.RunStatus) string {
	switch status {
	case service.RunStatusNoTasks:
		return "no tasks to run"
	case service.RunStatusCompleted:
		return "run completed"
	case service.RunStatusFailed:
		return "run failed"
	case service.RunStatusCancelled:
		return "run cancelled"
	case service.RunStatusRunning:
		return "run in progress"
	default:
		return "no run"
	}
}
