package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRateLimitPerQueue(t *testing.T) {
	app := fiber.New()
	app.Post("/queues/:queueId/runs", RateLimit("runs", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	send := func(path string) int {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil))
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusAccepted, send("/queues/Q1/runs"))
	require.Equal(t, fiber.StatusTooManyRequests, send("/queues/Q1/runs"))
	require.Equal(t, fiber.StatusAccepted, send("/queues/Q2/runs"))
}

func TestRateLimitDisabled(t *testing.T) {
	app := fiber.New()
	app.Post("/imports", RateLimit("imports", 0, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/imports", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}
}
