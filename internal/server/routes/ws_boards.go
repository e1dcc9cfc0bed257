package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/redstring/corkboard/internal/server/middleware"
	"github.com/redstring/corkboard/pkg/logger"
)

// BoardStreamHandler streams a run's progress events over a websocket. A
// client connecting mid-run first receives the full event history, so a
// reconnect never misses a round. The connection closes after the terminal
// event.
func BoardStreamHandler(c echo.Context) error {
	type streamParams struct {
		RunID string `param:"id" validate:"required"`
	}

	params := new(streamParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}

	app := c.(*middleware.AppContext).App
	run, ok := app.Registry.Get(params.RunID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Board not found"})
	}

	handler := websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()

		history, events, unsubscribe := run.Subscribe()
		defer unsubscribe()

		for _, event := range history {
			if err := websocket.JSON.Send(ws, event); err != nil {
				logger.Debug("[WS] Client dropped during replay", "run", params.RunID)
				return
			}
		}
		for event := range events {
			if err := websocket.JSON.Send(ws, event); err != nil {
				logger.Debug("[WS] Client dropped", "run", params.RunID)
				return
			}
		}
	})
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
