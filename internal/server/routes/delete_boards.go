package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/redstring/corkboard/internal/server/middleware"
	"github.com/redstring/corkboard/pkg/agent"
)

// CancelBoardHandler requests cancellation of a running investigation. The
// loop stops at the next round boundary; completed rounds stay queryable.
func CancelBoardHandler(c echo.Context) error {
	type cancelBoardParams struct {
		RunID string `param:"id" validate:"required"`
	}

	type cancelBoardResponse struct {
		Message string `json:"message"`
		State   string `json:"state,omitempty"`
	}

	params := new(cancelBoardParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, cancelBoardResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, cancelBoardResponse{
			Message: "Invalid request",
		})
	}

	app := c.(*middleware.AppContext).App
	run, ok := app.Registry.Get(params.RunID)
	if !ok {
		return c.JSON(http.StatusNotFound, cancelBoardResponse{
			Message: "Board not found",
		})
	}

	if run.Session.State() == agent.StateRunning {
		run.Cancel()
	}

	return c.JSON(http.StatusOK, cancelBoardResponse{
		Message: "Cancellation requested",
		State:   run.Session.State().String(),
	})
}
