package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/redstring/corkboard/internal/server/middleware"
	"github.com/redstring/corkboard/pkg/common"
)

// GetBoardHandler returns the current state of a run: lifecycle state,
// intensity, counts, the board snapshot, and the evidence log.
func GetBoardHandler(c echo.Context) error {
	type getBoardParams struct {
		RunID string `param:"id" validate:"required"`
	}

	type getBoardResponse struct {
		Message         string           `json:"message"`
		RunID           string           `json:"run_id,omitempty"`
		TopicA          string           `json:"topic_a,omitempty"`
		TopicB          string           `json:"topic_b,omitempty"`
		State           string           `json:"state,omitempty"`
		Intensity       float64          `json:"intensity"`
		RoundsRequested int              `json:"rounds_requested,omitempty"`
		RoundsCompleted int              `json:"rounds_completed"`
		Skipped         int              `json:"skipped"`
		Snapshot        *common.Snapshot `json:"snapshot,omitempty"`
		Findings        []common.Finding `json:"findings,omitempty"`
	}

	params := new(getBoardParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getBoardResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getBoardResponse{
			Message: "Invalid request",
		})
	}

	app := c.(*middleware.AppContext).App
	run, ok := app.Registry.Get(params.RunID)
	if !ok {
		return c.JSON(http.StatusNotFound, getBoardResponse{
			Message: "Board not found",
		})
	}

	session := run.Session
	topicA, topicB := session.Topics()
	snapshot := session.Snapshot()

	return c.JSON(http.StatusOK, getBoardResponse{
		Message:         "OK",
		RunID:           session.RunID(),
		TopicA:          topicA,
		TopicB:          topicB,
		State:           session.State().String(),
		Intensity:       session.Intensity(),
		RoundsRequested: session.Rounds(),
		RoundsCompleted: session.RoundsCompleted(),
		Skipped:         session.SkippedTotal(),
		Snapshot:        &snapshot,
		Findings:        session.Findings(),
	})
}
