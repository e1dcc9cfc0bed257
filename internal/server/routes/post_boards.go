package routes

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/redstring/corkboard/internal/server/middleware"
	"github.com/redstring/corkboard/internal/storage"
	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/agent"
	"github.com/redstring/corkboard/pkg/ai"
	"github.com/redstring/corkboard/pkg/logger"
	"github.com/redstring/corkboard/pkg/narrator"
)

// CreateBoardHandler starts a new investigation and returns its run ID. The
// rounds run in a background goroutine; progress is available over the
// websocket route and the board route.
func CreateBoardHandler(c echo.Context) error {
	type createBoardBody struct {
		TopicA string `json:"topic_a" validate:"required"`
		TopicB string `json:"topic_b" validate:"required"`
		Rounds int    `json:"rounds" validate:"required,min=1,max=10"`
	}

	type createBoardResponse struct {
		Message string `json:"message"`
		RunID   string `json:"run_id,omitempty"`
	}

	data := new(createBoardBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createBoardResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createBoardResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App

	session, err := agent.NewSession(data.TopicA, data.TopicB, data.Rounds)
	if err != nil {
		return c.JSON(http.StatusBadRequest, createBoardResponse{
			Message: "Invalid topics or round count",
		})
	}

	sinks := agent.MultiSink{app.Registry}
	if app.Sink != nil {
		sinks = append(sinks, app.Sink)
	}

	client := app.AiClient
	loop, err := agent.NewLoop(agent.LoopParams{
		Search:    app.Search,
		Extractor: ai.NewExtractor(client, ""),
		Vision: func(ctx context.Context, topicA, topicB, imageURL string) string {
			return ai.AnalyzeImage(ctx, client, topicA, topicB, imageURL)
		},
		Narrator: narrator.NewNarrator(client),
		Sink:     sinks,
		Store:    app.Store,
		Durable:  util.GetEnvBool("STORE_REQUIRED", false),
	})
	if err != nil {
		logger.Error("Failed to assemble loop", "err", err)
		return c.JSON(http.StatusInternalServerError, createBoardResponse{
			Message: "Internal server error",
		})
	}

	runCtx, cancel := context.WithCancel(context.Background())
	app.Registry.Add(session, cancel)

	go func() {
		defer cancel()
		if err := loop.Run(runCtx, session); err != nil {
			logger.Error("Investigation failed", "run", session.RunID(), "err", err)
			return
		}
		if app.S3 != nil && session.State() == agent.StateCompleted {
			if err := storage.ArchiveSnapshot(context.Background(), app.S3, session.RunID(), session.Snapshot()); err != nil {
				logger.Error("Failed to archive board", "run", session.RunID(), "err", err)
			}
		}
	}()

	return c.JSON(http.StatusOK, createBoardResponse{
		Message: "Investigation started",
		RunID:   session.RunID(),
	})
}
