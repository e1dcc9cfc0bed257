package server

import (
	"github.com/redstring/corkboard/internal/server/middleware"
	"github.com/redstring/corkboard/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Board routes
	apiRoutes.POST("/boards", routes.CreateBoardHandler)
	apiRoutes.GET("/boards/:id", routes.GetBoardHandler)
	apiRoutes.DELETE("/boards/:id", routes.CancelBoardHandler)

	// Live progress stream
	e.GET("/ws/:id", routes.BoardStreamHandler)
}
