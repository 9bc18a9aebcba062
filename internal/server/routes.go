package server

import (
	"muhasibi/internal/server/middleware"
	"muhasibi/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Ask pipeline
	apiRoutes.POST("/ask", routes.AskHandler)

	// Run traces and feedback
	apiRoutes.GET("/runs/:id", routes.GetRunHandler)
	apiRoutes.POST("/feedback", routes.FeedbackHandler)

	// Source documents behind citation anchors
	apiRoutes.GET("/sources/:doc_id", routes.GetSourceHandler)
}
