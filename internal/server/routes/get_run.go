package routes

import (
	"net/http"

	"muhasibi/internal/server/middleware"
	"muhasibi/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetRunHandler returns the stored trace bundle of a finished run. The
// stored trace holds states and counts only; chunk contents and prompts
// are never persisted with it.
func GetRunHandler(c echo.Context) error {
	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing run id"})
	}

	app := middleware.AppFrom(c)
	if app == nil || app.Runs == nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Run store unavailable"})
	}

	run, err := app.Runs.GetRun(c.Request().Context(), requestID)
	if err != nil {
		logger.Debug("Run lookup failed", "request_id", requestID, "err", err)
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Run not found"})
	}

	return c.JSON(http.StatusOK, run)
}
