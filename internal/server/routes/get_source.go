package routes

import (
	"net/http"

	"muhasibi/internal/server/middleware"
	"muhasibi/internal/storage"
	"muhasibi/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetSourceHandler streams the original source document a citation anchor
// points into, so the UI can show the quote in context.
func GetSourceHandler(c echo.Context) error {
	docID := c.Param("doc_id")
	if docID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing document id"})
	}

	app := middleware.AppFrom(c)
	if app == nil || app.S3 == nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Source storage unavailable"})
	}

	body, contentType, err := storage.GetSourceDocument(c.Request().Context(), app.S3, docID)
	if err != nil {
		logger.Debug("Source document lookup failed", "doc_id", docID, "err", err)
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Source document not found"})
	}

	return c.Blob(http.StatusOK, contentType, body)
}
