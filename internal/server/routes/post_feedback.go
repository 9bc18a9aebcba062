package routes

import (
	"net/http"
	"time"

	"muhasibi/internal/server/middleware"
	"muhasibi/pkg/logger"
	"muhasibi/pkg/store"

	"github.com/labstack/echo/v4"
)

// FeedbackHandler accepts a rating for a finished run and enqueues it for
// append-only persistence.
func FeedbackHandler(c echo.Context) error {
	type feedbackBody struct {
		RequestID string   `json:"request_id" validate:"required"`
		Rating    int      `json:"rating" validate:"min=-1,max=1"`
		Tags      []string `json:"tags"`
		Comment   string   `json:"comment"`
	}

	type feedbackResponse struct {
		Message string `json:"message"`
	}

	data := new(feedbackBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, feedbackResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, feedbackResponse{Message: "Invalid request body"})
	}

	app := middleware.AppFrom(c)
	if app == nil || app.Publisher == nil {
		return c.JSON(http.StatusInternalServerError, feedbackResponse{Message: "Feedback unavailable"})
	}

	err := app.Publisher.PublishFeedback(c.Request().Context(), store.FeedbackRecord{
		RequestID: data.RequestID,
		Rating:    data.Rating,
		Tags:      data.Tags,
		Comment:   data.Comment,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("Failed to enqueue feedback", "request_id", data.RequestID, "err", err)
		return c.JSON(http.StatusInternalServerError, feedbackResponse{Message: "Failed to record feedback"})
	}

	return c.JSON(http.StatusAccepted, feedbackResponse{Message: "Feedback recorded"})
}
