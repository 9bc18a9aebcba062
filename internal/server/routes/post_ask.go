package routes

import (
	"net/http"

	"muhasibi/internal/server/middleware"
	"muhasibi/pkg/common"
	"muhasibi/pkg/engine"
	"muhasibi/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AskHandler runs one question through the reasoning pipeline and returns
// the final response plus the redacted state trace.
func AskHandler(c echo.Context) error {
	type askBody struct {
		Question string `json:"question" validate:"required"`
		Language string `json:"language"`
		Mode     string `json:"mode"`
	}

	type askResponse struct {
		Message   string                `json:"message,omitempty"`
		RequestID string                `json:"request_id,omitempty"`
		Response  *common.FinalResponse `json:"response,omitempty"`
		Trace     []engine.TraceEntry   `json:"trace,omitempty"`
	}

	data := new(askBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, askResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, askResponse{Message: "Invalid request body"})
	}

	app := middleware.AppFrom(c)
	if app == nil || app.Engine == nil {
		return c.JSON(http.StatusInternalServerError, askResponse{Message: "Engine unavailable"})
	}

	result, err := app.Engine.Process(c.Request().Context(), engine.Request{
		Question: data.Question,
		Language: data.Language,
		Mode:     common.Mode(data.Mode),
	})
	if err != nil {
		// Only cancellation reaches here; every other failure is a
		// structured refusal inside the response.
		logger.Debug("Ask request aborted", "err", err)
		return c.NoContent(http.StatusRequestTimeout)
	}

	return c.JSON(http.StatusOK, askResponse{
		RequestID: result.RequestID,
		Response:  &result.Response,
		Trace:     result.Trace,
	})
}
