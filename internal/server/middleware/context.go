package middleware

import (
	"muhasibi/internal/queue"
	"muhasibi/pkg/engine"
	"muhasibi/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
)

// App bundles the shared collaborators handlers need. All of them are safe
// for concurrent use; nothing here is per-request.
type App struct {
	Engine    *engine.Engine
	Runs      store.RunStore
	Publisher *queue.RunTracePublisher
	S3        *s3.Client
	Keyfunc   *keyfunc.Keyfunc

	MasterAPIKey string
}

// AppContext carries App on the echo context.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware installs the App on every request context.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}

// AppFrom extracts the App from an echo context.
func AppFrom(c echo.Context) *App {
	if ac, ok := c.(*AppContext); ok {
		return ac.App
	}
	return nil
}
