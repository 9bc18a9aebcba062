package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"muhasibi/internal/queue"
	mid "muhasibi/internal/server/middleware"
	"muhasibi/internal/storage"
	"muhasibi/internal/util"
	"muhasibi/pkg/ai"
	aiollama "muhasibi/pkg/ai/ollama"
	aiopenai "muhasibi/pkg/ai/openai"
	"muhasibi/pkg/engine"
	"muhasibi/pkg/logger"
	"muhasibi/pkg/resolve"
	"muhasibi/pkg/retrieve"
	storepgx "muhasibi/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// Init wires the API server: database, queue, object storage, model
// client, the reasoning engine, and the echo routes. Blocks until SIGINT
// or SIGTERM.
func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runMigrations()

	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	corpus := storepgx.New(conn)

	catalog, err := corpus.LoadCatalog(ctx)
	if err != nil {
		logger.Fatal("Failed to load entity catalog", "err", err)
	}
	resolver := resolve.NewResolver(catalog)
	logger.Info("Entity catalog loaded", "entities", len(catalog))

	modelClient := newModelClient()

	config := engine.ConfigFromEnv()
	if config.RerankerEnabled {
		logger.Info("Reranker flag is set but ignored; hybrid-merge ordering is authoritative")
	}

	retriever := retrieve.NewHybridRetriever(corpus, modelClient, modelClient, config.Retrieval)

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewRunTracePublisher(ch)

	eng := engine.New(engine.Params{
		Resolver:  resolver,
		Retriever: retriever,
		Model:     modelClient,
		Catalog:   corpus,
		Publisher: publisher,
		Config:    config,
	})

	s3Client := storage.NewS3Client(ctx)

	var k keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err = keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
	}

	app := &mid.App{
		Engine:       eng,
		Runs:         corpus,
		Publisher:    publisher,
		S3:           s3Client,
		Keyfunc:      &k,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

func runMigrations() {
	migrationsPath := util.GetEnvString("MIGRATIONS_PATH", "file://migrations")
	m, err := migrate.New(migrationsPath, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Warn("Migrations unavailable", "err", err)
		return
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}

// newModelClient selects the model backend (openai-compatible by default,
// ollama when AI_ADAPTER=ollama) and wraps it with rate limiting and the
// embedding cache.
func newModelClient() *ai.ModelClient {
	var backend ai.Client

	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := aiollama.New(aiollama.Params{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   int(util.GetEnvNumeric("AI_EMBED_DIM", 1024)),
			BaseURL:        util.GetEnv("AI_CHAT_URL"),
			APIKey:         util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		backend = client
	default:
		backend = aiopenai.New(aiopenai.Params{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   int(util.GetEnvNumeric("AI_EMBED_DIM", 1536)),
			ChatURL:        util.GetEnv("AI_CHAT_URL"),
			ChatKey:        util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL:   util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey:   util.GetEnv("AI_EMBED_KEY"),
		})
	}

	return ai.NewModelClient(backend, ai.ModelClientParams{
		RequestsPerSecond:  util.GetEnvNumeric("AI_REQUESTS_PER_SECOND", 0),
		ContextTokenBudget: int(util.GetEnvNumeric("AI_CONTEXT_TOKEN_BUDGET", 6000)),
	})
}
