package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redstring/corkboard/internal/queue"
	mid "github.com/redstring/corkboard/internal/server/middleware"
	"github.com/redstring/corkboard/internal/server/runs"
	"github.com/redstring/corkboard/internal/storage"
	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/agent"
	"github.com/redstring/corkboard/pkg/logger"
	"github.com/redstring/corkboard/pkg/search"
	"github.com/redstring/corkboard/pkg/store"
	storepgx "github.com/redstring/corkboard/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var key keyfunc.Keyfunc
	authEnabled := false
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = k
		authEnabled = true
	}

	var graphStore store.GraphStore
	if databaseURL := util.GetEnv("DATABASE_URL"); databaseURL != "" {
		s, err := storepgx.NewGraphDBStore(ctx, storepgx.NewGraphDBStoreParams{
			DatabaseURL:   databaseURL,
			MigrationsURL: util.GetEnvString("MIGRATIONS_URL", "file://migrations"),
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer s.Close()
		graphStore = s
	}

	var sink agent.ProgressSink
	if util.GetEnv("RABBITMQ_HOST") != "" {
		que, err := queue.Init()
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer que.Close()
		sink = que
	}

	var s3Client *s3.Client
	if util.GetEnv("AWS_BUCKET") != "" {
		s3Client = storage.NewS3Client(ctx)
	}

	searchClient := search.NewTavilyClient(search.NewTavilyClientParams{
		APIKey:      util.GetEnv("SEARCH_API_KEY"),
		Endpoint:    util.GetEnv("SEARCH_URL"),
		EnrichPages: util.GetEnvBool("SEARCH_ENRICH", false),
	})

	registry := runs.NewRegistry()
	masterAPIKey := util.GetEnv("MASTER_API_KEY")

	e.Use(mid.AppContextMiddleware(registry, &key, s3Client, sink, graphStore, searchClient, masterAPIKey, authEnabled))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

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
