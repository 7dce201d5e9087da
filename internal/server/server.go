package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tuchaVshortah/financial-kg-agent/internal/audit"
	"github.com/tuchaVshortah/financial-kg-agent/internal/bootstrap"
	"github.com/tuchaVshortah/financial-kg-agent/internal/queue"
	mid "github.com/tuchaVshortah/financial-kg-agent/internal/server/middleware"
	"github.com/tuchaVshortah/financial-kg-agent/internal/storage"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rabbitmq/amqp091-go"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
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

// Init wires the reasoning pipeline and its optional backing services,
// then serves until SIGINT or SIGTERM. Postgres, RabbitMQ, S3, and the
// JWKS endpoint are each attached only when their environment is set, so
// a seed-graph deployment runs with nothing but a completion backend.
func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var key *keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = &k
	}

	var conn *pgxpool.Pool
	if dbURL := util.GetEnv("DATABASE_URL"); dbURL != "" {
		if err := runMigrations(dbURL); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
		var err error
		conn, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer conn.Close()
	}

	var ch *amqp091.Channel
	if util.GetEnv("RABBITMQ_HOST") != "" {
		que := queue.Init()
		defer que.Close()
		var err error
		ch, err = que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch, []string{queue.AuditQueue}); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
	}

	var s3Client *s3.Client
	if util.GetEnv("AWS_REGION") != "" {
		var err error
		s3Client, err = storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
	}

	aiClient, err := bootstrap.NewCompletionClient()
	if err != nil {
		logger.Fatal("Failed to create completion client", "err", err)
	}

	pipeline, err := bootstrap.Build(ctx, bootstrap.BuildParams{
		Client: aiClient,
		S3:     s3Client,
		DB:     conn,
	})
	if err != nil {
		logger.Fatal("Failed to build reasoning pipeline", "err", err)
	}

	app := &mid.App{
		Handle:       bootstrap.NewHandle(pipeline),
		Client:       aiClient,
		Recorder:     buildRecorder(ch),
		DBConn:       conn,
		Queue:        ch,
		Key:          key,
		S3:           s3Client,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("[Server] Handled request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

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

// buildRecorder prefers the queue, making the worker the sole writer of
// the canonical audit log. Without a broker the server appends directly.
func buildRecorder(ch *amqp091.Channel) audit.Recorder {
	if ch != nil {
		return audit.NewQueueRecorder(ch, queue.AuditQueue)
	}
	return audit.NewJSONLRecorder(util.GetEnvString("AUDIT_LOG_PATH", "audit.log"))
}

// runMigrations applies pending schema migrations before the pool opens.
func runMigrations(dbURL string) error {
	m, err := migrate.New("file://"+util.GetEnvString("MIGRATIONS_PATH", "migrations"), dbURL)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
