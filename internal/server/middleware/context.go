package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/tuchaVshortah/financial-kg-agent/internal/audit"
	"github.com/tuchaVshortah/financial-kg-agent/internal/bootstrap"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"
)

// AppUser is the authenticated caller of a request.
type AppUser struct {
	Subject     string
	Role        string
	Permissions []string
}

// App carries the shared dependencies handlers read from the request
// context. Handle always points at the current pipeline; DBConn, Queue,
// and S3 stay nil when the deployment does not configure them.
type App struct {
	Handle       *bootstrap.Handle
	Client       ai.CompletionClient
	Recorder     audit.Recorder
	DBConn       *pgxpool.Pool
	Queue        *amqp091.Channel
	Key          *keyfunc.Keyfunc
	S3           *s3.Client
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
