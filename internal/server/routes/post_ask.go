package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tuchaVshortah/financial-kg-agent/internal/audit"
	"github.com/tuchaVshortah/financial-kg-agent/internal/server/middleware"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/query"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/reason"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// AskHandler answers a question from the knowledge graph. The status on
// the returned answer tells the caller whether text was generated or the
// question was refused for missing or conflicting evidence.
func AskHandler(c echo.Context) error {
	type askRequest struct {
		Question    string  `json:"question" validate:"required"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
	}

	type askErrorResponse struct {
		Message  string    `json:"message"`
		Evidence []kg.Fact `json:"evidence,omitempty"`
	}

	data := new(askRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, askErrorResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, askErrorResponse{
			Message: "Invalid request body",
		})
	}
	question := strings.TrimSpace(data.Question)
	if question == "" {
		return c.JSON(http.StatusBadRequest, askErrorResponse{
			Message: "Question must not be empty",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	pipeline := app.Handle.Load()

	logger.Info("[Server] Question received",
		"subject", user.Subject,
		"question", util.TruncateString(question, 120),
	)

	trace := query.NewQueryTrace()
	opts := []reason.AskOption{reason.WithTracer(trace)}
	if data.MaxTokens > 0 {
		opts = append(opts, reason.WithMaxTokens(data.MaxTokens))
	}
	if data.Temperature > 0 {
		opts = append(opts, reason.WithTemperature(data.Temperature))
	}

	ans, err := pipeline.Controller.Ask(ctx, question, opts...)
	if err != nil {
		var genErr *reason.GenerationError
		if errors.As(err, &genErr) {
			logger.Error("[Server] Generation failed", "err", err)
			return c.JSON(http.StatusBadGateway, askErrorResponse{
				Message:  "Failed to generate answer",
				Evidence: genErr.Evidence,
			})
		}
		logger.Error("[Server] Failed to answer question", "err", err)
		return c.JSON(http.StatusInternalServerError, askErrorResponse{
			Message: "Internal server error",
		})
	}

	recordAuditEvent(ctx, app.Recorder, ans, trace)

	return c.JSON(http.StatusOK, ans)
}

// recordAuditEvent attaches the retrieval trace and hands the event to
// the recorder. Recording failures are logged, never surfaced.
func recordAuditEvent(ctx context.Context, recorder audit.Recorder, ans *reason.Answer, trace *query.QueryTrace) {
	event, err := audit.NewEvent(ans)
	if err != nil {
		logger.Error("[Server] Failed to build audit event", "err", err)
		return
	}
	if trace != nil {
		snapshot := trace.Snapshot()
		event.Trace = &snapshot
	}
	audit.RecordOrLog(ctx, recorder, event)
}
