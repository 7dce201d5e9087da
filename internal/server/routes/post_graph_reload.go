package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/tuchaVshortah/financial-kg-agent/internal/bootstrap"
	"github.com/tuchaVshortah/financial-kg-agent/internal/server/middleware"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/leaselock"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ReloadGraphHandler rebuilds the pipeline from the configured source and
// swaps it in atomically; in-flight questions keep the pipeline they
// started with. A Postgres-backed graph is rebuilt under the graph lease
// so the read never overlaps a writer.
func ReloadGraphHandler(c echo.Context) error {
	type reloadResponse struct {
		Message string         `json:"message"`
		Source  string         `json:"source,omitempty"`
		Stats   *kg.GraphStats `json:"stats,omitempty"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	source := util.GetEnvString("GRAPH_SOURCE", "seed")

	rebuild := func(ctx context.Context) error {
		pipeline, err := bootstrap.Build(ctx, bootstrap.BuildParams{
			Client: app.Client,
			S3:     app.S3,
			DB:     app.DBConn,
		})
		if err != nil {
			return err
		}
		app.Handle.Store(pipeline)
		return nil
	}

	var err error
	if source == "postgres" {
		if app.DBConn == nil {
			return c.JSON(http.StatusInternalServerError, reloadResponse{Message: "Database is not configured"})
		}
		err = leaselock.New(app.DBConn).WithLease(ctx, leaselock.GraphKey, leaselock.Options{}, rebuild)
		if errors.Is(err, leaselock.ErrBusy) {
			return c.JSON(http.StatusConflict, reloadResponse{Message: "Graph reload already in progress"})
		}
	} else {
		err = rebuild(ctx)
	}
	if err != nil {
		logger.Error("[Server] Failed to reload graph", "err", err)
		return c.JSON(http.StatusInternalServerError, reloadResponse{Message: "Failed to reload graph"})
	}

	stats := app.Handle.Load().Graph.Stats()
	logger.Info("[Server] Graph reloaded",
		"subject", user.Subject,
		"source", source,
		"entities", stats.Entities,
		"relations", stats.Relations,
	)

	return c.JSON(http.StatusOK, reloadResponse{
		Message: "Graph reloaded",
		Source:  source,
		Stats:   &stats,
	})
}
