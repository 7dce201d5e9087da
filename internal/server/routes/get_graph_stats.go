package routes

import (
	"net/http"

	"github.com/tuchaVshortah/financial-kg-agent/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetGraphStatsHandler reports entity and relation counts of the live graph.
func GetGraphStatsHandler(c echo.Context) error {
	pipeline := c.(*middleware.AppContext).App.Handle.Load()
	return c.JSON(http.StatusOK, pipeline.Graph.Stats())
}
