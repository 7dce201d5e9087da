package server

import (
	"github.com/tuchaVshortah/financial-kg-agent/internal/server/middleware"
	"github.com/tuchaVshortah/financial-kg-agent/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Question routes
	apiRoutes.POST("/ask", routes.AskHandler, middleware.RequirePermission("questions.ask"))

	// Template routes
	apiRoutes.GET("/templates", routes.GetTemplatesHandler)

	// Client routes
	apiRoutes.GET("/clients/:id/facts", routes.GetClientFactsHandler)

	// Graph routes
	apiRoutes.GET("/graph/stats", routes.GetGraphStatsHandler)
	apiRoutes.POST("/graph/reload", routes.ReloadGraphHandler, middleware.RequirePermission("graph.reload"))
}
