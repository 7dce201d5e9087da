package routes

import (
	"net/http"

	"github.com/tuchaVshortah/financial-kg-agent/internal/server/middleware"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/query"

	"github.com/labstack/echo/v4"
)

// GetTemplatesHandler lists the registered query templates.
func GetTemplatesHandler(c echo.Context) error {
	type templatesResponse struct {
		Templates   []query.Template `json:"templates"`
		Multivalued []string         `json:"multivalued,omitempty"`
	}

	registry := c.(*middleware.AppContext).App.Handle.Load().Registry

	return c.JSON(http.StatusOK, templatesResponse{
		Templates:   registry.Templates(),
		Multivalued: registry.Multivalued(),
	})
}
