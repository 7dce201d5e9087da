package routes

import (
	"net/http"

	"github.com/tuchaVshortah/financial-kg-agent/internal/server/middleware"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// clientFactTemplates are run in order to assemble a client's evidence.
var clientFactTemplates = []string{"client_profile", "client_transactions"}

// GetClientFactsHandler returns every fact the profile and transaction
// templates reach from one client entity.
func GetClientFactsHandler(c echo.Context) error {
	type clientFactsParams struct {
		ClientID string `param:"id" validate:"required"`
	}

	type clientFactsResponse struct {
		Message string    `json:"message,omitempty"`
		ID      string    `json:"id,omitempty"`
		Kind    string    `json:"kind,omitempty"`
		Facts   []kg.Fact `json:"facts"`
	}

	params := new(clientFactsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, clientFactsResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, clientFactsResponse{Message: "Invalid request params"})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	pipeline := c.(*middleware.AppContext).App.Handle.Load()

	entity, ok := pipeline.Graph.Lookup(params.ClientID)
	if !ok || entity.Kind != "client" {
		return c.JSON(http.StatusNotFound, clientFactsResponse{Message: "Unknown client"})
	}

	type factKey struct {
		subject   string
		predicate string
		value     kg.Value
	}
	seen := make(map[factKey]struct{})
	facts := make([]kg.Fact, 0)
	for _, name := range clientFactTemplates {
		if _, ok := pipeline.Registry.Template(name); !ok {
			continue
		}
		matched, err := pipeline.Engine.Run(ctx, name, map[string]string{"client": params.ClientID})
		if err != nil {
			logger.Error("[Server] Failed to collect client facts", "err", err)
			return c.JSON(http.StatusInternalServerError, clientFactsResponse{Message: "Internal server error"})
		}
		for _, f := range matched {
			key := factKey{f.Subject, f.Predicate, f.Value}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			facts = append(facts, f)
		}
	}

	return c.JSON(http.StatusOK, clientFactsResponse{
		ID:    entity.ID,
		Kind:  entity.Kind,
		Facts: facts,
	})
}
