// Package configsource supplies the competition config to the clock: it
// fetches from the backend API or the database and caches the result for a
// freshness window.
package configsource

import (
	"context"

	"github.com/designjam/countdown/go/clients"
	"github.com/designjam/countdown/go/internal/models"
)

// Source loads the current competition config from its origin.
type Source interface {
	Fetch(ctx context.Context) (models.CompetitionConfig, error)
}

// HTTPSource reads the config from the backend's GET /api/config.
type HTTPSource struct {
	client *clients.CompetitionClient
}

func NewHTTPSource(client *clients.CompetitionClient) *HTTPSource {
	return &HTTPSource{client: client}
}

func (s *HTTPSource) Fetch(ctx context.Context) (models.CompetitionConfig, error) {
	return s.client.GetConfig(ctx)
}
