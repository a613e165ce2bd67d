package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/designjam/countdown/go/internal/models"
)

const configEndpoint = "/api/config"

// CompetitionClient talks to the competition backend.
type CompetitionClient struct {
	*BaseClient
}

func NewCompetitionClient(baseURL string) *CompetitionClient {
	return &CompetitionClient{
		BaseClient: NewBaseClient(baseURL),
	}
}

// SetToken authenticates admin calls with a bearer token.
func (c *CompetitionClient) SetToken(token string) {
	c.SetHeader("Authorization", "Bearer "+token)
}

// GetConfig fetches the competition timings.
func (c *CompetitionClient) GetConfig(ctx context.Context) (models.CompetitionConfig, error) {
	body, err := c.Get(ctx, configEndpoint)
	if err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("failed to fetch config: %w", err)
	}

	var config models.CompetitionConfig
	if err := json.Unmarshal(body, &config); err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

// UpdateConfig replaces the competition timings. Requires an admin token.
func (c *CompetitionClient) UpdateConfig(ctx context.Context, config models.CompetitionConfig) (models.CompetitionConfig, error) {
	payload, err := json.Marshal(config)
	if err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("failed to marshal config: %w", err)
	}

	body, err := c.Put(ctx, configEndpoint, bytes.NewReader(payload))
	if err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("failed to update config: %w", err)
	}

	var updated models.CompetitionConfig
	if err := json.Unmarshal(body, &updated); err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return updated, nil
}
