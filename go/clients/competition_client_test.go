package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designjam/countdown/go/internal/models"
)

func TestGetConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/config", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"submission_start":"2026-03-01T12:00:00Z","submission_end":null,"voting_start":null,"voting_end":"2026-03-14T12:00:00+00:00"}`))
	}))
	defer server.Close()

	client := NewCompetitionClient(server.URL + "/")
	config, err := client.GetConfig(context.Background())
	require.NoError(t, err)

	require.NotNil(t, config.SubmissionStart)
	assert.Equal(t, "2026-03-01T12:00:00Z", *config.SubmissionStart)
	assert.Nil(t, config.SubmissionEnd)
	assert.Nil(t, config.VotingStart)
	require.NotNil(t, config.VotingEnd)
}

func TestGetConfig_ErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","description":"Not found"}`))
	}))
	defer server.Close()

	_, err := NewCompetitionClient(server.URL).GetConfig(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Message)
}

func TestUpdateConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body models.CompetitionConfig
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewCompetitionClient(server.URL)
	client.SetToken("secret")

	start := "2026-03-01T12:00:00Z"
	updated, err := client.UpdateConfig(context.Background(), models.CompetitionConfig{SubmissionStart: &start})
	require.NoError(t, err)
	require.NotNil(t, updated.SubmissionStart)
	assert.Equal(t, start, *updated.SubmissionStart)
}
