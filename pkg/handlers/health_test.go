package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/config"
)

func TestHealthEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(&config.Config{Version: "test", Env: "local"}, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPingEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(&config.Config{Version: "1.2.3", Env: "local"}, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	var ping PingResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ping))
	assert.Equal(t, "ok", ping.Status)
	assert.Equal(t, "1.2.3", ping.Version)
	assert.Equal(t, "queryhaven-engine", ping.Service)
}
