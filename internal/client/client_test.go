package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientURL(t *testing.T) {
	t.Setenv("TRUSTLEDGER_URL", "")
	assert.Equal(t, DefaultServerURL, NewClient("").URL())

	t.Setenv("TRUSTLEDGER_URL", "http://ledger:9000/")
	assert.Equal(t, "http://ledger:9000", NewClient("").URL(), "env value without trailing slash")
	assert.Equal(t, "http://flag:1", NewClient("http://flag:1").URL(), "explicit value wins")
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/alice/burn", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]any
		json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"user_id": "alice", "trust_score": 100 - in["amount"].(float64)})
	}))
	defer srv.Close()

	var out struct {
		UserID     string  `json:"user_id"`
		TrustScore float64 `json:"trust_score"`
	}
	err := NewClient(srv.URL).Post("/api/users/alice/burn", map[string]any{"amount": 15}, &out)
	require.NoError(t, err)
	assert.Equal(t, "alice", out.UserID)
	assert.Equal(t, 85.0, out.TrustScore)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"daily burn limit exceeded","code":"GOVERNANCE_VIOLATION"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Put("/api/governance/maxDailyBurn", map[string]any{"value": 10}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "GOVERNANCE_VIOLATION", apiErr.Code)
	assert.Equal(t, "daily burn limit exceeded", apiErr.Message)
}

func TestAPIErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := NewClient(srv.URL).Get("/nope", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Empty(t, apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
		}
	}))
	assert.True(t, NewClient(srv.URL).Healthy())
	srv.Close()

	assert.False(t, NewClient(srv.URL).Healthy(), "after close")
}
