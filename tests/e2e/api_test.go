package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	serviceURL = "http://localhost:8080"
)

func getJSON(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s%s", serviceURL, path))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServiceHealth(t *testing.T) {
	code, health := getJSON(t, "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", health["status"])
	assert.NotNil(t, health["checks"])
}

func TestServiceStatus(t *testing.T) {
	code, status := getJSON(t, "/api/v1/status")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, status["running"])

	cfg, ok := status["config"].(map[string]interface{})
	require.True(t, ok, "status should embed the effective config")
	assert.NotEmpty(t, cfg["email_server"])
	assert.NotEmpty(t, cfg["folder"])
	assert.NotEmpty(t, cfg["check_interval"])
}

func TestServiceStats(t *testing.T) {
	code, stats := getJSON(t, "/api/v1/stats")

	assert.Equal(t, http.StatusOK, code)
	assert.GreaterOrEqual(t, stats["emails_processed"].(float64), float64(0))
	assert.NotEmpty(t, stats["uptime"])
	assert.NotEmpty(t, stats["service_start_time"])
}

func TestPrinterStatus(t *testing.T) {
	code, printer := getJSON(t, "/api/v1/printer/status")

	assert.Equal(t, http.StatusOK, code)
	_, hasConnected := printer["connected"]
	assert.True(t, hasConnected, "printer status should always report connectivity")
}

func TestPrinterJobs(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/printer/jobs", serviceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var jobs []map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&jobs)
	require.NoError(t, err, "jobs endpoint should return a JSON array")
}

func TestUnknownJobReturnsNotFound(t *testing.T) {
	code, body := getJSON(t, "/api/v1/printer/jobs/999999")

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["error_code"])
}

func TestMetricsExposed(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/metrics", serviceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
