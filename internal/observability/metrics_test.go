package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsRecordTransition(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("accept", "IT")
	m.RecordTransition("accept", "IT")
	m.RecordTransition("solved", "IT")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("accept", "IT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("solved", "IT")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "NOT_FOUND")
		m.RecordTransition("accept", "IT")
		m.SetConnections(3)
	})
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", m.Handler())
	m.SetConnections(4)

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `helpdesk_http_requests_total{method="GET",route="/ping",status="200"} 1`))
	assert.True(t, strings.Contains(text, "helpdesk_realtime_connections 4"))
}
