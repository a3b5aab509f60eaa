package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestCollabMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewCollabMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.FrameHandled("draw", time.Millisecond, nil)
	m.FrameHandled("draw", time.Millisecond, errors.New("bad"))
	m.FrameDropped("malformed")
	m.Broadcast("draw", 3, 1)
	m.DragCoalesced()
	m.EventPersisted("shape_create", nil)
	m.EventRejected("chat", "queue_full")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), sumFor(t, rm, "whiteboard_connections_active"))
	assert.Equal(t, int64(2), sumFor(t, rm, "whiteboard_frames_total"))
	assert.Equal(t, int64(1), sumFor(t, rm, "whiteboard_frames_dropped_total"))
	assert.Equal(t, int64(3), sumFor(t, rm, "whiteboard_broadcast_recipients_total"))
	assert.Equal(t, int64(1), sumFor(t, rm, "whiteboard_send_failures_total"))
	assert.Equal(t, int64(1), sumFor(t, rm, "whiteboard_drag_updates_coalesced_total"))
	assert.Equal(t, int64(1), sumFor(t, rm, "whiteboard_events_persisted_total"))
	assert.Equal(t, int64(1), sumFor(t, rm, "whiteboard_events_rejected_total"))
}

func TestCollabMetrics_NilAndNoop(t *testing.T) {
	var nilMetrics *CollabMetrics
	assert.NotPanics(t, func() {
		nilMetrics.ConnectionOpened()
		nilMetrics.FrameHandled("x", 0, nil)
		nilMetrics.Broadcast("x", 1, 0)
		nilMetrics.EventPersisted("chat", nil)
	})

	m, err := NewCollabMetrics(noop.NewMeterProvider().Meter("noop"))
	require.NoError(t, err)
	assert.NotPanics(t, func() { m.DragCoalesced() })
}

func TestService_MetricsEndpoint(t *testing.T) {
	svc, err := NewService(context.Background(), config.TelemetryConfig{
		ServiceName:    "whiteboard-test",
		MetricsEnabled: true,
	}, "test")
	require.NoError(t, err)
	defer func() { _ = svc.Shutdown(context.Background()) }()

	m, err := NewCollabMetrics(svc.Meter())
	require.NoError(t, err)
	m.FrameDropped("malformed")

	srv := httptest.NewServer(svc.MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "whiteboard_frames_dropped_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestService_Disabled(t *testing.T) {
	svc, err := NewService(context.Background(), config.TelemetryConfig{ServiceName: "off"}, "test")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	svc.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotNil(t, svc.Meter())
	assert.NotNil(t, svc.Tracer("x"))
	assert.NoError(t, svc.Shutdown(context.Background()))
}

func TestOTLPHost(t *testing.T) {
	assert.Equal(t, "collector:4317", otlpHost("http://collector:4317"))
	assert.Equal(t, "collector:4317", otlpHost("https://collector:4317"))
	assert.Equal(t, "collector:4317", otlpHost("collector:4317"))
}
