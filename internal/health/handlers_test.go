package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/health"
)

func ok(context.Context) error { return nil }

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	code, status := ready(t, health.Handler{Probes: map[string]health.Probe{"db": ok, "redis": ok, "provider": ok}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"db": "ok", "redis": "ok", "provider": "ok"}, status)
}

func TestReadyFailure(t *testing.T) {
	h := health.Handler{Probes: map[string]health.Probe{
		"db":       ok,
		"provider": func(context.Context) error { return errors.New("provider down") },
	}}
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "ok", status["db"])
	require.Equal(t, "provider down", status["provider"])
}

func TestReadyAppliesTimeout(t *testing.T) {
	h := health.Handler{
		Timeout: 10 * time.Millisecond,
		Probes: map[string]health.Probe{"redis": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), status["redis"])
}

func TestReadinessAfterShutdown(t *testing.T) {
	h := health.Handler{Probes: map[string]health.Probe{"db": ok}}

	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", status["status"])
}
