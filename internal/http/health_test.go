package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadyHandler(t *testing.T) {
	healthy := pingFunc(func(ctx context.Context) error { return nil })
	broken := pingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	t.Run("all checks pass", func(t *testing.T) {
		w := httptest.NewRecorder()
		ReadyHandler(time.Second, map[string]Checker{"store": healthy}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"status":"ok","checks":{"store":"ok"}}`, w.Body.String())
	})

	t.Run("failing check", func(t *testing.T) {
		w := httptest.NewRecorder()
		ReadyHandler(time.Second, map[string]Checker{"store": healthy, "redis": broken}).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp healthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "unavailable", resp.Status)
		require.Equal(t, "connection refused", resp.Checks["redis"])
		require.Equal(t, "ok", resp.Checks["store"])
	})
}
