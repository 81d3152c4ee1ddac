package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return true })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return false })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleWithCORS(t *testing.T) {
	var called bool
	h := HandleWithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("preflight", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		require.False(t, called)
	})

	t.Run("request", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusTeapot, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		require.True(t, called)
	})
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Equal(t, "/regions", MetricsPathFormatter(http.StatusOK, "/regions"))
	require.Equal(t, "/regions", MetricsPathFormatter(http.StatusInternalServerError, "/regions"))
	require.Empty(t, MetricsPathFormatter(http.StatusMovedPermanently, "/regions"))
	require.Empty(t, MetricsPathFormatter(http.StatusBadRequest, "/regions"))
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/whatever"))
	require.Empty(t, MetricsPathFormatter(http.StatusMethodNotAllowed, "/regions"))
}

func TestListenAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ListenAndServe(ctx,
			&http.Server{Addr: "127.0.0.1:0", Handler: http.HandlerFunc(HandleHealthCheck)},
			&http.Server{Addr: "127.0.0.1:0", Handler: http.HandlerFunc(HandleHealthCheck)},
		)
		close(done)
	}()

	time.Sleep(time.Millisecond * 20)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("servers did not stop")
	}
}
