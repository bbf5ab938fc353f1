package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"finapp-server/internal/sse"
)

// TestStream_WritesEventsUntilDisconnect drives the stream handler with
// a cancellable request: register happens inside the handler, an event
// is emitted, then the client goes away.
func TestStream_WritesEventsUntilDisconnect(t *testing.T) {
	t.Parallel()
	registry := sse.NewRegistry()
	h := NewSSEHandler(registry)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/sse?code=x", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	e := echo.New()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(3))

	done := make(chan error, 1)
	go func() { done <- h.Stream(c) }()

	// wait for the connection to land in the registry, then push
	require.Eventually(t, func() bool { return registry.Count(3) == 1 }, 2*time.Second, 10*time.Millisecond)
	registry.Emit(3, sse.Event{Name: "entries_created", Data: []int{1}})

	// give the handler time to drain the event before disconnecting
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	require.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	require.Contains(t, body, ": connected")
	require.True(t, strings.Contains(body, "event: entries_created"))
	require.Contains(t, body, "data: [1]")
	require.Zero(t, registry.Count(3))
}

func TestStream_NoIdentityForbidden(t *testing.T) {
	t.Parallel()
	h := NewSSEHandler(sse.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/v1/sse", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Stream(c))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
