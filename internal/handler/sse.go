package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"finapp-server/internal/middleware"
	"finapp-server/internal/sse"
)

// heartbeatInterval keeps intermediaries from reaping quiet streams.
const heartbeatInterval = 30 * time.Second

// SSEHandler serves the live event stream. Authentication happens in
// the one-time-code middleware before this handler runs; by the time
// Stream executes the code has already been consumed.
type SSEHandler struct {
	Registry *sse.Registry
}

func NewSSEHandler(registry *sse.Registry) *SSEHandler {
	return &SSEHandler{Registry: registry}
}

// Stream registers a connection for the caller and writes events until
// the client disconnects, the connection is closed during fan-out, or
// the idle timeout fires. Each stream lives at most ten minutes; the
// client is expected to reconnect with a fresh code.
func (h *SSEHandler) Stream(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	conn := sse.NewConnection(0)
	h.Registry.Register(uid, conn)
	defer func() {
		h.Registry.Unregister(uid, conn)
		conn.Close()
	}()

	// opening comment confirms the stream to eager clients
	if _, err := fmt.Fprint(res, ": connected\n\n"); err != nil {
		return nil
	}
	res.Flush()

	idle := time.NewTimer(sse.IdleTimeout)
	defer idle.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return nil
		case <-idle.C:
			c.Logger().Infof("sse: closing idle stream for user %d", uid)
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case ev := <-conn.Events():
			if err := writeEvent(res, ev); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, ev sse.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Name, payload)
	return err
}
