package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"finapp-server/internal/sse"
)

// NotifyHandler is the service-to-service push endpoint, guarded by an
// API key. Trusted backends use it to fan an event out to a user's live
// streams without going through the user-facing surface.
type NotifyHandler struct {
	Notifier *sse.Dispatcher
	Registry *sse.Registry
}

func NewNotifyHandler(notifier *sse.Dispatcher, registry *sse.Registry) *NotifyHandler {
	return &NotifyHandler{Notifier: notifier, Registry: registry}
}

type notifyReq struct {
	UserID uint64 `json:"user_id"`
	Event  string `json:"event"`
	Data   any    `json:"data"`
}

// Push enqueues the event for delivery. Delivery is best effort: the
// response reports how many streams the user had at enqueue time, not
// how many received the event.
func (h *NotifyHandler) Push(c echo.Context) error {
	var req notifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UserID == 0 || req.Event == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and event required"})
	}

	h.Notifier.Notify(req.UserID, req.Event, req.Data)
	return c.JSON(http.StatusAccepted, echo.Map{"listeners": h.Registry.Count(req.UserID)})
}
