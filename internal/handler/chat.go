package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"finapp-server/internal/chat"
	"finapp-server/internal/middleware"
	"finapp-server/internal/repository"
)

// chatTimeout bounds one full assistant turn, tool rounds included.
const chatTimeout = 60 * time.Second

// ChatHandler fronts the conversational assistant.
type ChatHandler struct {
	Users *repository.UserRepo
	Chat  *chat.Service
}

func NewChatHandler(users *repository.UserRepo, chatSvc *chat.Service) *ChatHandler {
	return &ChatHandler{Users: users, Chat: chatSvc}
}

type chatReq struct {
	Message string `json:"message"`
}

type chatResp struct {
	Reply string `json:"reply"`
}

type chatMessageView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn runs one assistant turn for the caller. Blank model output, or a
// model failure mid tool loop, surfaces as a plain 500; the client
// retries with the same history.
func (h *ChatHandler) Turn(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req chatReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), chatTimeout)
	defer cancel()

	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	reply, err := h.Chat.Turn(ctx, user, req.Message)
	if err != nil {
		c.Logger().Errorf("chat turn failed for user %d: %v", uid, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assistant unavailable"})
	}
	return c.JSON(http.StatusOK, chatResp{Reply: reply})
}

// History returns the caller's buffered conversation, oldest first.
func (h *ChatHandler) History(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	msgs := h.Chat.HistoryFor(uid)
	out := make([]chatMessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessageView{Role: m.Role, Content: m.Content})
	}
	return c.JSON(http.StatusOK, out)
}

// Reset drops the caller's conversation buffer.
func (h *ChatHandler) Reset(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	h.Chat.Reset(uid)
	return c.NoContent(http.StatusNoContent)
}
