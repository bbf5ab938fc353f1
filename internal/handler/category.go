package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"finapp-server/internal/chat"
	"finapp-server/internal/middleware"
	"finapp-server/internal/model"
	"finapp-server/internal/repository"
)

// CategoryHandler owns the category CRUD surface. Every mutation also
// flags the owner's chat session so the assistant reloads its category
// list before the next turn.
type CategoryHandler struct {
	Categories *repository.CategoryRepo
	Chat       *chat.Service
}

func NewCategoryHandler(categories *repository.CategoryRepo, chatSvc *chat.Service) *CategoryHandler {
	return &CategoryHandler{Categories: categories, Chat: chatSvc}
}

type categoryView struct {
	ID        uint64    `json:"id"`
	Label     string    `json:"label"`
	Color     string    `json:"color"`
	Type      string    `json:"type"`
	Goal      *string   `json:"goal,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCategoryView(c model.Category) categoryView {
	return categoryView{
		ID: c.ID, Label: c.Label, Color: c.Color, Type: string(c.Type),
		Goal: c.Goal, Active: c.Active, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

type createCategoryReq struct {
	Label string  `json:"label"`
	Color string  `json:"color"`
	Type  string  `json:"type"`
	Goal  *string `json:"goal"`
}

type updateCategoryReq struct {
	Label  *string `json:"label"`
	Color  *string `json:"color"`
	Type   *string `json:"type"`
	Goal   *string `json:"goal"`
	Active *bool   `json:"active"`
}

func parseCategoryType(s string) (model.CategoryType, bool) {
	switch model.CategoryType(strings.ToUpper(strings.TrimSpace(s))) {
	case model.CategoryIn:
		return model.CategoryIn, true
	case model.CategoryOut:
		return model.CategoryOut, true
	}
	return "", false
}

func (h *CategoryHandler) Create(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req createCategoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "label required"})
	}
	typ, ok := parseCategoryType(req.Type)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be IN or OUT"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	created, err := h.Categories.Create(ctx, model.Category{
		OwnerID: uid, Label: req.Label, Color: req.Color, Type: typ, Goal: req.Goal, Active: true,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}

	h.Chat.MarkCategoriesDirty(uid)
	return c.JSON(http.StatusCreated, toCategoryView(created))
}

// List returns the caller's active categories; ?all=true includes the
// soft-deleted ones.
func (h *CategoryHandler) List(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	activeOnly := c.QueryParam("all") != "true"

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cats, err := h.Categories.ListByOwner(ctx, uid, activeOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	out := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		out = append(out, toCategoryView(cat))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CategoryHandler) Get(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cat, err := h.Categories.GetByID(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, toCategoryView(cat))
}

func (h *CategoryHandler) Update(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	var req updateCategoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	var typ *model.CategoryType
	if req.Type != nil {
		t, ok := parseCategoryType(*req.Type)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be IN or OUT"})
		}
		typ = &t
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cat, err := h.Categories.Update(ctx, id, uid, req.Label, req.Color, typ, req.Goal, req.Active)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	h.Chat.MarkCategoriesDirty(uid)
	return c.JSON(http.StatusOK, toCategoryView(cat))
}

// Delete soft-deletes: the row survives so old entries keep their tags,
// but the category disappears from pickers and the assistant's list.
func (h *CategoryHandler) Delete(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Categories.Deactivate(ctx, id, uid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}

	h.Chat.MarkCategoriesDirty(uid)
	return c.NoContent(http.StatusNoContent)
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
