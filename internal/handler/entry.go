package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"finapp-server/internal/middleware"
	"finapp-server/internal/model"
	"finapp-server/internal/queue"
	"finapp-server/internal/repository"
	"finapp-server/internal/sse"
)

const dateLayout = "2006-01-02"

// decimalRe accepts a signed decimal with at most two fraction digits,
// matching the DECIMAL(18,2) column.
var decimalRe = regexp.MustCompile(`^-?\d{1,16}(\.\d{1,2})?$`)

// EntryHandler owns the financial-entry surface. Creating entries over
// REST produces the same side effects as the assistant's registration
// tool: a push to the owner's live streams and an audit event on the
// broker.
type EntryHandler struct {
	Entries    *repository.EntryRepo
	Categories *repository.CategoryRepo
	Notifier   *sse.Dispatcher
	Publisher  *queue.Publisher
	Loc        *time.Location
}

func NewEntryHandler(entries *repository.EntryRepo, categories *repository.CategoryRepo, notifier *sse.Dispatcher, publisher *queue.Publisher, loc *time.Location) *EntryHandler {
	return &EntryHandler{Entries: entries, Categories: categories, Notifier: notifier, Publisher: publisher, Loc: loc}
}

type entryReq struct {
	Value       string   `json:"value"`
	Label       string   `json:"label"`
	Date        string   `json:"date"`
	CategoryIDs []uint64 `json:"category_ids"`
}

type createEntriesReq struct {
	Entries []entryReq `json:"entries"`
}

type entryView struct {
	ID         uint64         `json:"id"`
	Value      string         `json:"value"`
	Label      string         `json:"label"`
	Date       string         `json:"date"`
	Categories []categoryView `json:"categories"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func toEntryView(e model.Entry) entryView {
	cats := make([]categoryView, 0, len(e.Categories))
	for _, c := range e.Categories {
		cats = append(cats, toCategoryView(c))
	}
	return entryView{
		ID: e.ID, Value: e.Value, Label: e.Label, Date: e.Date.Format(dateLayout),
		Categories: cats, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

// Create registers one or more entries in a single transaction.
func (h *EntryHandler) Create(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req createEntriesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Entries) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "entries required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entries := make([]model.Entry, 0, len(req.Entries))
	for _, in := range req.Entries {
		entry, err := h.buildEntry(ctx, uid, in)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		entries = append(entries, entry)
	}

	created, err := h.Entries.CreateBatch(ctx, entries)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}

	h.fanOut(uid, created)

	out := make([]entryView, 0, len(created))
	for _, e := range created {
		out = append(out, toEntryView(e))
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *EntryHandler) buildEntry(ctx context.Context, uid uint64, in entryReq) (model.Entry, error) {
	in.Value = strings.TrimSpace(in.Value)
	if !decimalRe.MatchString(in.Value) {
		return model.Entry{}, errors.New("value must be a decimal amount")
	}
	date, err := time.ParseInLocation(dateLayout, in.Date, h.Loc)
	if err != nil {
		return model.Entry{}, errors.New("date must be YYYY-MM-DD")
	}
	cats, err := h.Categories.GetByIDs(ctx, uid, in.CategoryIDs)
	if err != nil {
		return model.Entry{}, errors.New("category lookup failed")
	}
	if len(cats) != len(in.CategoryIDs) {
		return model.Entry{}, errors.New("unknown category id")
	}
	return model.Entry{
		OwnerID: uid, Value: in.Value, Label: strings.TrimSpace(in.Label),
		Date: date, Categories: cats,
	}, nil
}

// fanOut pushes the created entries to the owner's live streams and
// publishes the audit event. Both are fire-and-forget: a slow broker or
// a full stream buffer never delays the HTTP response.
func (h *EntryHandler) fanOut(uid uint64, created []model.Entry) {
	evs := make([]queue.EntryEvent, 0, len(created))
	for _, e := range created {
		ids := make([]uint64, 0, len(e.Categories))
		for _, cat := range e.Categories {
			ids = append(ids, cat.ID)
		}
		evs = append(evs, queue.EntryEvent{
			EntryID: e.ID, Value: e.Value, Label: e.Label,
			Date: e.Date.Format(dateLayout), Categories: ids,
		})
	}

	h.Notifier.Notify(uid, sse.EventEntriesCreated, evs)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		event := queue.EntriesCreatedEvent{
			UserID: uid, Source: "api", Entries: evs,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := h.Publisher.PublishEntriesCreated(ctx, event); err != nil {
			log.Printf("[entries] publish failed for user %d: %v", uid, err)
		}
	}()
}

// Search lists the caller's entries in [start, end], defaulting to the
// current month.
func (h *EntryHandler) Search(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	start, end, err := dateWindow(c, h.Loc)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	entries, err := h.Entries.Search(ctx, uid, start, end)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryView(e))
	}
	return c.JSON(http.StatusOK, out)
}

// dateWindow parses ?start=&end=, falling back to the first and last
// day of the current month in the configured timezone.
func dateWindow(c echo.Context, loc *time.Location) (time.Time, time.Time, error) {
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, -1)

	if s := c.QueryParam("start"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return start, end, errors.New("start must be YYYY-MM-DD")
		}
		start = t
	}
	if s := c.QueryParam("end"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return start, end, errors.New("end must be YYYY-MM-DD")
		}
		end = t
	}
	if end.Before(start) {
		return start, end, errors.New("end before start")
	}
	return start, end, nil
}

func (h *EntryHandler) Get(c echo.Context) error {
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

	entry, err := h.Entries.GetByID(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "entry not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, toEntryView(entry))
}

type updateEntryReq struct {
	Value       *string  `json:"value"`
	Label       *string  `json:"label"`
	Date        *string  `json:"date"`
	CategoryIDs []uint64 `json:"category_ids"`
}

// Update patches an entry. Sending category_ids replaces the whole set.
func (h *EntryHandler) Update(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	var req updateEntryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Value != nil && !decimalRe.MatchString(strings.TrimSpace(*req.Value)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "value must be a decimal amount"})
	}
	var date *time.Time
	if req.Date != nil {
		t, err := time.ParseInLocation(dateLayout, *req.Date, h.Loc)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		date = &t
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	var categories []model.Category
	if req.CategoryIDs != nil {
		found, err := h.Categories.GetByIDs(ctx, uid, req.CategoryIDs)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "category lookup failed"})
		}
		if len(found) != len(req.CategoryIDs) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category id"})
		}
		// empty but non-nil clears the set
		categories = make([]model.Category, 0, len(found))
		categories = append(categories, found...)
	}

	entry, err := h.Entries.Update(ctx, id, uid, req.Value, req.Label, date, categories)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "entry not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, toEntryView(entry))
}

func (h *EntryHandler) Delete(c echo.Context) error {
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

	if err := h.Entries.Delete(ctx, id, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
