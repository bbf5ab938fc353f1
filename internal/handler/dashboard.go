package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"finapp-server/internal/middleware"
	"finapp-server/internal/repository"
)

// DashboardHandler serves the aggregated month view the client renders
// as charts: per-category totals plus overall income and expense.
type DashboardHandler struct {
	Entries *repository.EntryRepo
	Loc     *time.Location
}

func NewDashboardHandler(entries *repository.EntryRepo, loc *time.Location) *DashboardHandler {
	return &DashboardHandler{Entries: entries, Loc: loc}
}

type categoryTotalView struct {
	CategoryID uint64 `json:"category_id"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Total      string `json:"total"`
}

type dashboardView struct {
	Start      string              `json:"start"`
	End        string              `json:"end"`
	Income     string              `json:"income"`
	Expense    string              `json:"expense"`
	Categories []categoryTotalView `json:"categories"`
}

// Summary aggregates the caller's entries over ?start=&end=, defaulting
// to the current month. All amounts stay decimal strings end to end.
func (h *DashboardHandler) Summary(c echo.Context) error {
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

	perCategory, income, expense, err := h.Entries.Totals(ctx, uid, start, end)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "aggregation failed"})
	}

	cats := make([]categoryTotalView, 0, len(perCategory))
	for _, t := range perCategory {
		cats = append(cats, categoryTotalView{
			CategoryID: t.CategoryID, Label: t.Label, Type: string(t.Type), Total: t.Total,
		})
	}
	return c.JSON(http.StatusOK, dashboardView{
		Start: start.Format(dateLayout), End: end.Format(dateLayout),
		Income: income, Expense: expense, Categories: cats,
	})
}
