package report

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes report endpoints.
type Handler struct {
	Svc *Service
}

func (h *Handler) date(r *http.Request, name string, required bool) (time.Time, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return time.Time{}, false, common.Validation("invalid input", map[string]string{name: "is required"})
		}
		return time.Time{}, false, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, h.Svc.loc())
	if err != nil {
		return time.Time{}, false, common.Validation("invalid input", map[string]string{name: "must be YYYY-MM-DD"})
	}
	return d, true, nil
}

// Daily handles GET /reports/daily?date=YYYY-MM-DD. Date defaults to today.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	d, ok, err := h.date(r, "date", false)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if !ok {
		d = h.Svc.now()
	}
	out, err := h.Svc.Daily(r.Context(), d)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Weekly handles GET /reports/weekly?weekStart=YYYY-MM-DD.
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	d, ok, err := h.date(r, "weekStart", false)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if !ok {
		d = h.Svc.now()
	}
	out, err := h.Svc.Weekly(r.Context(), d)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Monthly handles GET /reports/monthly?year=&month=.
func (h *Handler) Monthly(w http.ResponseWriter, r *http.Request) {
	now := h.Svc.now().In(h.Svc.loc())
	q := r.URL.Query()
	year, month := now.Year(), int(now.Month())
	details := map[string]string{}
	if raw := q.Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			details["year"] = "must be a number"
		}
		year = v
	}
	if raw := q.Get("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			details["month"] = "must be a number"
		}
		month = v
	}
	if len(details) > 0 {
		common.WriteError(w, r, common.Validation("invalid input", details))
		return
	}
	out, err := h.Svc.Monthly(r.Context(), year, month)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Purchases handles GET /reports/purchases?period=day|week|month&from=&to=.
func (h *Handler) Purchases(w http.ResponseWriter, r *http.Request) {
	from, _, err := h.date(r, "from", true)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	to, _, err := h.date(r, "to", true)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = PeriodDay
	}
	out, err := h.Svc.Purchases(r.Context(), period, from, to)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
