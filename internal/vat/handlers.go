package vat

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes tax period and VAT return endpoints.
type Handler struct {
	Svc *Service
}

type periodDTO struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Year      int    `json:"year"`
	Quarter   int    `json:"quarter"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type returnDTO struct {
	ID            string     `json:"id"`
	PeriodID      string     `json:"taxPeriodId"`
	OutputVAT     string     `json:"outputVat"`
	InputVAT      string     `json:"inputVat"`
	VATDue        string     `json:"vatDue"`
	Payable       bool       `json:"payable"`
	NetSales      string     `json:"netSales"`
	NetPurchases  string     `json:"netPurchases"`
	OrderCount    int        `json:"orderCount"`
	PurchaseCount int        `json:"purchaseCount"`
	GeneratedAt   time.Time  `json:"generatedAt"`
	SubmittedAt   *time.Time `json:"submittedAt"`
}

func toPeriodDTO(p TaxPeriod) periodDTO {
	return periodDTO{
		ID:        p.ID.String(),
		Label:     p.Label(),
		Year:      p.Year,
		Quarter:   p.Quarter,
		StartDate: p.StartDate.Format(time.DateOnly),
		EndDate:   p.EndDate.Format(time.DateOnly),
	}
}

func toReturnDTO(r Return) returnDTO {
	return returnDTO{
		ID:            r.ID.String(),
		PeriodID:      r.PeriodID.String(),
		OutputVAT:     r.OutputVAT.StringFixed(2),
		InputVAT:      r.InputVAT.StringFixed(2),
		VATDue:        r.VATDue.StringFixed(2),
		Payable:       r.Payable(),
		NetSales:      r.NetSales.StringFixed(2),
		NetPurchases:  r.NetPurchases.StringFixed(2),
		OrderCount:    r.OrderCount,
		PurchaseCount: r.PurchaseCount,
		GeneratedAt:   r.GeneratedAt,
		SubmittedAt:   r.SubmittedAt,
	}
}

type openPeriodRequest struct {
	Year    int `json:"year" validate:"required"`
	Quarter int `json:"quarter" validate:"required"`
}

// OpenPeriod handles POST /tax-periods.
func (h *Handler) OpenPeriod(w http.ResponseWriter, r *http.Request) {
	var req openPeriodRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := common.Validate(req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	p, err := h.Svc.OpenPeriod(r.Context(), req.Year, req.Quarter)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPeriodDTO(p)})
}

// ListPeriods handles GET /tax-periods.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListPeriods(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	out := make([]periodDTO, 0, len(list))
	for _, p := range list {
		out = append(out, toPeriodDTO(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Generate handles POST /tax-periods/{id}/vat-return.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	ret, err := h.Svc.Generate(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toReturnDTO(ret)})
}

// Get handles GET /vat-returns/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	ret, err := h.Svc.GetReturn(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toReturnDTO(ret)})
}

// Submit handles POST /vat-returns/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	ret, err := h.Svc.Submit(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toReturnDTO(ret)})
}

// Export handles GET /vat-returns/{id}/export?format=csv.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	out, err := h.Svc.Export(r.Context(), id, r.URL.Query().Get("format"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}
