package payment

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes payment endpoints nested under an order.
type Handler struct {
	Svc *Service
}

type paymentDTO struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	Amount    string  `json:"amount"`
	Method    string  `json:"method"`
	Status    Status  `json:"status"`
	Reference *string `json:"reference,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

func toDTO(p Payment) paymentDTO {
	return paymentDTO{
		ID:        p.ID.String(),
		OrderID:   p.OrderID.String(),
		Amount:    p.Amount.StringFixed(2),
		Method:    p.Method,
		Status:    p.Status,
		Reference: p.Reference,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// Record takes a payment for the order in the path.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	orderID, err := common.ParseUUIDParam("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var in RecordInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	p, err := h.Svc.Record(r.Context(), orderID, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toDTO(p)})
}

// List returns the order's payments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orderID, err := common.ParseUUIDParam("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	payments, err := h.Svc.List(r.Context(), orderID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	out := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, toDTO(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
