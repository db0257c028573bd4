package order

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes the order ledger over HTTP.
type Handler struct {
	Svc *Service
}

type itemDTO struct {
	ID           string  `json:"id"`
	MenuItemID   string  `json:"menuItemId"`
	Quantity     int     `json:"quantity"`
	Price        string  `json:"price"`
	Instructions *string `json:"instructions,omitempty"`
}

type orderDTO struct {
	ID            string    `json:"id"`
	TableID       *string   `json:"tableId"`
	StaffID       *string   `json:"staffId"`
	OrderType     string    `json:"orderType"`
	Notes         *string   `json:"notes"`
	Status        Status    `json:"status"`
	Subtotal      string    `json:"subtotal"`
	VATRate       string    `json:"vatRate"`
	VATAmount     string    `json:"vatAmount"`
	ServiceCharge string    `json:"serviceCharge"`
	Discount      string    `json:"discount"`
	Total         string    `json:"total"`
	Version       int64     `json:"version"`
	CreatedAt     string    `json:"createdAt"`
	UpdatedAt     string    `json:"updatedAt"`
	Items         []itemDTO `json:"items,omitempty"`
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toDTO(o Order) orderDTO {
	dto := orderDTO{
		ID:            o.ID.String(),
		TableID:       uuidPtrString(o.TableID),
		StaffID:       uuidPtrString(o.StaffID),
		OrderType:     o.OrderType,
		Notes:         o.Notes,
		Status:        o.Status,
		Subtotal:      o.Subtotal.StringFixed(2),
		VATRate:       o.VATRate.String(),
		VATAmount:     o.VATAmount.StringFixed(2),
		ServiceCharge: o.ServiceCharge.StringFixed(2),
		Discount:      o.Discount.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		Version:       o.Version,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}
	for _, it := range o.Items {
		dto.Items = append(dto.Items, itemDTO{
			ID:           it.ID.String(),
			MenuItemID:   it.MenuItemID.String(),
			Quantity:     it.Quantity,
			Price:        it.Price.StringFixed(2),
			Instructions: it.Instructions,
		})
	}
	return dto
}

func writeOrder(w http.ResponseWriter, status int, o Order) {
	common.ETagVersion(w, o.Version)
	common.JSON(w, status, map[string]any{"data": toDTO(o)})
}

// Create handles POST /orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.CreateOrder(r.Context(), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	writeOrder(w, http.StatusCreated, o)
}

// Get handles GET /orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// List handles GET /orders?from=&to=&status=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg := common.PageFrom(r, 20, 100)
	f := Filter{Limit: pg.PerPage, Offset: pg.Offset()}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.WriteError(w, r, common.Validation("invalid "+p.name, map[string]string{p.name: "must be RFC3339"}))
			return
		}
		*p.dst = &t
	}
	if raw := q.Get("status"); raw != "" {
		st := Status(raw)
		f.Status = &st
	}
	orders, total, err := h.Svc.List(r.Context(), f)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toDTO(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       out,
		"pagination": pg.WithTotal(total),
	})
}

// Update handles PATCH /orders/{orderId}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var patch OrderPatch
	if err := common.DecodeJSON(r, &patch); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if patch.ExpectedVersion, err = common.IfMatchVersion(r); err != nil {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.UpdateOrder(r.Context(), id, patch)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// Delete handles DELETE /orders/{orderId}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	version, err := common.IfMatchVersion(r)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := h.Svc.DeleteOrder(r.Context(), id, version); err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateItem handles PATCH /orders/{orderId}/items/{itemId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	var patch ItemPatch
	if err := common.DecodeJSON(r, &patch); err != nil {
		common.WriteError(w, r, err)
		return
	}
	var err error
	if patch.ExpectedVersion, err = common.IfMatchVersion(r); err != nil {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.UpdateItem(r.Context(), orderID, itemID, patch)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// DeleteItem handles DELETE /orders/{orderId}/items/{itemId}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, ok := itemParams(w, r)
	if !ok {
		return
	}
	version, err := common.IfMatchVersion(r)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.DeleteItem(r.Context(), orderID, itemID, version)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

func itemParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orderID, err := common.ParseUUIDParam("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		common.WriteError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	itemID, err := common.ParseUUIDParam("itemId", chi.URLParam(r, "itemId"))
	if err != nil {
		common.WriteError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	return orderID, itemID, true
}
