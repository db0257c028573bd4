package purchase

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes supplier and purchase endpoints.
type Handler struct {
	Svc *Service
}

type supplierDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	VATNumber *string `json:"vatNumber"`
}

type purchaseDTO struct {
	ID         string  `json:"id"`
	SupplierID string  `json:"supplierId"`
	Date       string  `json:"date"`
	Category   string  `json:"category"`
	Subtotal   string  `json:"subtotal"`
	VATRate    string  `json:"vatRate"`
	VATAmount  string  `json:"vatAmount"`
	Total      string  `json:"total"`
	Reference  *string `json:"reference"`
	Notes      *string `json:"notes"`
}

func toPurchaseDTO(p Purchase) purchaseDTO {
	return purchaseDTO{
		ID:         p.ID.String(),
		SupplierID: p.SupplierID.String(),
		Date:       p.Date.Format(time.DateOnly),
		Category:   p.Category,
		Subtotal:   p.Subtotal.StringFixed(2),
		VATRate:    p.VATRate.String(),
		VATAmount:  p.VATAmount.StringFixed(2),
		Total:      p.Total.StringFixed(2),
		Reference:  p.Reference,
		Notes:      p.Notes,
	}
}

// CreateSupplier handles POST /suppliers.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var in SupplierInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	s, err := h.Svc.CreateSupplier(r.Context(), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": supplierDTO{
		ID: s.ID.String(), Name: s.Name, Email: s.Email, Phone: s.Phone, VATNumber: s.VATNumber,
	}})
}

// ListSuppliers handles GET /suppliers.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListSuppliers(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	out := make([]supplierDTO, 0, len(list))
	for _, s := range list {
		out = append(out, supplierDTO{ID: s.ID.String(), Name: s.Name, Email: s.Email, Phone: s.Phone, VATNumber: s.VATNumber})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Create handles POST /purchases.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	p, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toPurchaseDTO(p)})
}

// List handles GET /purchases?from=YYYY-MM-DD&to=YYYY-MM-DD&supplierId=.
// Both bounds are inclusive dates.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f Filter
	if raw := q.Get("from"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			common.WriteError(w, r, common.Validation("invalid from", map[string]string{"from": "must be YYYY-MM-DD"}))
			return
		}
		f.From = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			common.WriteError(w, r, common.Validation("invalid to", map[string]string{"to": "must be YYYY-MM-DD"}))
			return
		}
		end := d.AddDate(0, 0, 1)
		f.To = &end
	}
	if raw := q.Get("supplierId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.WriteError(w, r, common.Validation("invalid supplierId", map[string]string{"supplierId": "must be a UUID"}))
			return
		}
		f.SupplierID = &id
	}
	list, err := h.Svc.List(r.Context(), f)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	out := make([]purchaseDTO, 0, len(list))
	for _, p := range list {
		out = append(out, toPurchaseDTO(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
