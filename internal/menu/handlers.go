package menu

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes menu item endpoints.
type Handler struct {
	Svc *Service
}

type itemDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
	UpdatedAt string `json:"updatedAt"`
}

func toDTO(it Item) itemDTO {
	return itemDTO{
		ID:        it.ID.String(),
		Name:      it.Name,
		Category:  it.Category,
		Price:     it.Price.StringFixed(2),
		Available: it.Available,
		UpdatedAt: it.UpdatedAt.Format(time.RFC3339),
	}
}

// List returns menu items. ?all=true includes unavailable items.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.List(r.Context(), r.URL.Query().Get("all") == "true")
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	out := make([]itemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, toDTO(it))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Create adds a menu item.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	item, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toDTO(item)})
}

// Update patches a menu item.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var patch Patch
	if err := common.DecodeJSON(r, &patch); err != nil {
		common.WriteError(w, r, err)
		return
	}
	item, err := h.Svc.Update(r.Context(), id, patch)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDTO(item)})
}

// Delete removes or retires a menu item and reports which happened.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.ParseUUIDParam("id", chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.Svc.Delete(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	switch v := res.(type) {
	case Deleted:
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"result": "deleted", "id": v.ID.String()}})
	case MarkedUnavailable:
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"result": "marked_unavailable", "item": toDTO(v.Item)}})
	}
}
