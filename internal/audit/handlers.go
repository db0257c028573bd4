package audit

import (
	"net/http"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes the audit trail over HTTP.
type Handler struct {
	Svc *Service
}

// List handles GET /audit?page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	pg := common.PageFrom(r, 50, 200)
	entries, total, err := h.Svc.List(r.Context(), pg.PerPage, pg.Offset())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": pg.WithTotal(total),
	})
}
