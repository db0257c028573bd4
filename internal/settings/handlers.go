package settings

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes the accounting settings endpoints.
type Handler struct {
	Svc *Service
}

type settingsDTO struct {
	ID                string  `json:"id"`
	StandardVATRate   string  `json:"standardVatRate"`
	ServiceChargeRate string  `json:"serviceChargeRate"`
	CurrencyCode      string  `json:"currencyCode"`
	CurrencySymbol    string  `json:"currencySymbol"`
	CompanyName       string  `json:"companyName"`
	CompanyAddress    *string `json:"companyAddress"`
	VATNumber         *string `json:"vatNumber"`
	CompanyNumber     *string `json:"companyNumber"`
	UpdatedAt         string  `json:"updatedAt"`
}

func toDTO(s AccountingSettings) settingsDTO {
	return settingsDTO{
		ID:                s.ID.String(),
		StandardVATRate:   s.StandardVATRate.String(),
		ServiceChargeRate: s.ServiceChargeRate.String(),
		CurrencyCode:      s.CurrencyCode,
		CurrencySymbol:    s.CurrencySymbol,
		CompanyName:       s.CompanyName,
		CompanyAddress:    s.CompanyAddress,
		VATNumber:         s.VATNumber,
		CompanyNumber:     s.CompanyNumber,
		UpdatedAt:         s.UpdatedAt.Format(time.RFC3339),
	}
}

// Get returns the settings, creating defaults on first access.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	current, err := h.Svc.GetOrCreate(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDTO(current)})
}

// Patch applies the fields present in the request body.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := common.DecodeJSON(r, &patch); err != nil {
		common.WriteError(w, r, err)
		return
	}
	updated, err := h.Svc.Update(r.Context(), patch)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDTO(updated)})
}
