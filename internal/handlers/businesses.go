package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/platform/httpx"
	"github.com/blkd-app/wallet-api/internal/services"
)

// BusinessHandlers exposes the payable business directory.
type BusinessHandlers struct {
	catalog services.CatalogService
}

// NewBusinessHandlers constructs handlers over the catalog service.
func NewBusinessHandlers(catalog services.CatalogService) *BusinessHandlers {
	return &BusinessHandlers{catalog: catalog}
}

// Routes registers business directory endpoints under the provided router.
func (h *BusinessHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
}

type businessResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Currency  string `json:"currency"`
	Nonprofit bool   `json:"nonprofit,omitempty"`
}

func (h *BusinessHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("businesses_unavailable", "business directory unavailable", http.StatusServiceUnavailable))
		return
	}
	nonprofitOnly := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("nonprofit")), "true")
	businesses, err := h.catalog.ListBusinesses(ctx, nonprofitOnly)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	payloads := make([]businessResponse, 0, len(businesses))
	for _, b := range businesses {
		payloads = append(payloads, businessPayload(b))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"businesses": payloads})
}

func businessPayload(b domain.Business) businessResponse {
	return businessResponse{
		ID:        b.ID,
		Name:      b.Name,
		Category:  b.Category,
		Currency:  b.Currency,
		Nonprofit: b.Nonprofit,
	}
}
