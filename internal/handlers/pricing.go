package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/platform/httpx"
	"github.com/blkd-app/wallet-api/internal/services"
)

// PricingHandlers exposes the tier catalog and quantity quoting endpoints.
type PricingHandlers struct {
	catalog services.CatalogService
}

// NewPricingHandlers constructs handlers over the catalog service.
func NewPricingHandlers(catalog services.CatalogService) *PricingHandlers {
	return &PricingHandlers{catalog: catalog}
}

// Routes registers pricing endpoints under the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/tiers", h.listTiers)
	r.Get("/quote", h.quote)
}

type tierResponse struct {
	ID              string  `json:"id,omitempty"`
	Quantity        int64   `json:"quantity"`
	UnitPrice       int64   `json:"unitPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	Savings         int64   `json:"savings"`
	FinalPrice      int64   `json:"finalPrice"`
	Featured        bool    `json:"featured,omitempty"`
}

func (h *PricingHandlers) listTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}
	tiers, err := h.catalog.ListTiers(ctx)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"tiers": tierPayloads(tiers)})
}

func (h *PricingHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("quantity"))
	if raw == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity query parameter is required", http.StatusBadRequest))
		return
	}
	quantity, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", "quantity must be a number", http.StatusBadRequest))
		return
	}
	tier, err := h.catalog.QuoteQuantity(ctx, quantity)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, tierPayload(tier))
}

func tierPayload(tier domain.PricingTier) tierResponse {
	return tierResponse{
		ID:              tier.ID,
		Quantity:        tier.Quantity,
		UnitPrice:       tier.UnitPrice,
		DiscountPercent: tier.DiscountPercent,
		Savings:         tier.Savings,
		FinalPrice:      tier.FinalPrice,
		Featured:        tier.Featured,
	}
}

func tierPayloads(tiers []domain.PricingTier) []tierResponse {
	out := make([]tierResponse, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, tierPayload(tier))
	}
	return out
}
