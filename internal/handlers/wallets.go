package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/blkd-app/wallet-api/internal/platform/httpx"
	"github.com/blkd-app/wallet-api/internal/platform/requestctx"
	"github.com/blkd-app/wallet-api/internal/services"
)

// WalletHandlers exposes the caller's funding instruments.
type WalletHandlers struct {
	catalog services.CatalogService
}

// NewWalletHandlers constructs handlers over the catalog service.
func NewWalletHandlers(catalog services.CatalogService) *WalletHandlers {
	return &WalletHandlers{catalog: catalog}
}

// Routes registers wallet endpoints under the provided router.
func (h *WalletHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
}

// list returns the caller's instruments with eligibility verdicts. The
// currency and required query parameters scope the verdicts; both default to
// the zero requirement, under which every active matching instrument passes.
func (h *WalletHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wallets_unavailable", "wallet service unavailable", http.StatusServiceUnavailable))
		return
	}
	userID := strings.TrimSpace(requestctx.UserID(ctx))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "caller identity required", http.StatusUnauthorized))
		return
	}

	currency := strings.TrimSpace(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = "USD"
	}
	var required int64
	if raw := strings.TrimSpace(r.URL.Query().Get("required")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "required must be a non-negative integer", http.StatusBadRequest))
			return
		}
		required = parsed
	}

	assessments, err := h.catalog.ListInstruments(ctx, services.InstrumentQuery{
		UserID:   userID,
		Currency: currency,
		Required: required,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"instruments": instrumentPayloads(assessments)})
}
