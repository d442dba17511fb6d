package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/blkd-app/wallet-api/internal/checkout"
	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/ledger"
	"github.com/blkd-app/wallet-api/internal/platform/httpx"
	"github.com/blkd-app/wallet-api/internal/platform/requestctx"
	"github.com/blkd-app/wallet-api/internal/pricing"
	"github.com/blkd-app/wallet-api/internal/services"
	"github.com/blkd-app/wallet-api/internal/settlement"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

// CheckoutHandlers exposes the checkout session endpoints.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers over the checkout service.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/sessions", h.startSession)
	r.Get("/sessions/{sessionID}", h.getSession)
	r.Post("/sessions/{sessionID}/target", h.setTarget)
	r.Post("/sessions/{sessionID}/amount", h.setAmount)
	r.Post("/sessions/{sessionID}/payment-method", h.setPaymentMethod)
	r.Post("/sessions/{sessionID}/note", h.setNote)
	r.Post("/sessions/{sessionID}/advance", h.advance)
	r.Post("/sessions/{sessionID}/retreat", h.retreat)
	r.Post("/sessions/{sessionID}/reset", h.reset)
	r.Delete("/sessions/{sessionID}", h.abandon)
}

type startSessionRequest struct {
	Flow     string `json:"flow"`
	Currency string `json:"currency"`
}

type targetRequest struct {
	TargetID string `json:"targetId"`
}

type amountRequest struct {
	Amount   int64   `json:"amount"`
	Quantity float64 `json:"quantity"`
}

type paymentMethodRequest struct {
	UseRewards   bool   `json:"useRewards"`
	InstrumentID string `json:"instrumentId"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type planResponse struct {
	Currency      string `json:"currency"`
	TotalDue      int64  `json:"totalDue"`
	CreditApplied int64  `json:"creditApplied"`
	RemainingDue  int64  `json:"remainingDue"`
	InstrumentID  string `json:"instrumentId,omitempty"`
	Satisfied     bool   `json:"satisfied"`
}

type instrumentResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Currency  string `json:"currency"`
	Spendable int64  `json:"spendable"`
	Default   bool   `json:"default,omitempty"`
	Backup    bool   `json:"backup,omitempty"`
	Eligible  bool   `json:"eligible"`
	Reason    string `json:"reason,omitempty"`
}

type receiptResponse struct {
	TransactionID string `json:"transactionId"`
	Flow          string `json:"flow"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"`
	CreditApplied int64  `json:"creditApplied"`
	InstrumentID  string `json:"instrumentId,omitempty"`
	DisplayAmount string `json:"displayAmount"`
	CreatedAt     string `json:"createdAt"`
}

type sessionResponse struct {
	ID                   string               `json:"id"`
	Flow                 string               `json:"flow"`
	Step                 string               `json:"step"`
	History              []string             `json:"history"`
	Currency             string               `json:"currency"`
	TargetID             string               `json:"targetId,omitempty"`
	Quantity             int64                `json:"quantity,omitempty"`
	Amount               int64                `json:"amount"`
	Note                 string               `json:"note,omitempty"`
	UseRewards           bool                 `json:"useRewards"`
	RewardsBalance       int64                `json:"rewardsBalance"`
	Instruments          []instrumentResponse `json:"instruments"`
	SelectedInstrumentID string               `json:"selectedInstrumentId,omitempty"`
	Plan                 planResponse         `json:"plan"`
	Receipt              *receiptResponse     `json:"receipt,omitempty"`
	FailureReason        string               `json:"failureReason,omitempty"`
}

func (h *CheckoutHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req startSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	view, err := h.checkout.StartSession(ctx, services.StartSessionCommand{
		UserID:   userID,
		Flow:     domain.FlowKind(strings.TrimSpace(req.Flow)),
		Currency: req.Currency,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, sessionPayload(view))
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	view, err := h.checkout.GetSession(ctx, services.SessionCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) setTarget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req targetRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	view, err := h.checkout.SetTarget(ctx, services.TargetCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		TargetID:  req.TargetID,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) setAmount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req amountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	view, err := h.checkout.SetAmount(ctx, services.AmountCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		Amount:    req.Amount,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req paymentMethodRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	view, err := h.checkout.SetPaymentMethod(ctx, services.PaymentMethodCommand{
		UserID:       userID,
		SessionID:    chi.URLParam(r, "sessionID"),
		UseRewards:   req.UseRewards,
		InstrumentID: req.InstrumentID,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) setNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	// An absent body clears the note.
	body, err := readOptionalBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req noteRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	}
	view, err := h.checkout.SetNote(ctx, services.NoteCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		Note:      req.Note,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) advance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	view, err := h.checkout.Advance(ctx, services.SessionCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		// A failed settlement is a terminal session state, not a transport
		// error; the client renders the failure from the session payload.
		if errors.Is(err, ledger.ErrSubmissionRejected) || errors.Is(err, ledger.ErrSubmissionTimeout) {
			writeJSONResponse(w, http.StatusOK, sessionPayload(view))
			return
		}
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) retreat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	view, err := h.checkout.Retreat(ctx, services.SessionCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	view, err := h.checkout.Reset(ctx, services.SessionCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(view))
}

func (h *CheckoutHandlers) abandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	if err := h.checkout.Abandon(ctx, services.SessionCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	}); err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	userID := strings.TrimSpace(requestctx.UserID(ctx))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "caller identity required", http.StatusUnauthorized))
		return "", false
	}
	return userID, true
}

func sessionPayload(view services.SessionView) sessionResponse {
	history := make([]string, 0, len(view.History))
	for _, step := range view.History {
		history = append(history, string(step))
	}
	resp := sessionResponse{
		ID:                   view.ID,
		Flow:                 string(view.Flow),
		Step:                 string(view.Step),
		History:              history,
		Currency:             view.Currency,
		TargetID:             view.TargetID,
		Quantity:             view.Quantity,
		Amount:               view.Amount,
		Note:                 view.Note,
		UseRewards:           view.UseRewards,
		RewardsBalance:       view.RewardsBalance,
		Instruments:          instrumentPayloads(view.Instruments),
		SelectedInstrumentID: view.SelectedInstrumentID,
		Plan: planResponse{
			Currency:      view.Plan.Currency,
			TotalDue:      view.Plan.TotalDue,
			CreditApplied: view.Plan.CreditApplied,
			RemainingDue:  view.Plan.RemainingDue,
			InstrumentID:  view.Plan.InstrumentID,
			Satisfied:     view.Plan.Satisfied,
		},
		FailureReason: string(view.FailureReason),
	}
	if view.Receipt != nil {
		resp.Receipt = &receiptResponse{
			TransactionID: view.Receipt.TransactionID,
			Flow:          string(view.Receipt.Flow),
			Currency:      view.Receipt.Currency,
			Amount:        view.Receipt.Amount,
			CreditApplied: view.Receipt.CreditApplied,
			InstrumentID:  view.Receipt.InstrumentID,
			DisplayAmount: view.Receipt.DisplayAmount,
			CreatedAt:     formatTime(view.Receipt.CreatedAt),
		}
	}
	return resp
}

func instrumentPayloads(assessments []wallets.Assessment) []instrumentResponse {
	out := make([]instrumentResponse, 0, len(assessments))
	for _, a := range assessments {
		out = append(out, instrumentResponse{
			ID:        a.Instrument.ID,
			Kind:      string(a.Instrument.Kind),
			Currency:  a.Instrument.Currency,
			Spendable: a.Instrument.Spendable,
			Default:   a.Instrument.Default,
			Backup:    a.Instrument.Backup,
			Eligible:  a.Eligible,
			Reason:    string(a.Reason),
		})
	}
	return out
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", err.Error(), http.StatusBadRequest))
	case errors.Is(err, pricing.ErrUnknownTier):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_tier", err.Error(), http.StatusNotFound))
	case errors.Is(err, checkout.ErrUnknownInstrument):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_instrument", err.Error(), http.StatusBadRequest))
	case errors.Is(err, settlement.ErrUnderfundedPlan):
		httpx.WriteError(ctx, w, httpx.NewError("underfunded_plan", "settlement plan cannot cover the amount due", http.StatusConflict))
	case errors.Is(err, checkout.ErrStepValidationFailed):
		httpx.WriteError(ctx, w, httpx.NewError("step_validation_failed", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, checkout.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "session belongs to another user", http.StatusForbidden))
	case errors.Is(err, services.ErrCheckoutNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, ledger.ErrSubmissionTimeout):
		httpx.WriteError(ctx, w, httpx.NewError("submission_timeout", "settlement submission timed out", http.StatusGatewayTimeout))
	case errors.Is(err, ledger.ErrSubmissionRejected):
		httpx.WriteError(ctx, w, httpx.NewError("submission_rejected", "settlement submission was rejected", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutUnavailable), errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}
