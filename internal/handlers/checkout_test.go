package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/blkd-app/wallet-api/internal/checkout"
	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/ledger"
	"github.com/blkd-app/wallet-api/internal/platform/requestctx"
	"github.com/blkd-app/wallet-api/internal/services"
	"github.com/blkd-app/wallet-api/internal/settlement"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

type stubCheckoutService struct {
	startFunc            func(ctx context.Context, cmd services.StartSessionCommand) (services.SessionView, error)
	getFunc              func(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error)
	setTargetFunc        func(ctx context.Context, cmd services.TargetCommand) (services.SessionView, error)
	setAmountFunc        func(ctx context.Context, cmd services.AmountCommand) (services.SessionView, error)
	setPaymentMethodFunc func(ctx context.Context, cmd services.PaymentMethodCommand) (services.SessionView, error)
	setNoteFunc          func(ctx context.Context, cmd services.NoteCommand) (services.SessionView, error)
	advanceFunc          func(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error)
	retreatFunc          func(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error)
	resetFunc            func(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error)
	abandonFunc          func(ctx context.Context, cmd services.SessionCommand) error
}

func (s *stubCheckoutService) StartSession(ctx context.Context, cmd services.StartSessionCommand) (services.SessionView, error) {
	if s.startFunc != nil {
		return s.startFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) GetSession(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) SetTarget(ctx context.Context, cmd services.TargetCommand) (services.SessionView, error) {
	if s.setTargetFunc != nil {
		return s.setTargetFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) SetAmount(ctx context.Context, cmd services.AmountCommand) (services.SessionView, error) {
	if s.setAmountFunc != nil {
		return s.setAmountFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) SetPaymentMethod(ctx context.Context, cmd services.PaymentMethodCommand) (services.SessionView, error) {
	if s.setPaymentMethodFunc != nil {
		return s.setPaymentMethodFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) SetNote(ctx context.Context, cmd services.NoteCommand) (services.SessionView, error) {
	if s.setNoteFunc != nil {
		return s.setNoteFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) Advance(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error) {
	if s.advanceFunc != nil {
		return s.advanceFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) Retreat(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error) {
	if s.retreatFunc != nil {
		return s.retreatFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) Reset(ctx context.Context, cmd services.SessionCommand) (services.SessionView, error) {
	if s.resetFunc != nil {
		return s.resetFunc(ctx, cmd)
	}
	return services.SessionView{}, nil
}

func (s *stubCheckoutService) Abandon(ctx context.Context, cmd services.SessionCommand) error {
	if s.abandonFunc != nil {
		return s.abandonFunc(ctx, cmd)
	}
	return nil
}

var _ services.CheckoutService = (*stubCheckoutService)(nil)

func newCheckoutRouter(service services.CheckoutService) chi.Router {
	router := chi.NewRouter()
	NewCheckoutHandlers(service).Routes(router)
	return router
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(requestctx.WithUserID(req.Context(), userID))
}

func TestCheckoutHandlersStartSession(t *testing.T) {
	var captured services.StartSessionCommand
	service := &stubCheckoutService{
		startFunc: func(_ context.Context, cmd services.StartSessionCommand) (services.SessionView, error) {
			captured = cmd
			return services.SessionView{
				ID:       "cs_1",
				UserID:   cmd.UserID,
				Flow:     cmd.Flow,
				Step:     checkout.StepSelectTarget,
				Currency: "USD",
				Instruments: []wallets.Assessment{
					{Instrument: wallets.Instrument{ID: "wal_cash", Kind: domain.WalletKindCash, Currency: "USD", Spendable: 250000, Active: true, Default: true}, Eligible: true},
					{Instrument: wallets.Instrument{ID: "wal_rewards", Kind: domain.WalletKindRewards, Currency: "USD", Spendable: 4200, Active: true}, Reason: wallets.ReasonRewardsKind},
				},
			}, nil
		},
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"flow":"blkd_purchase","currency":"usd"}`))
	req = asUser(req, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user_1" || captured.Flow != domain.FlowBLKDPurchase {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "cs_1" || resp.Step != string(checkout.StepSelectTarget) {
		t.Fatalf("unexpected payload %+v", resp)
	}
	if len(resp.Instruments) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(resp.Instruments))
	}
	if resp.Instruments[1].Reason != string(wallets.ReasonRewardsKind) {
		t.Fatalf("expected rewards_kind reason, got %q", resp.Instruments[1].Reason)
	}
}

func TestCheckoutHandlersRequireIdentity(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"flow":"top_up"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["error"] != "unauthenticated" {
		t.Fatalf("expected error code unauthenticated, got %v", errResp["error"])
	}
}

func TestCheckoutHandlersStartSessionRejectsMalformedBody(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"flow":`))
	req = asUser(req, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCheckoutHandlersSetAmountPassesQuantity(t *testing.T) {
	var captured services.AmountCommand
	service := &stubCheckoutService{
		setAmountFunc: func(_ context.Context, cmd services.AmountCommand) (services.SessionView, error) {
			captured = cmd
			return services.SessionView{ID: cmd.SessionID, Step: checkout.StepSpecifyAmount}, nil
		},
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/sessions/cs_1/amount", bytes.NewBufferString(`{"quantity":1000}`))
	req = asUser(req, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.SessionID != "cs_1" || captured.Quantity != 1000 {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestCheckoutHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "underfunded", err: fmt.Errorf("%w: %w", checkout.ErrStepValidationFailed, settlement.ErrUnderfundedPlan), status: http.StatusConflict, code: "underfunded_plan"},
		{name: "step validation", err: checkout.ErrStepValidationFailed, status: http.StatusUnprocessableEntity, code: "step_validation_failed"},
		{name: "invalid transition", err: checkout.ErrInvalidTransition, status: http.StatusConflict, code: "invalid_transition"},
		{name: "unknown instrument", err: checkout.ErrUnknownInstrument, status: http.StatusBadRequest, code: "unknown_instrument"},
		{name: "forbidden", err: services.ErrCheckoutForbidden, status: http.StatusForbidden, code: "forbidden"},
		{name: "not found", err: services.ErrCheckoutNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "invalid input", err: services.ErrCheckoutInvalidInput, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "unavailable", err: services.ErrCheckoutUnavailable, status: http.StatusServiceUnavailable, code: "checkout_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCheckoutService{
				advanceFunc: func(context.Context, services.SessionCommand) (services.SessionView, error) {
					return services.SessionView{}, tc.err
				},
			}
			router := newCheckoutRouter(service)

			req := httptest.NewRequest(http.MethodPost, "/sessions/cs_1/advance", nil)
			req = asUser(req, "user_1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			var errResp map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if errResp["error"] != tc.code {
				t.Fatalf("expected error code %s, got %v", tc.code, errResp["error"])
			}
		})
	}
}

func TestCheckoutHandlersAdvanceSubmissionFailureReturnsSession(t *testing.T) {
	service := &stubCheckoutService{
		advanceFunc: func(context.Context, services.SessionCommand) (services.SessionView, error) {
			view := services.SessionView{
				ID:            "cs_1",
				Step:          checkout.StepFailed,
				FailureReason: domain.FailureSubmissionRejected,
			}
			return view, fmt.Errorf("%w: risk check", ledger.ErrSubmissionRejected)
		},
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/sessions/cs_1/advance", nil)
	req = asUser(req, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for failed settlement, got %d", rr.Code)
	}
	var resp sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Step != string(checkout.StepFailed) {
		t.Fatalf("expected failed step in payload, got %s", resp.Step)
	}
	if resp.FailureReason != string(domain.FailureSubmissionRejected) {
		t.Fatalf("expected submission_rejected, got %s", resp.FailureReason)
	}
}

func TestCheckoutHandlersAdvanceSuccessIncludesReceipt(t *testing.T) {
	service := &stubCheckoutService{
		advanceFunc: func(context.Context, services.SessionCommand) (services.SessionView, error) {
			return services.SessionView{
				ID:   "cs_1",
				Step: checkout.StepSucceeded,
				Receipt: &domain.Receipt{
					TransactionID: "txn_1",
					Flow:          domain.FlowBLKDPurchase,
					Currency:      "USD",
					Amount:        89000,
					CreditApplied: 4200,
					DisplayAmount: "$890.00",
				},
			}, nil
		},
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/sessions/cs_1/advance", nil)
	req = asUser(req, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Receipt == nil {
		t.Fatalf("expected receipt in payload")
	}
	if resp.Receipt.TransactionID != "txn_1" || resp.Receipt.Amount != 89000 {
		t.Fatalf("unexpected receipt %+v", resp.Receipt)
	}
}

func TestCheckoutHandlersResetAndRetreatRoute(t *testing.T) {
	var retreatCalled, resetCalled bool
	service := &stubCheckoutService{
		retreatFunc: func(_ context.Context, cmd services.SessionCommand) (services.SessionView, error) {
			retreatCalled = true
			return services.SessionView{ID: cmd.SessionID}, nil
		},
		resetFunc: func(_ context.Context, cmd services.SessionCommand) (services.SessionView, error) {
			resetCalled = true
			return services.SessionView{ID: cmd.SessionID}, nil
		},
	}
	router := newCheckoutRouter(service)

	for _, path := range []string{"/sessions/cs_1/retreat", "/sessions/cs_1/reset"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req = asUser(req, "user_1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, rr.Code)
		}
	}
	if !retreatCalled || !resetCalled {
		t.Fatalf("expected both retreat and reset to be invoked")
	}
}

func TestCheckoutHandlersAbandon(t *testing.T) {
	var captured services.SessionCommand
	service := &stubCheckoutService{
		abandonFunc: func(_ context.Context, cmd services.SessionCommand) error {
			captured = cmd
			return nil
		},
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/cs_1", nil)
	req = asUser(req, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if captured.UserID != "user_1" || captured.SessionID != "cs_1" {
		t.Fatalf("unexpected command %+v", captured)
	}

	service.abandonFunc = func(context.Context, services.SessionCommand) error {
		return services.ErrCheckoutNotFound
	}
	req = httptest.NewRequest(http.MethodDelete, "/sessions/cs_missing", nil)
	req = asUser(req, "user_1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
