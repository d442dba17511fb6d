package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/blkd-app/wallet-api/internal/checkout"
	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/ledger"
	"github.com/blkd-app/wallet-api/internal/pricing"
	"github.com/blkd-app/wallet-api/internal/repositories"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

const (
	defaultSubmitTimeout   = 10 * time.Second
	defaultSessionCurrency = "USD"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrCheckoutNotFound indicates the session, tier, or business does not exist.
	ErrCheckoutNotFound = errors.New("checkout service: not found")
	// ErrCheckoutForbidden indicates the session belongs to another user.
	ErrCheckoutForbidden = errors.New("checkout service: forbidden")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout service: unavailable")
)

// settlementSubmitter abstracts ledger.Manager for easier testing.
type settlementSubmitter interface {
	Submit(ctx context.Context, sub ledger.Submission) (domain.Receipt, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Catalog       repositories.CatalogRepository
	Wallets       repositories.WalletRepository
	Sessions      repositories.SessionRepository
	Ledger        settlementSubmitter
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
	SubmitTimeout time.Duration
	BaseRate      int64
	// DisabledFlows lists flow kinds rejected at session start. Empty means
	// every flow is available.
	DisabledFlows []domain.FlowKind
}

type checkoutService struct {
	catalog       repositories.CatalogRepository
	wallets       repositories.WalletRepository
	sessions      repositories.SessionRepository
	ledger        settlementSubmitter
	now           func() time.Time
	logger        func(ctx context.Context, event string, fields map[string]any)
	submitTimeout time.Duration
	baseRate      int64
	disabledFlows map[domain.FlowKind]struct{}
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("checkout service: catalog repository is required")
	}
	if deps.Wallets == nil {
		return nil, errors.New("checkout service: wallet repository is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("checkout service: session repository is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("checkout service: ledger submitter is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	timeout := deps.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	baseRate := deps.BaseRate
	if baseRate <= 0 {
		baseRate = pricing.DefaultBaseRate
	}
	disabled := make(map[domain.FlowKind]struct{}, len(deps.DisabledFlows))
	for _, flow := range deps.DisabledFlows {
		disabled[flow] = struct{}{}
	}

	return &checkoutService{
		catalog:  deps.Catalog,
		wallets:  deps.Wallets,
		sessions: deps.Sessions,
		ledger:   deps.Ledger,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:        logger,
		submitTimeout: timeout,
		baseRate:      baseRate,
		disabledFlows: disabled,
	}, nil
}

// StartSession opens a new session at the flow's first step with funding
// preloaded from the wallet snapshot.
func (s *checkoutService) StartSession(ctx context.Context, cmd StartSessionCommand) (SessionView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return SessionView{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = defaultSessionCurrency
	}
	if _, ok := s.disabledFlows[cmd.Flow]; ok {
		return SessionView{}, fmt.Errorf("%w: flow %q is disabled", ErrCheckoutInvalidInput, cmd.Flow)
	}

	session, err := checkout.New(fmt.Sprintf("cs_%s", ulid.Make().String()), userID, cmd.Flow, currency)
	if err != nil {
		return SessionView{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	session.SetIdempotencyKey(ulid.Make().String())

	if err := s.refreshFunding(ctx, session); err != nil {
		return SessionView{}, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return SessionView{}, s.translateRepoError(ctx, "checkout.start_save_failed", err)
	}

	s.logger(ctx, "checkout.session_started", map[string]any{
		"sessionID": session.ID(),
		"userID":    userID,
		"flow":      string(cmd.Flow),
	})
	return s.view(session), nil
}

// GetSession returns the current state of an owned session.
func (s *checkoutService) GetSession(ctx context.Context, cmd SessionCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(session), nil
}

// SetTarget validates and records the flow's target entity. Selecting a preset
// tier also fixes the amount to the tier's discounted price.
func (s *checkoutService) SetTarget(ctx context.Context, cmd TargetCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	targetID := strings.TrimSpace(cmd.TargetID)
	if targetID == "" {
		return SessionView{}, fmt.Errorf("%w: target id is required", ErrCheckoutInvalidInput)
	}

	switch session.Flow() {
	case domain.FlowBLKDPurchase:
		tier, err := s.catalog.GetTier(ctx, targetID)
		if err != nil {
			return SessionView{}, s.translateRepoError(ctx, "checkout.tier_lookup_failed", err)
		}
		if err := session.SetTarget(tier.ID); err != nil {
			return SessionView{}, err
		}
		if err := session.SetAmount(tier.FinalPrice, tier.Quantity); err != nil {
			return SessionView{}, err
		}
	case domain.FlowBusinessPayment, domain.FlowDonation:
		business, err := s.catalog.GetBusiness(ctx, targetID)
		if err != nil {
			return SessionView{}, s.translateRepoError(ctx, "checkout.business_lookup_failed", err)
		}
		if !business.Active {
			return SessionView{}, fmt.Errorf("%w: business %q is inactive", ErrCheckoutInvalidInput, business.ID)
		}
		if session.Flow() == domain.FlowDonation && !business.Nonprofit {
			return SessionView{}, fmt.Errorf("%w: %q is not a nonprofit", ErrCheckoutInvalidInput, business.ID)
		}
		if err := session.SetTarget(business.ID); err != nil {
			return SessionView{}, err
		}
	case domain.FlowGiftCard:
		if err := session.SetTarget(targetID); err != nil {
			return SessionView{}, err
		}
	default:
		return SessionView{}, fmt.Errorf("%w: flow %q has no target step", ErrCheckoutInvalidInput, session.Flow())
	}

	return s.persist(ctx, session)
}

// SetAmount records the charge. For tier flows a quantity is resolved through
// the bulk discount schedule; other flows take the amount verbatim.
func (s *checkoutService) SetAmount(ctx context.Context, cmd AmountCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}

	if session.Flow() == domain.FlowBLKDPurchase && cmd.Quantity > 0 {
		tiers, err := s.catalog.ListTiers(ctx)
		if err != nil {
			return SessionView{}, s.translateRepoError(ctx, "checkout.tier_list_failed", err)
		}
		tier, err := pricing.ResolveTier(cmd.Quantity, tiers, s.baseRate)
		if err != nil {
			return SessionView{}, err
		}
		if err := session.SetAmount(tier.FinalPrice, tier.Quantity); err != nil {
			return SessionView{}, err
		}
		return s.persist(ctx, session)
	}

	if cmd.Amount <= 0 {
		return SessionView{}, fmt.Errorf("%w: amount must be positive", ErrCheckoutInvalidInput)
	}
	if err := session.SetAmount(cmd.Amount, 0); err != nil {
		return SessionView{}, err
	}
	return s.persist(ctx, session)
}

// SetPaymentMethod records the rewards opt-in and fallback instrument after
// refreshing funding so the decision is made against current balances.
func (s *checkoutService) SetPaymentMethod(ctx context.Context, cmd PaymentMethodCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := s.refreshFunding(ctx, session); err != nil {
		return SessionView{}, err
	}
	if err := session.SetPaymentMethod(cmd.UseRewards, cmd.InstrumentID); err != nil {
		return SessionView{}, err
	}
	return s.persist(ctx, session)
}

// SetNote attaches a note to the purchase.
func (s *checkoutService) SetNote(ctx context.Context, cmd NoteCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := session.SetNote(strings.TrimSpace(cmd.Note)); err != nil {
		return SessionView{}, err
	}
	return s.persist(ctx, session)
}

// Advance moves the session forward. From review it submits the settlement
// under the configured timeout; the returned view reflects the post-transition
// state even when the submission fails, so callers can render the failure.
func (s *checkoutService) Advance(ctx context.Context, cmd SessionCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}

	advanceErr := session.Advance(ctx, s.submitFunc(session))
	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		return SessionView{}, s.translateRepoError(ctx, "checkout.advance_save_failed", saveErr)
	}
	if advanceErr != nil {
		if errors.Is(advanceErr, ledger.ErrSubmissionRejected) || errors.Is(advanceErr, ledger.ErrSubmissionTimeout) {
			s.logger(ctx, "checkout.submission_failed", map[string]any{
				"sessionID": session.ID(),
				"reason":    string(session.Failure()),
			})
			return s.view(session), advanceErr
		}
		return SessionView{}, advanceErr
	}

	if session.Current() == checkout.StepSucceeded {
		if receipt, ok := session.Outcome(); ok {
			s.logger(ctx, "checkout.settled", map[string]any{
				"sessionID":     session.ID(),
				"transactionID": receipt.TransactionID,
				"amount":        receipt.Amount,
			})
		}
	}
	return s.view(session), nil
}

// Retreat steps the session back to the previously completed step.
func (s *checkoutService) Retreat(ctx context.Context, cmd SessionCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := session.Retreat(); err != nil {
		return SessionView{}, err
	}
	return s.persist(ctx, session)
}

// Reset abandons the session back to its initial step and mints a fresh
// idempotency key so a new settlement attempt is possible.
func (s *checkoutService) Reset(ctx context.Context, cmd SessionCommand) (SessionView, error) {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	session.Reset()
	session.SetIdempotencyKey(ulid.Make().String())
	if err := s.refreshFunding(ctx, session); err != nil {
		return SessionView{}, err
	}
	return s.persist(ctx, session)
}

// Abandon discards an owned session. Settled sessions may be abandoned too;
// the receipt lives in the ledger, not the session store.
func (s *checkoutService) Abandon(ctx context.Context, cmd SessionCommand) error {
	session, err := s.loadOwned(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, session.ID()); err != nil {
		return s.translateRepoError(ctx, "checkout.abandon_failed", err)
	}
	s.logger(ctx, "checkout.session_abandoned", map[string]any{
		"sessionID": session.ID(),
		"step":      string(session.Current()),
	})
	return nil
}

func (s *checkoutService) submitFunc(session *checkout.Session) checkout.SubmitFunc {
	return func(ctx context.Context, data checkout.Context) (domain.Receipt, error) {
		subCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
		return s.ledger.Submit(subCtx, ledger.Submission{
			SessionID:      session.ID(),
			UserID:         session.UserID(),
			Flow:           session.Flow(),
			Currency:       data.Currency,
			Plan:           data.Plan,
			TargetID:       data.TargetID,
			Quantity:       data.Quantity,
			Note:           data.Note,
			IdempotencyKey: session.IdempotencyKey(),
		})
	}
}

func (s *checkoutService) refreshFunding(ctx context.Context, session *checkout.Session) error {
	ws, err := s.wallets.ListWallets(ctx, session.UserID())
	if err != nil {
		return s.translateRepoError(ctx, "checkout.wallet_load_failed", err)
	}
	rewards, err := s.wallets.RewardsBalance(ctx, session.UserID())
	if err != nil {
		return s.translateRepoError(ctx, "checkout.rewards_load_failed", err)
	}
	return session.SetFunding(rewards, wallets.Normalize(ws))
}

func (s *checkoutService) loadOwned(ctx context.Context, userID, sessionID string) (*checkout.Session, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: user id and session id are required", ErrCheckoutInvalidInput)
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, s.translateRepoError(ctx, "checkout.session_load_failed", err)
	}
	if session.UserID() != userID {
		return nil, fmt.Errorf("%w: session %q", ErrCheckoutForbidden, sessionID)
	}
	return session, nil
}

func (s *checkoutService) persist(ctx context.Context, session *checkout.Session) (SessionView, error) {
	if err := s.sessions.Save(ctx, session); err != nil {
		return SessionView{}, s.translateRepoError(ctx, "checkout.save_failed", err)
	}
	return s.view(session), nil
}

func (s *checkoutService) view(session *checkout.Session) SessionView {
	data := session.Context()
	view := SessionView{
		ID:                   session.ID(),
		UserID:               session.UserID(),
		Flow:                 session.Flow(),
		Step:                 session.Current(),
		History:              session.History(),
		Currency:             data.Currency,
		TargetID:             data.TargetID,
		Quantity:             data.Quantity,
		Amount:               data.Amount,
		Note:                 data.Note,
		UseRewards:           data.UseRewards,
		RewardsBalance:       data.RewardsBalance,
		Instruments:          wallets.Inspect(data.Instruments, data.Currency, data.Plan.RemainingDue),
		SelectedInstrumentID: data.SelectedInstrumentID,
		Plan:                 data.Plan,
		FailureReason:        session.Failure(),
	}
	if receipt, ok := session.Outcome(); ok {
		view.Receipt = &receipt
	}
	return view
}

func (s *checkoutService) translateRepoError(ctx context.Context, event string, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCheckoutNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
}
