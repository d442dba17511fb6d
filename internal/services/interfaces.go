package services

import (
	"context"

	"github.com/blkd-app/wallet-api/internal/checkout"
	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

// StartSessionCommand opens a checkout session for a purchase flow.
type StartSessionCommand struct {
	UserID   string
	Flow     domain.FlowKind
	Currency string
}

// SessionCommand addresses an existing session owned by a user.
type SessionCommand struct {
	UserID    string
	SessionID string
}

// TargetCommand selects the session's target entity.
type TargetCommand struct {
	UserID    string
	SessionID string
	TargetID  string
}

// AmountCommand sets the charge. Tier flows pass Quantity and the service
// derives the discounted amount; other flows pass Amount in minor units.
type AmountCommand struct {
	UserID    string
	SessionID string
	Amount    int64
	Quantity  float64
}

// PaymentMethodCommand sets the rewards opt-in and fallback instrument.
type PaymentMethodCommand struct {
	UserID       string
	SessionID    string
	UseRewards   bool
	InstrumentID string
}

// NoteCommand attaches a free-text note to the purchase.
type NoteCommand struct {
	UserID    string
	SessionID string
	Note      string
}

// SessionView is the read model handed to transports. Instruments carry the
// eligibility verdict for the plan's current residual so clients can grey out
// unusable options with a reason.
type SessionView struct {
	ID                   string
	UserID               string
	Flow                 domain.FlowKind
	Step                 checkout.Step
	History              []checkout.Step
	Currency             string
	TargetID             string
	Quantity             int64
	Amount               int64
	Note                 string
	UseRewards           bool
	RewardsBalance       int64
	Instruments          []wallets.Assessment
	SelectedInstrumentID string
	Plan                 domain.SettlementPlan
	Receipt              *domain.Receipt
	FailureReason        domain.FailureReason
}

// CheckoutService drives checkout sessions through their step sequence.
type CheckoutService interface {
	StartSession(ctx context.Context, cmd StartSessionCommand) (SessionView, error)
	GetSession(ctx context.Context, cmd SessionCommand) (SessionView, error)
	SetTarget(ctx context.Context, cmd TargetCommand) (SessionView, error)
	SetAmount(ctx context.Context, cmd AmountCommand) (SessionView, error)
	SetPaymentMethod(ctx context.Context, cmd PaymentMethodCommand) (SessionView, error)
	SetNote(ctx context.Context, cmd NoteCommand) (SessionView, error)
	Advance(ctx context.Context, cmd SessionCommand) (SessionView, error)
	Retreat(ctx context.Context, cmd SessionCommand) (SessionView, error)
	Reset(ctx context.Context, cmd SessionCommand) (SessionView, error)
	Abandon(ctx context.Context, cmd SessionCommand) error
}

// InstrumentQuery scopes an instrument listing to a currency and the amount
// the instrument would need to cover.
type InstrumentQuery struct {
	UserID   string
	Currency string
	Required int64
}

// CatalogService serves read-only pricing and directory data.
type CatalogService interface {
	ListTiers(ctx context.Context) ([]domain.PricingTier, error)
	QuoteQuantity(ctx context.Context, quantity float64) (domain.PricingTier, error)
	ListBusinesses(ctx context.Context, nonprofitOnly bool) ([]domain.Business, error)
	ListInstruments(ctx context.Context, query InstrumentQuery) ([]wallets.Assessment, error)
}
