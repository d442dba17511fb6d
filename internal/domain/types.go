package domain

import (
	"time"
)

// FlowKind identifies which purchase flow a checkout session drives. All flows
// share the same settlement core and differ only in their target entity and
// step sequence.
type FlowKind string

const (
	// FlowBLKDPurchase buys a bulk tier of BLKD rewards credit.
	FlowBLKDPurchase FlowKind = "blkd_purchase"
	// FlowGiftCard purchases a gift card for a recipient.
	FlowGiftCard FlowKind = "gift_card"
	// FlowBusinessPayment pays a business directly (C2B).
	FlowBusinessPayment FlowKind = "business_payment"
	// FlowDonation donates to a nonprofit.
	FlowDonation FlowKind = "donation"
	// FlowTopUp adds funds to the user's cash wallet; it has no secondary target.
	FlowTopUp FlowKind = "top_up"
)

// RequiresTarget reports whether the flow starts with a target-selection step.
func (k FlowKind) RequiresTarget() bool {
	return k != FlowTopUp
}

// Valid reports whether the flow kind is one of the supported flows.
func (k FlowKind) Valid() bool {
	switch k {
	case FlowBLKDPurchase, FlowGiftCard, FlowBusinessPayment, FlowDonation, FlowTopUp:
		return true
	default:
		return false
	}
}

// WalletKind enumerates the balance holders a user may own.
type WalletKind string

const (
	// WalletKindCash is the primary fiat cash account.
	WalletKindCash WalletKind = "cash"
	// WalletKindRewards holds non-redeemable BLKD rewards credit. Rewards
	// wallets are never charged directly; the settlement calculator applies
	// them before any fiat instrument.
	WalletKindRewards WalletKind = "rewards"
	// WalletKindBank is a linked bank account.
	WalletKindBank WalletKind = "bank"
	// WalletKindCard is a linked debit or credit card.
	WalletKindCard WalletKind = "card"
	// WalletKindGiftCard is a stored gift-card balance.
	WalletKindGiftCard WalletKind = "gift_card"
	// WalletKindBusiness is a business or nonprofit account.
	WalletKindBusiness WalletKind = "business"
)

// Wallet is a read-only balance holder supplied by the catalog/ledger
// collaborator. Amounts are minor currency units. AvailableBalance, when
// present, is the authoritative spendable amount and never exceeds Balance;
// settlement logic only computes charges and never mutates wallets.
type Wallet struct {
	ID               string
	Kind             WalletKind
	Currency         string
	Balance          int64
	AvailableBalance *int64
	IsActive         bool
	IsDefault        bool
	IsBackup         bool
}

// PricingTier is an immutable bulk-purchase breakpoint. UnitPrice is the
// undiscounted price (quantity times the base rate), Savings the discount
// amount, FinalPrice the price after discount, all in minor units. Featured is
// advisory only.
type PricingTier struct {
	ID              string
	Quantity        int64
	UnitPrice       int64
	DiscountPercent float64
	Savings         int64
	FinalPrice      int64
	Featured        bool
}

// Business represents a payable business or nonprofit from the catalog.
type Business struct {
	ID        string
	Name      string
	Category  string
	Currency  string
	Nonprofit bool
	Active    bool
}

// SettlementPlan is the derived, ephemeral split of a total charge between
// rewards credit and a fallback instrument. It is recomputed from inputs on
// every change and never persisted.
type SettlementPlan struct {
	Currency      string
	TotalDue      int64
	CreditApplied int64
	RemainingDue  int64
	InstrumentID  string
	Satisfied     bool
}

// FailureReason classifies why a checkout session reached its failed state.
type FailureReason string

const (
	// FailureSubmissionRejected indicates the ledger rejected the settlement;
	// the user's instrument was not charged.
	FailureSubmissionRejected FailureReason = "submission_rejected"
	// FailureSubmissionTimeout indicates the submission did not resolve within
	// the configured deadline.
	FailureSubmissionTimeout FailureReason = "submission_timeout"
)

// Receipt records a completed settlement submission.
type Receipt struct {
	TransactionID string
	Flow          FlowKind
	Currency      string
	Amount        int64
	CreditApplied int64
	InstrumentID  string
	DisplayAmount string
	CreatedAt     time.Time
}
