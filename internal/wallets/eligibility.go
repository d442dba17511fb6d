package wallets

import (
	"strings"

	"github.com/blkd-app/wallet-api/internal/domain"
)

// Instrument is a wallet normalised for settlement: the available-balance
// fallback is resolved once at ingestion into Spendable so downstream logic
// never re-derives it.
type Instrument struct {
	ID        string
	Kind      domain.WalletKind
	Currency  string
	Balance   int64
	Spendable int64
	Active    bool
	Default   bool
	Backup    bool
}

// IneligibilityReason explains why an instrument cannot cover a charge. The
// reasons are informational for display; control flow uses FilterEligible.
type IneligibilityReason string

const (
	// ReasonInactive marks instruments that are disabled or frozen.
	ReasonInactive IneligibilityReason = "inactive"
	// ReasonRewardsKind marks rewards wallets, which are applied by the
	// settlement calculator and never act as a fallback instrument.
	ReasonRewardsKind IneligibilityReason = "rewards_kind"
	// ReasonCurrencyMismatch marks instruments denominated in another currency.
	ReasonCurrencyMismatch IneligibilityReason = "currency_mismatch"
	// ReasonInsufficientFunds marks instruments whose spendable balance is
	// below the required amount.
	ReasonInsufficientFunds IneligibilityReason = "insufficient_funds"
)

// Assessment pairs an instrument with its eligibility verdict.
type Assessment struct {
	Instrument Instrument
	Eligible   bool
	Reason     IneligibilityReason
}

// Normalize converts raw wallets into instruments with a canonical spendable
// balance. When AvailableBalance is present it is authoritative, clamped to
// Balance to preserve the availableBalance <= balance invariant against
// malformed upstream data.
func Normalize(ws []domain.Wallet) []Instrument {
	instruments := make([]Instrument, 0, len(ws))
	for _, w := range ws {
		spendable := w.Balance
		if w.AvailableBalance != nil {
			spendable = *w.AvailableBalance
			if spendable > w.Balance {
				spendable = w.Balance
			}
		}
		if spendable < 0 {
			spendable = 0
		}
		instruments = append(instruments, Instrument{
			ID:        strings.TrimSpace(w.ID),
			Kind:      w.Kind,
			Currency:  strings.ToUpper(strings.TrimSpace(w.Currency)),
			Balance:   w.Balance,
			Spendable: spendable,
			Active:    w.IsActive,
			Default:   w.IsDefault,
			Backup:    w.IsBackup,
		})
	}
	return instruments
}

// FilterEligible keeps instruments that can cover the required amount in the
// target currency, preserving input order. Rewards wallets are always
// excluded. An empty result is not an error; callers block until an eligible
// instrument exists.
func FilterEligible(instruments []Instrument, currency string, required int64) []Instrument {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	eligible := make([]Instrument, 0, len(instruments))
	for _, in := range instruments {
		if ineligibility(in, currency, required) == "" {
			eligible = append(eligible, in)
		}
	}
	return eligible
}

// Inspect reports a verdict for every instrument, eligible or not. Output
// order matches input order; the default instrument is not promoted.
func Inspect(instruments []Instrument, currency string, required int64) []Assessment {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	assessments := make([]Assessment, 0, len(instruments))
	for _, in := range instruments {
		reason := ineligibility(in, currency, required)
		assessments = append(assessments, Assessment{
			Instrument: in,
			Eligible:   reason == "",
			Reason:     reason,
		})
	}
	return assessments
}

// DefaultInstrument returns the eligible instrument flagged as default, if
// any. It is a pre-selection hint only.
func DefaultInstrument(eligible []Instrument) (Instrument, bool) {
	for _, in := range eligible {
		if in.Default {
			return in, true
		}
	}
	return Instrument{}, false
}

// Find returns the instrument with the given id.
func Find(instruments []Instrument, id string) (Instrument, bool) {
	for _, in := range instruments {
		if in.ID == id {
			return in, true
		}
	}
	return Instrument{}, false
}

func ineligibility(in Instrument, currency string, required int64) IneligibilityReason {
	switch {
	case in.Kind == domain.WalletKindRewards:
		return ReasonRewardsKind
	case !in.Active:
		return ReasonInactive
	case in.Currency != currency:
		return ReasonCurrencyMismatch
	case in.Spendable < required:
		return ReasonInsufficientFunds
	default:
		return ""
	}
}
