package settlement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

var (
	// ErrInvalidTotal indicates a negative total, which the caller contract
	// forbids; it signals a defect upstream, not user input.
	ErrInvalidTotal = errors.New("settlement: total due must not be negative")
	// ErrUnderfundedPlan is raised when a caller finalises a plan that cannot
	// be satisfied with the current rewards credit and selected instrument.
	ErrUnderfundedPlan = errors.New("settlement: plan underfunded")
)

// Compute derives the split of totalDue between rewards credit and a fallback
// instrument. Rewards credit, when opted in, is applied first and fully,
// capped at both the balance and the total; there is no manual partial split.
// The computation is pure: identical inputs always produce identical plans.
func Compute(currency string, totalDue, rewardsBalance int64, useRewards bool, selected *wallets.Instrument) (domain.SettlementPlan, error) {
	if totalDue < 0 {
		return domain.SettlementPlan{}, fmt.Errorf("%w: %d", ErrInvalidTotal, totalDue)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))

	credit := int64(0)
	if useRewards && rewardsBalance > 0 {
		credit = rewardsBalance
		if credit > totalDue {
			credit = totalDue
		}
	}

	remaining := totalDue - credit

	plan := domain.SettlementPlan{
		Currency:      currency,
		TotalDue:      totalDue,
		CreditApplied: credit,
		RemainingDue:  remaining,
	}

	if remaining == 0 {
		plan.Satisfied = true
		return plan, nil
	}

	if selected == nil {
		return plan, nil
	}

	plan.InstrumentID = selected.ID
	plan.Satisfied = selected.Active &&
		selected.Kind != domain.WalletKindRewards &&
		selected.Currency == currency &&
		selected.Spendable >= remaining
	return plan, nil
}

// Finalize gates the transition past the payment-method step: an unsatisfied
// plan is a validation failure, not a computation error.
func Finalize(plan domain.SettlementPlan) error {
	if plan.Satisfied {
		return nil
	}
	return fmt.Errorf("%w: %d %s still due", ErrUnderfundedPlan, plan.RemainingDue, plan.Currency)
}
