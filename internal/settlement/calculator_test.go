package settlement

import (
	"errors"
	"testing"

	"github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

func activeCard(spendable int64) *wallets.Instrument {
	return &wallets.Instrument{
		ID:        "wal_card",
		Kind:      domain.WalletKindCard,
		Currency:  "USD",
		Balance:   spendable,
		Spendable: spendable,
		Active:    true,
	}
}

func TestComputeRewardsCoverEverything(t *testing.T) {
	plan, err := Compute("usd", 3000, 5000, true, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Currency != "USD" {
		t.Fatalf("expected normalised currency USD, got %q", plan.Currency)
	}
	if plan.CreditApplied != 3000 {
		t.Fatalf("expected credit capped at the total, got %d", plan.CreditApplied)
	}
	if plan.RemainingDue != 0 {
		t.Fatalf("expected nothing remaining, got %d", plan.RemainingDue)
	}
	if !plan.Satisfied {
		t.Fatalf("expected plan satisfied without an instrument")
	}
	if plan.InstrumentID != "" {
		t.Fatalf("expected no instrument recorded, got %q", plan.InstrumentID)
	}
}

func TestComputePartialRewardsNeedInstrument(t *testing.T) {
	plan, err := Compute("USD", 10000, 4200, true, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.CreditApplied != 4200 {
		t.Fatalf("expected full rewards balance applied, got %d", plan.CreditApplied)
	}
	if plan.RemainingDue != 5800 {
		t.Fatalf("expected 5800 remaining, got %d", plan.RemainingDue)
	}
	if plan.Satisfied {
		t.Fatalf("expected plan unsatisfied without an instrument")
	}

	plan, err = Compute("USD", 10000, 4200, true, activeCard(6000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Satisfied {
		t.Fatalf("expected instrument with 6000 to cover 5800")
	}
	if plan.InstrumentID != "wal_card" {
		t.Fatalf("expected instrument recorded, got %q", plan.InstrumentID)
	}
}

func TestComputeRewardsOptOut(t *testing.T) {
	plan, err := Compute("USD", 10000, 4200, false, activeCard(20000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.CreditApplied != 0 {
		t.Fatalf("expected no credit without opt-in, got %d", plan.CreditApplied)
	}
	if plan.RemainingDue != 10000 {
		t.Fatalf("expected full amount remaining, got %d", plan.RemainingDue)
	}
	if !plan.Satisfied {
		t.Fatalf("expected instrument to cover the full amount")
	}
}

func TestComputeInstrumentShortfall(t *testing.T) {
	plan, err := Compute("USD", 10000, 0, false, activeCard(9999))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Satisfied {
		t.Fatalf("expected shortfall of one minor unit to leave the plan unsatisfied")
	}
}

func TestComputeRejectsUnusableInstruments(t *testing.T) {
	cases := []struct {
		name       string
		instrument wallets.Instrument
	}{
		{name: "inactive", instrument: wallets.Instrument{ID: "wal_x", Kind: domain.WalletKindCard, Currency: "USD", Spendable: 99999, Active: false}},
		{name: "rewards kind", instrument: wallets.Instrument{ID: "wal_x", Kind: domain.WalletKindRewards, Currency: "USD", Spendable: 99999, Active: true}},
		{name: "currency mismatch", instrument: wallets.Instrument{ID: "wal_x", Kind: domain.WalletKindCard, Currency: "EUR", Spendable: 99999, Active: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.instrument
			plan, err := Compute("USD", 5000, 0, false, &in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if plan.Satisfied {
				t.Fatalf("expected plan unsatisfied with %s instrument", tc.name)
			}
		})
	}
}

func TestComputeZeroTotal(t *testing.T) {
	plan, err := Compute("USD", 0, 5000, true, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.CreditApplied != 0 {
		t.Fatalf("expected no credit against a zero total, got %d", plan.CreditApplied)
	}
	if !plan.Satisfied {
		t.Fatalf("expected zero total to be trivially satisfied")
	}
}

func TestComputeNegativeTotal(t *testing.T) {
	if _, err := Compute("USD", -1, 0, false, nil); !errors.Is(err, ErrInvalidTotal) {
		t.Fatalf("expected ErrInvalidTotal, got %v", err)
	}
}

func TestComputeIsPure(t *testing.T) {
	in := activeCard(6000)
	first, err := Compute("USD", 10000, 4200, true, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		plan, err := Compute("USD", 10000, 4200, true, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan != first {
			t.Fatalf("expected identical plans, got %+v then %+v", first, plan)
		}
	}
}

func TestFinalize(t *testing.T) {
	if err := Finalize(domain.SettlementPlan{Satisfied: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Finalize(domain.SettlementPlan{Currency: "USD", RemainingDue: 5800})
	if !errors.Is(err, ErrUnderfundedPlan) {
		t.Fatalf("expected ErrUnderfundedPlan, got %v", err)
	}
}
