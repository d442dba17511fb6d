package memory

import (
	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/pricing"
)

// DemoUserID is the user seeded into the demo dataset.
const DemoUserID = "user_demo"

func int64Ptr(v int64) *int64 { return &v }

// SeedCatalog returns the default tier catalog and a demo business directory.
func SeedCatalog(baseRate int64) ([]domain.PricingTier, []domain.Business) {
	businesses := []domain.Business{
		{ID: "biz_harlem_grocer", Name: "Harlem Community Grocer", Category: "grocery", Currency: "USD", Active: true},
		{ID: "biz_soul_kitchen", Name: "Soul Kitchen", Category: "restaurant", Currency: "USD", Active: true},
		{ID: "biz_heritage_books", Name: "Heritage Books", Category: "retail", Currency: "USD", Active: true},
		{ID: "biz_equity_fund", Name: "Equity Education Fund", Category: "education", Currency: "USD", Nonprofit: true, Active: true},
		{ID: "biz_community_land", Name: "Community Land Trust", Category: "housing", Currency: "USD", Nonprofit: true, Active: true},
		{ID: "biz_closed_cafe", Name: "Closed Cafe", Category: "restaurant", Currency: "USD", Active: false},
	}
	return pricing.DefaultCatalog(baseRate), businesses
}

// SeedWallets returns the demo user's wallet set: an active cash wallet, a
// rewards wallet, a card with a held amount, and edge cases exercised by the
// eligibility filter.
func SeedWallets() map[string][]domain.Wallet {
	return map[string][]domain.Wallet{
		DemoUserID: {
			{ID: "wal_cash", Kind: domain.WalletKindCash, Currency: "USD", Balance: 250_000, IsActive: true, IsDefault: true},
			{ID: "wal_rewards", Kind: domain.WalletKindRewards, Currency: "USD", Balance: 4_200, IsActive: true},
			{ID: "wal_card", Kind: domain.WalletKindCard, Currency: "USD", Balance: 100_000, AvailableBalance: int64Ptr(60_000), IsActive: true, IsBackup: true},
			{ID: "wal_frozen_bank", Kind: domain.WalletKindBank, Currency: "USD", Balance: 500_000, IsActive: false},
			{ID: "wal_euro_card", Kind: domain.WalletKindCard, Currency: "EUR", Balance: 80_000, IsActive: true},
			{ID: "wal_gift", Kind: domain.WalletKindGiftCard, Currency: "USD", Balance: 1_500, IsActive: true},
		},
	}
}
