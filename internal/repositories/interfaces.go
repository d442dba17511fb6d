package repositories

import (
	"context"

	"github.com/blkd-app/wallet-api/internal/checkout"
	domain "github.com/blkd-app/wallet-api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository serves the read-only purchase catalog: preset tiers and
// payable businesses.
type CatalogRepository interface {
	ListTiers(ctx context.Context) ([]domain.PricingTier, error)
	GetTier(ctx context.Context, tierID string) (domain.PricingTier, error)
	ListBusinesses(ctx context.Context, nonprofitOnly bool) ([]domain.Business, error)
	GetBusiness(ctx context.Context, businessID string) (domain.Business, error)
}

// WalletRepository serves wallet snapshots for a user. Implementations return
// wallets in a stable user-defined order; eligibility filtering preserves it.
type WalletRepository interface {
	ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error)
	RewardsBalance(ctx context.Context, userID string) (int64, error)
}

// SessionRepository persists checkout sessions keyed by session id. Sessions
// are single-writer entities; implementations need not coordinate concurrent
// mutation of one session.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*checkout.Session, error)
	Save(ctx context.Context, session *checkout.Session) error
	Delete(ctx context.Context, sessionID string) error
}
