package memory

import (
	"context"
	"strings"
	"sync"

	domain "github.com/blkd-app/wallet-api/internal/domain"
)

// WalletRepository is an in-memory wallet store keyed by user id. Wallet order
// is preserved exactly as seeded because downstream filtering relies on it.
type WalletRepository struct {
	mu      sync.RWMutex
	wallets map[string][]domain.Wallet
}

// NewWalletRepository builds a wallet store over the supplied seed data.
func NewWalletRepository(walletsByUser map[string][]domain.Wallet) *WalletRepository {
	store := make(map[string][]domain.Wallet, len(walletsByUser))
	for userID, ws := range walletsByUser {
		cloned := make([]domain.Wallet, len(ws))
		copy(cloned, ws)
		store[strings.TrimSpace(userID)] = cloned
	}
	return &WalletRepository{wallets: store}
}

// ListWallets returns the user's wallets in seeded order.
func (r *WalletRepository) ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.wallets[strings.TrimSpace(userID)]
	if !ok {
		return nil, notFoundError("wallets.ListWallets", "user %q has no wallets", userID)
	}
	out := make([]domain.Wallet, len(ws))
	copy(out, ws)
	return out, nil
}

// RewardsBalance sums the balances of the user's active rewards wallets.
func (r *WalletRepository) RewardsBalance(ctx context.Context, userID string) (int64, error) {
	ws, err := r.ListWallets(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, w := range ws {
		if w.Kind == domain.WalletKindRewards && w.IsActive && w.Balance > 0 {
			total += w.Balance
		}
	}
	return total, nil
}

// Credit adds the amount to the user's first active wallet of the given kind.
// Top-up settlements call this after the ledger accepts the submission.
func (r *WalletRepository) Credit(ctx context.Context, userID string, kind domain.WalletKind, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount <= 0 {
		return conflictError("wallets.Credit", "credit amount must be positive, got %d", amount)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.wallets[strings.TrimSpace(userID)]
	if !ok {
		return notFoundError("wallets.Credit", "user %q has no wallets", userID)
	}
	for i := range ws {
		if ws[i].Kind == kind && ws[i].IsActive {
			ws[i].Balance += amount
			if ws[i].AvailableBalance != nil {
				next := *ws[i].AvailableBalance + amount
				ws[i].AvailableBalance = &next
			}
			return nil
		}
	}
	return notFoundError("wallets.Credit", "user %q has no active %s wallet", userID, kind)
}
