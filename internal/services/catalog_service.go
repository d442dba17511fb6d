package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/pricing"
	"github.com/blkd-app/wallet-api/internal/repositories"
	"github.com/blkd-app/wallet-api/internal/wallets"
)

// ErrCatalogUnavailable indicates catalog dependencies are currently unavailable.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// CatalogServiceDeps wires the dependencies required by the catalog service.
type CatalogServiceDeps struct {
	Catalog  repositories.CatalogRepository
	Wallets  repositories.WalletRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
	BaseRate int64
}

type catalogService struct {
	catalog  repositories.CatalogRepository
	wallets  repositories.WalletRepository
	logger   func(ctx context.Context, event string, fields map[string]any)
	baseRate int64
}

// NewCatalogService constructs a CatalogService validating required dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	if deps.Wallets == nil {
		return nil, errors.New("catalog service: wallet repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	baseRate := deps.BaseRate
	if baseRate <= 0 {
		baseRate = pricing.DefaultBaseRate
	}
	return &catalogService{
		catalog:  deps.Catalog,
		wallets:  deps.Wallets,
		logger:   logger,
		baseRate: baseRate,
	}, nil
}

// ListTiers returns the preset tier catalog in schedule order.
func (s *catalogService) ListTiers(ctx context.Context) ([]domain.PricingTier, error) {
	tiers, err := s.catalog.ListTiers(ctx)
	if err != nil {
		return nil, s.translate(ctx, "catalog.tier_list_failed", err)
	}
	return tiers, nil
}

// QuoteQuantity prices an arbitrary quantity through the discount schedule.
func (s *catalogService) QuoteQuantity(ctx context.Context, quantity float64) (domain.PricingTier, error) {
	tiers, err := s.catalog.ListTiers(ctx)
	if err != nil {
		return domain.PricingTier{}, s.translate(ctx, "catalog.tier_list_failed", err)
	}
	return pricing.ResolveTier(quantity, tiers, s.baseRate)
}

// ListBusinesses returns active businesses, optionally nonprofits only.
func (s *catalogService) ListBusinesses(ctx context.Context, nonprofitOnly bool) ([]domain.Business, error) {
	businesses, err := s.catalog.ListBusinesses(ctx, nonprofitOnly)
	if err != nil {
		return nil, s.translate(ctx, "catalog.business_list_failed", err)
	}
	return businesses, nil
}

// ListInstruments returns the user's wallets annotated with eligibility
// verdicts for the given currency and required amount, in wallet order.
func (s *catalogService) ListInstruments(ctx context.Context, query InstrumentQuery) ([]wallets.Assessment, error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	ws, err := s.wallets.ListWallets(ctx, userID)
	if err != nil {
		return nil, s.translate(ctx, "catalog.wallet_load_failed", err)
	}
	return wallets.Inspect(wallets.Normalize(ws), query.Currency, query.Required), nil
}

func (s *catalogService) translate(ctx context.Context, event string, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrCheckoutNotFound, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}
