package memory

import (
	"context"
	"strings"
	"sync"

	domain "github.com/blkd-app/wallet-api/internal/domain"
)

// CatalogRepository is an in-memory catalog of tiers and businesses. Reads
// return copies so callers cannot mutate the seed data.
type CatalogRepository struct {
	mu         sync.RWMutex
	tiers      []domain.PricingTier
	businesses []domain.Business
}

// NewCatalogRepository builds a catalog over the supplied seed data.
func NewCatalogRepository(tiers []domain.PricingTier, businesses []domain.Business) *CatalogRepository {
	repo := &CatalogRepository{
		tiers:      make([]domain.PricingTier, len(tiers)),
		businesses: make([]domain.Business, len(businesses)),
	}
	copy(repo.tiers, tiers)
	copy(repo.businesses, businesses)
	return repo
}

// ListTiers returns all preset tiers in schedule order.
func (r *CatalogRepository) ListTiers(ctx context.Context) ([]domain.PricingTier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PricingTier, len(r.tiers))
	copy(out, r.tiers)
	return out, nil
}

// GetTier returns the tier with the given id.
func (r *CatalogRepository) GetTier(ctx context.Context, tierID string) (domain.PricingTier, error) {
	if err := ctx.Err(); err != nil {
		return domain.PricingTier{}, err
	}
	tierID = strings.TrimSpace(tierID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tier := range r.tiers {
		if tier.ID == tierID {
			return tier, nil
		}
	}
	return domain.PricingTier{}, notFoundError("catalog.GetTier", "tier %q not found", tierID)
}

// ListBusinesses returns active businesses, optionally restricted to nonprofits.
func (r *CatalogRepository) ListBusinesses(ctx context.Context, nonprofitOnly bool) ([]domain.Business, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Business, 0, len(r.businesses))
	for _, b := range r.businesses {
		if !b.Active {
			continue
		}
		if nonprofitOnly && !b.Nonprofit {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// GetBusiness returns the business with the given id.
func (r *CatalogRepository) GetBusiness(ctx context.Context, businessID string) (domain.Business, error) {
	if err := ctx.Err(); err != nil {
		return domain.Business{}, err
	}
	businessID = strings.TrimSpace(businessID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.businesses {
		if b.ID == businessID {
			return b, nil
		}
	}
	return domain.Business{}, notFoundError("catalog.GetBusiness", "business %q not found", businessID)
}
