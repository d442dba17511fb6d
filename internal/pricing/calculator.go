package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/blkd-app/wallet-api/internal/domain"
)

var (
	// ErrInvalidQuantity signals a negative, non-finite, or otherwise malformed
	// quantity. Callers clamp or re-prompt; this is never fatal.
	ErrInvalidQuantity = errors.New("pricing: invalid quantity")
	// ErrUnknownTier is returned when a preset tier lookup misses the catalog.
	ErrUnknownTier = errors.New("pricing: unknown tier")
	// ErrInvalidCatalog indicates a malformed discount schedule.
	ErrInvalidCatalog = errors.New("pricing: invalid catalog")
)

// DefaultBaseRate is the undiscounted price of one BLKD unit in minor currency
// units (1 BLKD = 1.00).
const DefaultBaseRate int64 = 100

// Breakpoint pairs a bulk quantity threshold with its discount percentage.
type Breakpoint struct {
	Quantity        int64
	DiscountPercent float64
	Featured        bool
}

// defaultSchedule is the platform discount table. Quantities below the first
// threshold receive no discount.
var defaultSchedule = []Breakpoint{
	{Quantity: 100, DiscountPercent: 5},
	{Quantity: 250, DiscountPercent: 8},
	{Quantity: 500, DiscountPercent: 9},
	{Quantity: 1000, DiscountPercent: 11, Featured: true},
	{Quantity: 2500, DiscountPercent: 13},
	{Quantity: 5000, DiscountPercent: 15},
}

// DefaultCatalog builds the preset tier catalog from the platform schedule.
func DefaultCatalog(baseRate int64) []domain.PricingTier {
	catalog, err := NewCatalog(baseRate, defaultSchedule)
	if err != nil {
		// The default schedule is statically valid.
		panic(err)
	}
	return catalog
}

// NewCatalog derives immutable preset tiers from a discount schedule. The
// schedule must be ascending by quantity with non-decreasing discounts so tier
// resolution behaves as a step function.
func NewCatalog(baseRate int64, schedule []Breakpoint) ([]domain.PricingTier, error) {
	if baseRate <= 0 {
		return nil, fmt.Errorf("%w: base rate must be positive", ErrInvalidCatalog)
	}
	if len(schedule) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrInvalidCatalog)
	}

	catalog := make([]domain.PricingTier, 0, len(schedule))
	var prev Breakpoint
	for i, bp := range schedule {
		if bp.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive at index %d", ErrInvalidCatalog, i)
		}
		if bp.DiscountPercent < 0 || bp.DiscountPercent > 100 {
			return nil, fmt.Errorf("%w: discount out of range at index %d", ErrInvalidCatalog, i)
		}
		if i > 0 {
			if bp.Quantity <= prev.Quantity {
				return nil, fmt.Errorf("%w: quantities must ascend at index %d", ErrInvalidCatalog, i)
			}
			if bp.DiscountPercent < prev.DiscountPercent {
				return nil, fmt.Errorf("%w: discounts must not decrease at index %d", ErrInvalidCatalog, i)
			}
		}
		catalog = append(catalog, buildTier(bp, baseRate))
		prev = bp
	}
	return catalog, nil
}

// ResolveTier maps a requested quantity to its discounted price using the
// highest catalog threshold not exceeding the quantity. Quantities below the
// smallest threshold price at the base rate with no discount. The catalog is
// assumed ordered ascending by quantity, as NewCatalog guarantees.
func ResolveTier(quantity float64, catalog []domain.PricingTier, baseRate int64) (domain.PricingTier, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity < 0 {
		return domain.PricingTier{}, fmt.Errorf("%w: %v", ErrInvalidQuantity, quantity)
	}
	if baseRate <= 0 {
		return domain.PricingTier{}, fmt.Errorf("%w: base rate must be positive", ErrInvalidCatalog)
	}
	// The priced value must stay representable in int64 minor units.
	if quantity*float64(baseRate) >= float64(math.MaxInt64) {
		return domain.PricingTier{}, fmt.Errorf("%w: quantity %v exceeds the priceable range", ErrInvalidQuantity, quantity)
	}

	units := int64(math.Round(quantity))
	for _, tier := range catalog {
		if tier.Quantity == units && float64(tier.Quantity) == quantity {
			return tier, nil
		}
	}

	percent := 0.0
	for _, tier := range catalog {
		if float64(tier.Quantity) > quantity {
			break
		}
		percent = tier.DiscountPercent
	}

	unitPrice := int64(math.Round(quantity * float64(baseRate)))
	savings := roundPercent(unitPrice, percent)
	return domain.PricingTier{
		Quantity:        units,
		UnitPrice:       unitPrice,
		DiscountPercent: percent,
		Savings:         savings,
		FinalPrice:      unitPrice - savings,
	}, nil
}

// SelectPresetTier looks up a catalog entry by identifier.
func SelectPresetTier(id string, catalog []domain.PricingTier) (domain.PricingTier, error) {
	for _, tier := range catalog {
		if tier.ID == id {
			return tier, nil
		}
	}
	return domain.PricingTier{}, fmt.Errorf("%w: %s", ErrUnknownTier, id)
}

func buildTier(bp Breakpoint, baseRate int64) domain.PricingTier {
	unitPrice := bp.Quantity * baseRate
	savings := roundPercent(unitPrice, bp.DiscountPercent)
	return domain.PricingTier{
		ID:              fmt.Sprintf("tier_%d", bp.Quantity),
		Quantity:        bp.Quantity,
		UnitPrice:       unitPrice,
		DiscountPercent: bp.DiscountPercent,
		Savings:         savings,
		FinalPrice:      unitPrice - savings,
		Featured:        bp.Featured,
	}
}

// roundPercent applies a percentage to a minor-unit amount with standard
// rounding, which is the currency-precision rounding the ledger expects.
func roundPercent(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}
