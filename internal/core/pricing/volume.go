package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

// Tier grants Discount (a fraction, 0.10 = 10% off) from MinQuantity upwards.
type Tier struct {
	MinQuantity decimal.Decimal
	Discount    decimal.Decimal
}

// VolumeDiscount applies the highest tier the requested quantity qualifies
// for. Tier lists must be sorted by MinQuantity ascending.
type VolumeDiscount struct {
	next  Strategy
	tiers map[string][]Tier
}

func NewVolumeDiscount(next Strategy, tiers map[string][]Tier) *VolumeDiscount {
	return &VolumeDiscount{next: next, tiers: tiers}
}

func (v *VolumeDiscount) Price(ingredientID string, quantity decimal.Decimal) (Price, bool) {
	p, ok := v.next.Price(ingredientID, quantity)
	if !ok {
		return Price{}, false
	}

	discount := v.Discount(ingredientID, quantity)
	if discount.IsZero() {
		return p, true
	}

	p.UnitPrice = domain.RoundPrice(p.UnitPrice.Mul(decimal.NewFromInt(1).Sub(discount)))
	return p, true
}

// Discount returns the fraction taken off for quantity.
func (v *VolumeDiscount) Discount(ingredientID string, quantity decimal.Decimal) decimal.Decimal {
	applied := decimal.Zero
	for _, t := range v.tiers[ingredientID] {
		if quantity.LessThan(t.MinQuantity) {
			break
		}
		applied = t.Discount
	}
	return applied
}
