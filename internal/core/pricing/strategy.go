// Package pricing computes unit prices through a chain of strategies. Each
// strategy holds the next one and adjusts the price it returns:
//
//	DemandBased -> VolumeDiscount -> Base
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/port"
)

// QuoteLifetime is how long a computed price stays valid, in clock units.
const QuoteLifetime int64 = 24

type Price struct {
	UnitPrice  decimal.Decimal
	ValidUntil int64
}

// Strategy prices a quantity of an ingredient. ok is false when the
// ingredient is unknown.
type Strategy interface {
	Price(ingredientID string, quantity decimal.Decimal) (p Price, ok bool)
}

// Config holds the market parameters for the standard chain.
type Config struct {
	Tiers        map[string][]Tier
	DemandWindow int64
	DemandRules  map[string]DemandRule
}

// NewChain wires Base -> VolumeDiscount -> DemandBased over catalog.
func NewChain(catalog *domain.Catalog, clock port.Clock, cfg Config) *DemandBased {
	base := NewBase(catalog, clock)
	volume := NewVolumeDiscount(base, cfg.Tiers)
	return NewDemandBased(volume, clock, cfg.DemandWindow, cfg.DemandRules)
}
