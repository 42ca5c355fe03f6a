package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/port"
)

// Base returns the catalog base price.
type Base struct {
	catalog *domain.Catalog
	clock   port.Clock
}

func NewBase(catalog *domain.Catalog, clock port.Clock) *Base {
	return &Base{catalog: catalog, clock: clock}
}

func (b *Base) Price(ingredientID string, _ decimal.Decimal) (Price, bool) {
	ing, ok := b.catalog.Get(ingredientID)
	if !ok {
		return Price{}, false
	}
	return Price{
		UnitPrice:  ing.BasePrice,
		ValidUntil: b.clock.Now() + QuoteLifetime,
	}, true
}
