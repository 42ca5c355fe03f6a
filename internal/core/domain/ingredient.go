package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Ingredient is an immutable catalog fact. Stock is the opening balance the
// inventory ledger is seeded with; live stock is owned by the ledger.
type Ingredient struct {
	ID            string
	Name          string
	Description   string
	UnitOfMeasure string
	Currency      string
	BasePrice     decimal.Decimal
	ShelfLife     int64 // time units after delivery the item stays usable
	Stock         decimal.Decimal
}

// Catalog maps ingredient ids to their definitions. It is built once at
// startup and shared read-only.
type Catalog struct {
	items map[string]Ingredient
}

func NewCatalog(items ...Ingredient) *Catalog {
	c := &Catalog{items: make(map[string]Ingredient, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *Catalog) Get(id string) (Ingredient, bool) {
	it, ok := c.items[id]
	return it, ok
}

// List returns every definition ordered by id.
func (c *Catalog) List() []Ingredient {
	out := make([]Ingredient, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
