package config

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/pricing"
)

const (
	OneDay   int64 = 24
	OneWeek        = OneDay * 7
	OneMonth       = OneWeek * 4

	DefaultDemandWindow int64 = 4
)

var unlimitedStock = decimal.NewFromInt(100000)

// Market is everything that defines what is traded and how it is priced.
type Market struct {
	Catalog *domain.Catalog
	Pricing pricing.Config
}

// DefaultMarket is the coffee-shop supply market.
func DefaultMarket() Market {
	return Market{
		Catalog: domain.NewCatalog(defaultIngredients()...),
		Pricing: pricing.Config{
			Tiers:        defaultTiers(),
			DemandWindow: DefaultDemandWindow,
			DemandRules:  defaultDemandRules(),
		},
	}
}

// WithDemandWindow returns a copy of m using window for demand pricing.
func (m Market) WithDemandWindow(window int64) Market {
	m.Pricing.DemandWindow = window
	return m
}

func ingredient(id, name, description, unit, price string, shelfLife int64) domain.Ingredient {
	return domain.Ingredient{
		ID:            id,
		Name:          name,
		Description:   description,
		UnitOfMeasure: unit,
		Currency:      "USD",
		BasePrice:     decimal.RequireFromString(price),
		ShelfLife:     shelfLife,
		Stock:         unlimitedStock,
	}
}

func defaultIngredients() []domain.Ingredient {
	return []domain.Ingredient{
		ingredient("espresso_beans", "Premium Espresso Coffee Beans",
			"High-quality arabica beans specifically roasted for espresso, with rich crema and balanced flavor profile.",
			"kg", "12.50", OneWeek),
		ingredient("dark_roast_beans", "Standard Robusta Dark Roast Coffee Beans",
			"Basic dark roast robusta beans, suitable for general use with bold, full-bodied flavor.",
			"kg", "8.00", OneWeek),
		ingredient("light_roast_beans", "Premium Robusta Light Roast Coffee Beans",
			"Premium light roast robusta beans, suitable for premium use with bright, acidic notes.",
			"kg", "10.00", OneWeek),
		ingredient("whole_milk", "Fresh Whole Milk",
			"Fresh whole milk with 3.25% fat content, perfect for lattes and cappuccinos.",
			"L", "2.50", OneDay*3),
		ingredient("almond_milk", "Unsweetened Almond Milk",
			"Creamy unsweetened almond milk, dairy-free alternative for specialty drinks.",
			"L", "4.00", OneDay*7),
		ingredient("cups", "Disposable Coffee Cups",
			"12oz disposable paper cups with lids, suitable for hot beverages.",
			"unit", "0.10", OneMonth),
		ingredient("fresh_fruit", "Assorted Fresh Fruit",
			"Seasonal fresh fruit selection including berries, citrus, and tropical fruits for smoothies and garnishes.",
			"kg", "7.00", OneDay*2),
		ingredient("pre_packaged_sandwiches", "Pre-packaged Gourmet Sandwiches",
			"Fresh pre-packaged sandwiches with premium ingredients, various fillings available.",
			"unit", "1.00", OneDay*3),
	}
}

func tiers(pairs ...[2]string) []pricing.Tier {
	out := make([]pricing.Tier, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, pricing.Tier{
			MinQuantity: decimal.RequireFromString(p[0]),
			Discount:    decimal.RequireFromString(p[1]),
		})
	}
	return out
}

func defaultTiers() map[string][]pricing.Tier {
	return map[string][]pricing.Tier{
		"espresso_beans":          tiers([2]string{"5", "0.08"}, [2]string{"15", "0.15"}, [2]string{"30", "0.25"}),
		"dark_roast_beans":        tiers([2]string{"10", "0.10"}, [2]string{"25", "0.20"}, [2]string{"50", "0.30"}),
		"light_roast_beans":       tiers([2]string{"10", "0.05"}, [2]string{"20", "0.15"}, [2]string{"40", "0.25"}),
		"whole_milk":              tiers([2]string{"20", "0.05"}, [2]string{"50", "0.12"}, [2]string{"100", "0.20"}),
		"almond_milk":             tiers([2]string{"15", "0.08"}, [2]string{"30", "0.15"}, [2]string{"60", "0.25"}),
		"cups":                    tiers([2]string{"5", "0.10"}, [2]string{"15", "0.20"}, [2]string{"30", "0.30"}),
		"fresh_fruit":             tiers([2]string{"10", "0.05"}, [2]string{"25", "0.12"}, [2]string{"50", "0.20"}),
		"pre_packaged_sandwiches": tiers([2]string{"20", "0.08"}, [2]string{"50", "0.15"}, [2]string{"100", "0.25"}),
	}
}

func defaultDemandRules() map[string]pricing.DemandRule {
	rule := func(threshold int, hike string) pricing.DemandRule {
		return pricing.DemandRule{Threshold: threshold, Hike: decimal.RequireFromString(hike)}
	}
	return map[string]pricing.DemandRule{
		"espresso_beans":          rule(3, "0.10"),
		"dark_roast_beans":        rule(5, "0.05"),
		"light_roast_beans":       rule(3, "0.08"),
		"whole_milk":              rule(8, "0.06"),
		"almond_milk":             rule(5, "0.08"),
		"cups":                    rule(10, "0.04"),
		"fresh_fruit":             rule(6, "0.12"),
		"pre_packaged_sandwiches": rule(15, "0.07"),
	}
}
