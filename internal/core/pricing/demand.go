package pricing

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/port"
)

// DemandRule raises the price by Hike (a fraction) for every Threshold price
// lookups seen inside the demand window.
type DemandRule struct {
	Threshold int
	Hike      decimal.Decimal
}

// DemandHistory is the sliding record of lookup timestamps for one ingredient.
type DemandHistory struct {
	mu     sync.Mutex
	stamps []int64
}

// Record prunes stamps older than now-window, appends now and returns the
// number of stamps left in the window.
func (h *DemandHistory) Record(now, window int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prune(now - window)
	h.stamps = append(h.stamps, now)
	return len(h.stamps)
}

// Count returns the number of stamps inside the window without recording.
func (h *DemandHistory) Count(now, window int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prune(now - window)
	return len(h.stamps)
}

func (h *DemandHistory) prune(cutoff int64) {
	kept := h.stamps[:0]
	for _, ts := range h.stamps {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	h.stamps = kept
}

// DemandBased inflates prices of ingredients that are looked up often. Every
// call to Price counts as demand, including lookups made on behalf of a buy
// without a prior quote.
type DemandBased struct {
	next   Strategy
	clock  port.Clock
	window int64
	rules  map[string]DemandRule

	mu      sync.Mutex
	history map[string]*DemandHistory
}

func NewDemandBased(next Strategy, clock port.Clock, window int64, rules map[string]DemandRule) *DemandBased {
	return &DemandBased{
		next:    next,
		clock:   clock,
		window:  window,
		rules:   rules,
		history: make(map[string]*DemandHistory),
	}
}

func (d *DemandBased) Price(ingredientID string, quantity decimal.Decimal) (Price, bool) {
	p, ok := d.next.Price(ingredientID, quantity)
	if !ok {
		return Price{}, false
	}

	recent := d.historyFor(ingredientID).Record(d.clock.Now(), d.window)

	rule, ok := d.rules[ingredientID]
	if !ok || rule.Threshold <= 0 || recent < rule.Threshold {
		return p, true
	}

	hikes := recent / rule.Threshold
	p.UnitPrice = domain.RoundPrice(p.UnitPrice.Mul(Multiplier(rule.Hike, hikes)))
	return p, true
}

// RecentDemand returns how many lookups of ingredientID are inside the window.
func (d *DemandBased) RecentDemand(ingredientID string) int {
	return d.historyFor(ingredientID).Count(d.clock.Now(), d.window)
}

func (d *DemandBased) historyFor(ingredientID string) *DemandHistory {
	d.mu.Lock()
	defer d.mu.Unlock()

	h, ok := d.history[ingredientID]
	if !ok {
		h = &DemandHistory{}
		d.history[ingredientID] = h
	}
	return h
}

// Multiplier returns (1+hike)^hikes.
func Multiplier(hike decimal.Decimal, hikes int) decimal.Decimal {
	step := decimal.NewFromInt(1).Add(hike)
	m := decimal.NewFromInt(1)
	for i := 0; i < hikes; i++ {
		m = m.Mul(step)
	}
	return m
}
