package service

import (
	"sync"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/port"
)

// DefaultQuoteCleanupThreshold is the live entry count above which an insert
// triggers an expiry sweep.
const DefaultQuoteCleanupThreshold = 1000

type QuoteState int

const (
	QuoteStateQuoted QuoteState = iota + 1
	QuoteStateNegotiated
)

func (s QuoteState) String() string {
	switch s {
	case QuoteStateQuoted:
		return "quoted"
	case QuoteStateNegotiated:
		return "negotiated"
	}
	return "unknown"
}

// CachedQuote is one live quote. Exactly one of Quoted or Negotiated is set,
// selected by State.
type CachedQuote struct {
	State      QuoteState
	ExpiresAt  int64
	Quoted     *domain.PriceQuote
	Negotiated *domain.NegotiatedQuote
}

// Quote returns the price commitment currently held for the id.
func (c CachedQuote) Quote() domain.PriceQuote {
	if c.State == QuoteStateNegotiated {
		return c.Negotiated.PriceQuote
	}
	return *c.Quoted
}

func (c CachedQuote) UnitPrice() decimal.Decimal {
	return c.Quote().UnitPrice
}

func (c CachedQuote) Expired(now int64) bool {
	return now >= c.ExpiresAt
}

// expiryKey orders entries by expiry, then id.
type expiryKey struct {
	expiresAt int64
	quoteID   string
}

func expiryLess(a, b expiryKey) bool {
	if a.expiresAt != b.expiresAt {
		return a.expiresAt < b.expiresAt
	}
	return a.quoteID < b.quoteID
}

// QuoteCache holds outstanding quotes keyed by quote id.
type QuoteCache struct {
	clock     port.Clock
	threshold int

	mu      sync.Mutex
	entries map[string]CachedQuote
	expiry  *btree.BTreeG[expiryKey]
}

func NewQuoteCache(clock port.Clock, threshold int) *QuoteCache {
	if threshold <= 0 {
		threshold = DefaultQuoteCleanupThreshold
	}
	const degree = 32
	return &QuoteCache{
		clock:     clock,
		threshold: threshold,
		entries:   make(map[string]CachedQuote),
		expiry:    btree.NewG[expiryKey](degree, expiryLess),
	}
}

// Put stores a fresh quote. When the cache holds more than the threshold it
// sweeps expired entries and returns how many were evicted.
func (c *QuoteCache) Put(q domain.PriceQuote) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[q.ID]; ok {
		c.expiry.Delete(expiryKey{expiresAt: old.ExpiresAt, quoteID: q.ID})
	}
	c.entries[q.ID] = CachedQuote{
		State:     QuoteStateQuoted,
		ExpiresAt: q.ValidUntil,
		Quoted:    &q,
	}
	c.expiry.ReplaceOrInsert(expiryKey{expiresAt: q.ValidUntil, quoteID: q.ID})

	if len(c.entries) > c.threshold {
		return c.sweepLocked(c.clock.Now())
	}
	return 0
}

func (c *QuoteCache) Get(quoteID string) (CachedQuote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[quoteID]
	return e, ok
}

// ReplaceNegotiated swaps a quoted entry for its negotiated form. It fails
// when the id is not currently held in the quoted state.
func (c *QuoteCache) ReplaceNegotiated(nq domain.NegotiatedQuote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[nq.ID]
	if !ok || e.State != QuoteStateQuoted {
		return false
	}
	// expiry is inherited from the original so the index key is unchanged
	nq.ValidUntil = e.ExpiresAt
	c.entries[nq.ID] = CachedQuote{
		State:      QuoteStateNegotiated,
		ExpiresAt:  e.ExpiresAt,
		Negotiated: &nq,
	}
	return true
}

// Delete removes the id in whichever state it is held.
func (c *QuoteCache) Delete(quoteID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[quoteID]
	if !ok {
		return false
	}
	delete(c.entries, quoteID)
	c.expiry.Delete(expiryKey{expiresAt: e.ExpiresAt, quoteID: quoteID})
	return true
}

// Sweep removes every entry whose expiry has passed.
func (c *QuoteCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.clock.Now())
}

func (c *QuoteCache) sweepLocked(now int64) int {
	var expired []expiryKey
	c.expiry.Ascend(func(k expiryKey) bool {
		if k.expiresAt > now {
			return false
		}
		expired = append(expired, k)
		return true
	})
	for _, k := range expired {
		c.expiry.Delete(k)
		delete(c.entries, k.quoteID)
	}
	return len(expired)
}

func (c *QuoteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
