package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/port"
)

// DefaultOracleTimeout bounds a single oracle decision.
const DefaultOracleTimeout = 5 * time.Second

var (
	fallbackTolerance = decimal.RequireFromString("0.10")
	errNoOracle       = errors.New("no negotiation oracle configured")
)

// Negotiator validates counter-offers against live quotes and resolves them
// through the oracle, falling back to a fixed rule.
type Negotiator struct {
	catalog *domain.Catalog
	quotes  *QuoteCache
	clock   port.Clock
	oracle  port.NegotiationOracle
	timeout time.Duration
	logger  *zap.Logger
}

func NewNegotiator(
	catalog *domain.Catalog,
	quotes *QuoteCache,
	clock port.Clock,
	oracle port.NegotiationOracle,
	timeout time.Duration,
	logger *zap.Logger,
) *Negotiator {
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	return &Negotiator{
		catalog: catalog,
		quotes:  quotes,
		clock:   clock,
		oracle:  oracle,
		timeout: timeout,
		logger:  logger,
	}
}

// Negotiate asks for a lower unit price on an unnegotiated quote. When the
// resolved price is below the quoted one the cached quote is replaced by its
// negotiated form; otherwise the original stays usable as is.
func (n *Negotiator) Negotiate(ctx context.Context, quoteID string, proposed decimal.Decimal, rationale string) (domain.NegotiationOutcome, error) {
	cached, ok := n.quotes.Get(quoteID)
	if !ok || cached.State != QuoteStateQuoted {
		return domain.NegotiationOutcome{}, domain.ErrQuoteNotFound
	}

	now := n.clock.Now()
	if cached.Expired(now) {
		return domain.NegotiationOutcome{}, domain.ErrQuoteExpired
	}

	original := *cached.Quoted
	if !proposed.IsPositive() || proposed.GreaterThanOrEqual(original.UnitPrice) {
		return domain.NegotiationOutcome{}, fmt.Errorf("%w: proposed %s, quoted %s",
			domain.ErrInvalidNegotiation, proposed.StringFixed(domain.CurrencyPlaces), original.UnitPrice.StringFixed(domain.CurrencyPlaces))
	}

	ing, ok := n.catalog.Get(original.IngredientID)
	if !ok {
		return domain.NegotiationOutcome{}, domain.ErrIngredientNotFound
	}

	nctx := domain.NegotiationContext{
		Quote:         original,
		BasePrice:     ing.BasePrice,
		ProposedPrice: proposed,
		Rationale:     rationale,
		Now:           now,
	}
	decision, source := n.resolve(ctx, nctx)

	final := domain.RoundPrice(decision.FinalUnitPrice)
	if !decision.Accepted || final.GreaterThan(original.UnitPrice) {
		final = original.UnitPrice
	}

	outcome := domain.NegotiationOutcome{
		OriginalQuote: original,
		ProposedPrice: proposed,
		FinalPrice:    final,
		Accepted:      decision.Accepted,
		Rationale:     decision.Rationale,
		Source:        source,
	}

	if final.LessThan(original.UnitPrice) {
		nq := negotiatedQuote(original, final, now, decision.Rationale)
		if n.quotes.ReplaceNegotiated(nq) {
			outcome.NewQuote = &nq
		} else {
			// the quote was evicted between lookup and replacement
			outcome.Accepted = false
			outcome.FinalPrice = original.UnitPrice
		}
	} else {
		outcome.Accepted = false
	}

	n.logger.Info("negotiation resolved",
		zap.String("quote_id", quoteID),
		zap.String("source", string(source)),
		zap.Bool("accepted", outcome.Accepted),
		zap.String("proposed", proposed.StringFixed(domain.CurrencyPlaces)),
		zap.String("final", outcome.FinalPrice.StringFixed(domain.CurrencyPlaces)),
	)
	return outcome, nil
}

// resolve consults the oracle under a deadline and falls back on any failure.
func (n *Negotiator) resolve(ctx context.Context, nctx domain.NegotiationContext) (domain.Decision, domain.DecisionSource) {
	decision, err := n.askOracle(ctx, nctx)
	if err != nil {
		n.logger.Warn("negotiation oracle unavailable, using fallback rule",
			zap.String("quote_id", nctx.Quote.ID),
			zap.Error(err),
		)
		return FallbackDecision(nctx), domain.DecisionSourceFallback
	}
	return decision, domain.DecisionSourceOracle
}

func (n *Negotiator) askOracle(ctx context.Context, nctx domain.NegotiationContext) (domain.Decision, error) {
	if n.oracle == nil {
		return domain.Decision{}, errNoOracle
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	type result struct {
		decision domain.Decision
		err      error
	}
	done := make(chan result, 1)
	go func() {
		d, err := n.oracle.Decide(ctx, nctx)
		done <- result{decision: d, err: err}
	}()

	select {
	case <-ctx.Done():
		return domain.Decision{}, fmt.Errorf("oracle: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return domain.Decision{}, fmt.Errorf("oracle: %w", res.err)
		}
		if res.decision.Accepted && !res.decision.FinalUnitPrice.IsPositive() {
			return domain.Decision{}, fmt.Errorf("oracle: non-positive final price %s", res.decision.FinalUnitPrice)
		}
		return res.decision, nil
	}
}

// FallbackDecision accepts the proposed price when it is at or above the
// ingredient's base price and no more than 10% below the quoted price.
func FallbackDecision(nctx domain.NegotiationContext) domain.Decision {
	current := nctx.Quote.UnitPrice
	proposed := nctx.ProposedPrice
	floor := current.Sub(current.Mul(fallbackTolerance))

	switch {
	case proposed.LessThan(nctx.BasePrice):
		return domain.Decision{
			FinalUnitPrice: current,
			Accepted:       false,
			Rationale: fmt.Sprintf("Offer %s is below the base price %s; holding %s.",
				proposed.StringFixed(2), nctx.BasePrice.StringFixed(2), current.StringFixed(2)),
		}
	case proposed.LessThan(floor):
		return domain.Decision{
			FinalUnitPrice: current,
			Accepted:       false,
			Rationale: fmt.Sprintf("Offer %s is more than 10%% below the quoted %s; holding %s.",
				proposed.StringFixed(2), current.StringFixed(2), current.StringFixed(2)),
		}
	default:
		return domain.Decision{
			FinalUnitPrice: proposed,
			Accepted:       true,
			Rationale:      fmt.Sprintf("Offer %s accepted.", proposed.StringFixed(2)),
		}
	}
}

func negotiatedQuote(original domain.PriceQuote, final decimal.Decimal, now int64, rationale string) domain.NegotiatedQuote {
	revised := original
	revised.UnitPrice = final
	revised.TotalPrice = domain.LineTotal(final, originalQuantity(original))
	return domain.NegotiatedQuote{
		PriceQuote:    revised,
		OriginalPrice: original.UnitPrice,
		NegotiatedAt:  now,
		Rationale:     rationale,
	}
}

// originalQuantity recovers the quoted quantity, deriving it from the totals
// for quotes that do not carry it.
func originalQuantity(q domain.PriceQuote) decimal.Decimal {
	if q.Quantity.IsPositive() || q.UnitPrice.IsZero() {
		return q.Quantity
	}
	return q.TotalPrice.Div(q.UnitPrice)
}
