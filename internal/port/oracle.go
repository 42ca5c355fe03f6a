package port

import (
	"context"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

// NegotiationOracle decides counter-offers. Implementations may be remote and
// slow; callers bound them with a deadline and fall back on any error.
type NegotiationOracle interface {
	Decide(ctx context.Context, nctx domain.NegotiationContext) (domain.Decision, error)
}
