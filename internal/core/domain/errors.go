package domain

import "errors"

// Sentinel errors returned by Quote and Negotiate. Buy converts the same
// conditions into order statuses instead of returning them.
var (
	ErrIngredientNotFound      = errors.New("ingredient not found")
	ErrInvalidQuantity         = errors.New("quantity must be positive with at most 3 decimal places")
	ErrPricingFailure          = errors.New("pricing failed")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrQuoteNotFound           = errors.New("quote not found")
	ErrQuoteExpired            = errors.New("quote expired")
	ErrQuoteIngredientMismatch = errors.New("quote ingredient mismatch")
	ErrPriceExceedsLimit       = errors.New("price exceeds limit")
	ErrStockRace               = errors.New("stock consumption failed")
	ErrInvalidNegotiation      = errors.New("proposed price must be lower than quoted price")
	ErrOrderNotFound           = errors.New("order not found")
)
