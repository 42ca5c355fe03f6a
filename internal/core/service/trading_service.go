package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/pricing"
	"github.com/rl1809/ingredient-market/internal/port"
)

const (
	// ExpectedDeliveryLead is the time between a confirmed buy and delivery.
	ExpectedDeliveryLead int64 = 24
	// QuoteDeliveryTime is the delivery estimate carried on quotes.
	QuoteDeliveryTime int64 = 24

	tracerName = "github.com/rl1809/ingredient-market/internal/core/service"
)

// Dependencies are the collaborators a TradingService is built on.
type Dependencies struct {
	Catalog   *domain.Catalog
	Pricer    pricing.Strategy
	Inventory port.InventoryLedger
	Orders    port.OrderRepository
	Clock     port.Clock
	Oracle    port.NegotiationOracle // nil means fallback rule only
}

// Options tune a TradingService. Zero values select defaults.
type Options struct {
	QuoteCleanupThreshold int
	OracleTimeout         time.Duration
	AuditQueueSize        int
	Logger                *zap.Logger
}

// BuyRequest is a purchase attempt. Either QuoteID or IngredientID must be set.
type BuyRequest struct {
	QuoteID      string
	IngredientID string
	Quantity     decimal.Decimal
	MaxUnitPrice *decimal.Decimal
	BusinessID   string
}

// TradingService turns quote requests into price commitments and buy
// requests into orders.
type TradingService struct {
	catalog    *domain.Catalog
	pricer     pricing.Strategy
	inventory  port.InventoryLedger
	orders     port.OrderRepository
	clock      port.Clock
	quotes     *QuoteCache
	negotiator *Negotiator
	locks      idLock
	logger     *zap.Logger
	tracer     trace.Tracer

	auditMu     sync.RWMutex
	auditClosed bool
	auditQueue  chan domain.Order
}

func NewTradingService(deps Dependencies, opts Options) *TradingService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := opts.AuditQueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	quotes := NewQuoteCache(deps.Clock, opts.QuoteCleanupThreshold)
	return &TradingService{
		catalog:    deps.Catalog,
		pricer:     deps.Pricer,
		inventory:  deps.Inventory,
		orders:     deps.Orders,
		clock:      deps.Clock,
		quotes:     quotes,
		negotiator: NewNegotiator(deps.Catalog, quotes, deps.Clock, deps.Oracle, opts.OracleTimeout, logger),
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		auditQueue: make(chan domain.Order, queueSize),
	}
}

// Quote prices quantity of an ingredient and stores the commitment. Stock is
// checked but not reserved.
func (s *TradingService) Quote(ctx context.Context, ingredientID string, quantity decimal.Decimal) (domain.PriceQuote, error) {
	ctx, span := s.tracer.Start(ctx, "TradingService.Quote", trace.WithAttributes(
		attribute.String("ingredient.id", ingredientID),
		attribute.String("quantity", quantity.String()),
	))
	defer span.End()

	q, err := s.quote(ctx, ingredientID, quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Info("quote rejected", zap.String("ingredient_id", ingredientID), zap.Error(err))
		return domain.PriceQuote{}, err
	}
	span.SetAttributes(attribute.String("quote.id", q.ID))
	return q, nil
}

func (s *TradingService) quote(ctx context.Context, ingredientID string, quantity decimal.Decimal) (domain.PriceQuote, error) {
	ing, ok := s.catalog.Get(ingredientID)
	if !ok {
		return domain.PriceQuote{}, domain.ErrIngredientNotFound
	}
	if !domain.ValidQuantity(quantity) {
		return domain.PriceQuote{}, domain.ErrInvalidQuantity
	}

	price, ok := s.pricer.Price(ingredientID, quantity)
	if !ok {
		return domain.PriceQuote{}, domain.ErrPricingFailure
	}

	stock, ok, err := s.inventory.GetStock(ctx, ingredientID)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("read stock: %w", err)
	}
	if !ok {
		return domain.PriceQuote{}, domain.ErrIngredientNotFound
	}
	if stock.LessThan(quantity) {
		return domain.PriceQuote{}, fmt.Errorf("%w: available %s", domain.ErrInsufficientStock, stock)
	}

	q := domain.PriceQuote{
		ID:             uuid.New().String(),
		IngredientID:   ing.ID,
		Name:           ing.Name,
		Description:    ing.Description,
		UnitOfMeasure:  ing.UnitOfMeasure,
		Currency:       ing.Currency,
		Quantity:       quantity,
		UnitPrice:      price.UnitPrice,
		TotalPrice:     domain.LineTotal(price.UnitPrice, quantity),
		AvailableStock: stock,
		ShelfLife:      ing.ShelfLife,
		ValidUntil:     price.ValidUntil,
		DeliveryTime:   QuoteDeliveryTime,
	}

	if evicted := s.quotes.Put(q); evicted > 0 {
		s.logger.Debug("swept expired quotes", zap.Int("evicted", evicted))
	}
	s.logger.Info("quote issued",
		zap.String("quote_id", q.ID),
		zap.String("ingredient_id", q.IngredientID),
		zap.String("unit_price", q.UnitPrice.StringFixed(domain.CurrencyPlaces)),
		zap.Int64("valid_until", q.ValidUntil),
	)
	return q, nil
}

// Negotiate asks for a lower price on a live quote. Work on the quote id is
// serialized with buys referencing the same id.
func (s *TradingService) Negotiate(ctx context.Context, quoteID string, proposed decimal.Decimal, rationale string) (domain.NegotiationOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "TradingService.Negotiate", trace.WithAttributes(
		attribute.String("quote.id", quoteID),
		attribute.String("proposed", proposed.String()),
	))
	defer span.End()

	unlock := s.locks.Lock(quoteID)
	defer unlock()

	outcome, err := s.negotiator.Negotiate(ctx, quoteID, proposed, rationale)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.NegotiationOutcome{}, err
	}
	span.SetAttributes(
		attribute.Bool("negotiation.accepted", outcome.Accepted),
		attribute.String("negotiation.source", string(outcome.Source)),
	)
	return outcome, nil
}

// Buy attempts a purchase. It never fails: every outcome, including
// rejected requests, is returned as an order carrying its status.
func (s *TradingService) Buy(ctx context.Context, req BuyRequest) domain.Order {
	ctx, span := s.tracer.Start(ctx, "TradingService.Buy", trace.WithAttributes(
		attribute.String("quote.id", req.QuoteID),
		attribute.String("ingredient.id", req.IngredientID),
		attribute.String("quantity", req.Quantity.String()),
	))
	defer span.End()

	order := s.buy(ctx, req)

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
	)
	if !order.Status.Confirmed() {
		span.SetStatus(codes.Error, order.FailureReason)
	}
	s.logger.Info("buy completed",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("quote_id", order.QuoteID),
		zap.String("ingredient_id", order.Item.IngredientID),
		zap.String("total_cost", order.TotalCost.StringFixed(domain.CurrencyPlaces)),
		zap.String("failure_reason", order.FailureReason),
	)
	s.enqueueAudit(order)
	return order
}

func (s *TradingService) buy(ctx context.Context, req BuyRequest) domain.Order {
	now := s.clock.Now()

	if req.QuoteID == "" && req.IngredientID == "" {
		return s.failedOrder(req, "", now, now, domain.OrderStatusInvalidRequest,
			"Neither quote_id nor ingredient_id provided.")
	}
	if !req.Quantity.IsPositive() {
		return s.failedOrder(req, req.IngredientID, now, now, domain.OrderStatusInvalidRequest,
			"Quantity must be positive.")
	}
	if !domain.ValidQuantity(req.Quantity) {
		return s.failedOrder(req, req.IngredientID, now, now, domain.OrderStatusInvalidRequest,
			fmt.Sprintf("Quantity must have at most %d decimal places.", domain.QuantityPlaces))
	}

	var (
		cached    CachedQuote
		haveQuote bool
	)
	if req.QuoteID != "" {
		unlock := s.locks.Lock(req.QuoteID)
		defer unlock()
		// the clock may have moved while waiting for the lock
		now = s.clock.Now()
		cached, haveQuote = s.quotes.Get(req.QuoteID)
	}

	ingredientID := req.IngredientID
	if ingredientID == "" && haveQuote {
		ingredientID = cached.Quote().IngredientID
	}
	ing, ok := s.catalog.Get(ingredientID)
	if !ok {
		return s.failedOrder(req, ingredientID, now, now, domain.OrderStatusInvalidItem,
			fmt.Sprintf("Ingredient %s not found.", ingredientID))
	}

	var unitPrice decimal.Decimal
	if haveQuote {
		quoted := cached.Quote()
		if quoted.IngredientID != ingredientID {
			return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusIngredientMismatch,
				fmt.Sprintf("Ingredient in quote (%s) does not match requested ingredient (%s).", quoted.IngredientID, ingredientID))
		}
		if cached.Expired(now) {
			return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusQuoteExpired,
				"Quote has expired.")
		}
		unitPrice = quoted.UnitPrice
	} else {
		// unknown or consumed quote ids fall back to a fresh price
		price, ok := s.pricer.Price(ingredientID, req.Quantity)
		if !ok {
			return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusSystemError,
				"Could not compute price.")
		}
		unitPrice = price.UnitPrice
	}

	if req.MaxUnitPrice != nil && unitPrice.GreaterThan(*req.MaxUnitPrice) {
		return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusPriceTooHigh,
			fmt.Sprintf("Price %s > max acceptable %s", unitPrice.StringFixed(2), req.MaxUnitPrice.StringFixed(2)))
	}

	available, ok, err := s.inventory.GetStock(ctx, ingredientID)
	if err != nil {
		s.logger.Error("stock lookup failed", zap.String("ingredient_id", ingredientID), zap.Error(err))
		return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusSystemError,
			"Stock lookup failed.")
	}
	if !ok || available.LessThan(req.Quantity) {
		return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusNoStock,
			fmt.Sprintf("Insufficient stock. Available: %s", available.StringFixed(2)))
	}

	consumed, err := s.inventory.Consume(ctx, ingredientID, req.Quantity)
	if err != nil || !consumed {
		if err != nil {
			s.logger.Error("stock consumption failed", zap.String("ingredient_id", ingredientID), zap.Error(err))
		}
		return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusSystemError,
			"Race condition: stock consumption failed.")
	}

	order := domain.Order{
		ID:         uuid.New().String(),
		BusinessID: req.BusinessID,
		QuoteID:    req.QuoteID,
		Item: domain.OrderItem{
			IngredientID: ingredientID,
			Quantity:     req.Quantity,
			UnitPrice:    unitPrice,
			TotalPrice:   domain.LineTotal(unitPrice, req.Quantity),
			UseBy:        now + ing.ShelfLife,
		},
		PlacedAt:         now,
		ExpectedDelivery: now + ExpectedDeliveryLead,
		Status:           domain.OrderStatusConfirmed,
	}
	order.TotalCost = order.Item.TotalPrice

	if err := s.orders.SaveOrder(ctx, order); err != nil {
		s.logger.Error("failed to save order", zap.String("order_id", order.ID), zap.Error(err))

		// Rollback: return the consumed stock
		if rollbackErr := s.inventory.Restock(ctx, ingredientID, req.Quantity); rollbackErr != nil {
			s.logger.Error("CRITICAL rollback failed",
				zap.String("order_id", order.ID),
				zap.String("ingredient_id", ingredientID),
				zap.String("quantity", req.Quantity.String()),
				zap.Error(rollbackErr),
			)
		}
		return s.failedOrder(req, ingredientID, ing.ShelfLife, now, domain.OrderStatusSystemError,
			"Order could not be persisted.")
	}

	if req.QuoteID != "" {
		s.quotes.Delete(req.QuoteID)
	}
	return order
}

func (s *TradingService) failedOrder(req BuyRequest, ingredientID string, useBy, now int64, status domain.OrderStatus, reason string) domain.Order {
	return domain.Order{
		ID:         uuid.New().String(),
		BusinessID: req.BusinessID,
		QuoteID:    req.QuoteID,
		Item: domain.OrderItem{
			IngredientID: ingredientID,
			Quantity:     req.Quantity,
			UnitPrice:    decimal.Zero,
			TotalPrice:   decimal.Zero,
			UseBy:        useBy,
		},
		TotalCost:        decimal.Zero,
		PlacedAt:         now,
		ExpectedDelivery: now,
		Status:           status,
		FailureReason:    reason,
	}
}

func (s *TradingService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *order, nil
}

func (s *TradingService) GetOrdersByBusiness(ctx context.Context, businessID string) ([]domain.Order, error) {
	orders, err := s.orders.GetOrdersByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("get orders by business: %w", err)
	}
	return orders, nil
}

// GetStock returns the current stock of an ingredient.
func (s *TradingService) GetStock(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	if _, ok := s.catalog.Get(ingredientID); !ok {
		return decimal.Zero, domain.ErrIngredientNotFound
	}
	stock, ok, err := s.inventory.GetStock(ctx, ingredientID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read stock: %w", err)
	}
	if !ok {
		return decimal.Zero, domain.ErrIngredientNotFound
	}
	return stock, nil
}

func (s *TradingService) Ingredients() []domain.Ingredient {
	return s.catalog.List()
}

// ResetOrders drops every persisted order.
func (s *TradingService) ResetOrders(ctx context.Context) error {
	return s.orders.Reset(ctx)
}

// LookupQuote returns the live cache entry for a quote id.
func (s *TradingService) LookupQuote(quoteID string) (CachedQuote, bool) {
	return s.quotes.Get(quoteID)
}

func (s *TradingService) enqueueAudit(order domain.Order) {
	s.auditMu.RLock()
	defer s.auditMu.RUnlock()
	if s.auditClosed {
		return
	}

	select {
	case s.auditQueue <- order:
	default:
		s.logger.Warn("audit queue full, dropping order event", zap.String("order_id", order.ID))
	}
}

// GetAuditQueue exposes buy outcomes to the audit workers.
func (s *TradingService) GetAuditQueue() <-chan domain.Order {
	return s.auditQueue
}

// Close stops accepting audit events and closes the queue so workers drain
// and exit.
func (s *TradingService) Close() {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if s.auditClosed {
		return
	}
	s.auditClosed = true
	close(s.auditQueue)
}

// IsNotFound reports whether err means the requested entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrIngredientNotFound) ||
		errors.Is(err, domain.ErrQuoteNotFound) ||
		errors.Is(err, domain.ErrOrderNotFound)
}
