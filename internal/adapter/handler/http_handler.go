package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/service"
)

const maxRationaleLength = 1000

type HTTPHandler struct {
	market *service.TradingService
	// resetEnabled guards POST /reset-database; it is off for the in-memory
	// order store.
	resetEnabled bool
	logger       *zap.Logger
}

func NewHTTPHandler(market *service.TradingService, resetEnabled bool, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{market: market, resetEnabled: resetEnabled, logger: logger}
}

// Routes registers every market endpoint on a new chi router.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogging(h.logger))

	r.Get("/health", h.HealthCheck)
	r.Get("/ingredients", h.ListIngredients)
	r.Get("/stock/{ingredient_id}", h.GetStock)

	r.Post("/quote", h.Quote)
	r.Post("/negotiate", h.Negotiate)
	r.Post("/buy", h.Buy)

	r.Get("/order/{order_id}", h.GetOrder)
	r.Get("/orders/business/{business_id}", h.GetOrdersByBusiness)
	r.Post("/reset-database", h.ResetDatabase)

	return r
}

func (h *HTTPHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.IngredientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "ingredient_id is required")
		return
	}

	q, err := h.market.Quote(r.Context(), req.IngredientID, decimal.NewFromFloat(req.Quantity))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *HTTPHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	var req NegotiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.QuoteID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "quote_id is required")
		return
	}
	rationale := strings.TrimSpace(req.Rationale)
	if rationale == "" || len(rationale) > maxRationaleLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "rationale must be between 1 and 1000 characters")
		return
	}

	outcome, err := h.market.Negotiate(r.Context(), req.QuoteID, decimal.NewFromFloat(req.ProposedPricePerUnit), rationale)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNegotiateResponse(outcome))
}

// Buy always answers 200: rejected attempts are orders with a failure status.
func (h *HTTPHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	order := h.market.Buy(r.Context(), req.toService())
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.market.GetOrder(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrdersByBusiness(w http.ResponseWriter, r *http.Request) {
	orders, err := h.market.GetOrdersByBusiness(r.Context(), chi.URLParam(r, "business_id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingredient_id")
	stock, err := h.market.GetStock(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{IngredientID: id, StockAvailable: stock.InexactFloat64()})
}

func (h *HTTPHandler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	items := h.market.Ingredients()
	out := make([]IngredientResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toIngredientResponse(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if !h.resetEnabled {
		writeError(w, http.StatusBadRequest, "invalid_request", "Database is not enabled")
		return
	}
	if err := h.market.ResetOrders(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	status, code := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}

func httpStatus(err error) (int, string) {
	switch {
	case service.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrQuoteExpired):
		return http.StatusBadRequest, "quote_expired"
	case errors.Is(err, domain.ErrInvalidNegotiation):
		return http.StatusBadRequest, "invalid_offer"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, domain.ErrPricingFailure):
		return http.StatusInternalServerError, "pricing_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
