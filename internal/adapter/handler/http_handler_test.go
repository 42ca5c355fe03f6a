package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/adapter/clock"
	"github.com/rl1809/ingredient-market/internal/adapter/storage"
	"github.com/rl1809/ingredient-market/internal/config"
	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/pricing"
	"github.com/rl1809/ingredient-market/internal/core/service"
)

// acceptingOracle agrees to any counter-offer.
type acceptingOracle struct{}

func (acceptingOracle) Decide(_ context.Context, nctx domain.NegotiationContext) (domain.Decision, error) {
	return domain.Decision{FinalUnitPrice: nctx.ProposedPrice, Accepted: true, Rationale: "deal"}, nil
}

type marketFixture struct {
	clock  *clock.SimulationClock
	market *service.TradingService
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	market := config.DefaultMarket()
	c := clock.NewSimulationClock(0, zap.NewNop())
	svc := service.NewTradingService(service.Dependencies{
		Catalog:   market.Catalog,
		Pricer:    pricing.NewChain(market.Catalog, c, market.Pricing),
		Inventory: storage.NewMemoryInventory(market.Catalog),
		Orders:    storage.NewMemoryOrderRepository(),
		Clock:     c,
		Oracle:    acceptingOracle{},
	}, service.Options{Logger: zap.NewNop()})
	go func() {
		for range svc.GetAuditQueue() {
		}
	}()
	t.Cleanup(svc.Close)
	return &marketFixture{clock: c, market: svc}
}

func newHTTPServer(t *testing.T, resetEnabled bool) (*httptest.Server, *marketFixture) {
	t.Helper()
	f := newMarketFixture(t)
	srv := httptest.NewServer(NewHTTPHandler(f.market, resetEnabled, zap.NewNop()).Routes())
	t.Cleanup(srv.Close)
	return srv, f
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func TestHTTP_HealthAndCatalog(t *testing.T) {
	srv, _ := newHTTPServer(t, false)

	expectStatus(t, getURL(t, srv.URL+"/health"), http.StatusOK)

	resp := getURL(t, srv.URL+"/ingredients")
	expectStatus(t, resp, http.StatusOK)
	items := decodeBody[[]IngredientResponse](t, resp)
	if len(items) != 8 {
		t.Fatalf("expected 8 ingredients, got %d", len(items))
	}
	if items[0].IngredientID != "almond_milk" || items[0].BasePrice != 4.0 {
		t.Errorf("unexpected first ingredient %+v", items[0])
	}

	resp = getURL(t, srv.URL+"/stock/cups")
	expectStatus(t, resp, http.StatusOK)
	if s := decodeBody[StockResponse](t, resp); s.StockAvailable != 100000 {
		t.Errorf("expected 100000 cups, got %v", s.StockAvailable)
	}
	expectStatus(t, getURL(t, srv.URL+"/stock/caviar"), http.StatusNotFound)
}

func TestHTTP_Quote(t *testing.T) {
	srv, _ := newHTTPServer(t, false)

	resp := postJSON(t, srv.URL+"/quote", QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 5})
	expectStatus(t, resp, http.StatusOK)
	q := decodeBody[QuoteResponse](t, resp)
	if q.QuoteID == "" || q.PricePerUnit != 8.0 || q.TotalPrice != 40.0 {
		t.Errorf("unexpected quote %+v", q)
	}
	if q.UseByDate != config.OneWeek || q.PriceValidUntil != pricing.QuoteLifetime || q.Currency != "USD" {
		t.Errorf("unexpected quote terms %+v", q)
	}
}

func TestHTTP_QuoteErrors(t *testing.T) {
	srv, _ := newHTTPServer(t, false)

	cases := []struct {
		name string
		body any
		want int
		code string
	}{
		{"bad json", "{", http.StatusBadRequest, "invalid_request"},
		{"missing id", QuoteRequest{Quantity: 1}, http.StatusBadRequest, "invalid_request"},
		{"unknown ingredient", QuoteRequest{IngredientID: "caviar", Quantity: 1}, http.StatusNotFound, "not_found"},
		{"zero quantity", QuoteRequest{IngredientID: "cups"}, http.StatusBadRequest, "invalid_quantity"},
		{"finer than thousandths", QuoteRequest{IngredientID: "cups", Quantity: 1.0004}, http.StatusBadRequest, "invalid_quantity"},
		{"too much", QuoteRequest{IngredientID: "cups", Quantity: 200000}, http.StatusBadRequest, "insufficient_stock"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/quote", c.body)
			expectStatus(t, resp, c.want)
			if e := decodeBody[ErrorResponse](t, resp); e.Error != c.code {
				t.Errorf("expected error code %s, got %s", c.code, e.Error)
			}
		})
	}
}

func TestHTTP_Negotiate(t *testing.T) {
	srv, _ := newHTTPServer(t, false)
	q := decodeBody[QuoteResponse](t, postJSON(t, srv.URL+"/quote", QuoteRequest{IngredientID: "espresso_beans", Quantity: 2}))

	resp := postJSON(t, srv.URL+"/negotiate", NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 11.5, Rationale: "weekly order"})
	expectStatus(t, resp, http.StatusOK)
	n := decodeBody[NegotiateResponse](t, resp)
	if !n.Accepted || n.FinalPricePerUnit != 11.5 || n.DecisionSource != "oracle" || n.Rationale != "deal" {
		t.Errorf("unexpected negotiation %+v", n)
	}
	if n.NewQuote == nil || n.NewQuote.QuoteID != q.QuoteID || n.NewQuote.TotalPrice != 23.0 {
		t.Errorf("unexpected revised quote %+v", n.NewQuote)
	}
	if n.OriginalQuote.PricePerUnit != 12.5 {
		t.Errorf("original quote should keep 12.50, got %v", n.OriginalQuote.PricePerUnit)
	}

	// negotiated quotes cannot be negotiated again
	resp = postJSON(t, srv.URL+"/negotiate", NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 11, Rationale: "again"})
	expectStatus(t, resp, http.StatusNotFound)
}

func TestHTTP_NegotiateErrors(t *testing.T) {
	srv, f := newHTTPServer(t, false)
	q := decodeBody[QuoteResponse](t, postJSON(t, srv.URL+"/quote", QuoteRequest{IngredientID: "cups", Quantity: 1}))

	cases := []struct {
		name string
		req  NegotiateRequest
		want int
	}{
		{"missing quote id", NegotiateRequest{ProposedPricePerUnit: 0.05, Rationale: "x"}, http.StatusBadRequest},
		{"blank rationale", NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 0.05, Rationale: "   "}, http.StatusBadRequest},
		{"long rationale", NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 0.05, Rationale: strings.Repeat("a", 1001)}, http.StatusBadRequest},
		{"offer not lower", NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 0.10, Rationale: "x"}, http.StatusBadRequest},
		{"unknown quote", NegotiateRequest{QuoteID: "nope", ProposedPricePerUnit: 0.05, Rationale: "x"}, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			expectStatus(t, postJSON(t, srv.URL+"/negotiate", c.req), c.want)
		})
	}

	if err := f.clock.Advance(q.PriceValidUntil); err != nil {
		t.Fatal(err)
	}
	resp := postJSON(t, srv.URL+"/negotiate", NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 0.09, Rationale: "late"})
	expectStatus(t, resp, http.StatusBadRequest)
	if e := decodeBody[ErrorResponse](t, resp); e.Error != "quote_expired" {
		t.Errorf("expected quote_expired, got %s", e.Error)
	}
}

func TestHTTP_BuyAndLookup(t *testing.T) {
	srv, f := newHTTPServer(t, false)
	q := decodeBody[QuoteResponse](t, postJSON(t, srv.URL+"/quote", QuoteRequest{IngredientID: "whole_milk", Quantity: 4}))
	if err := f.clock.Advance(2); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, srv.URL+"/buy", BuyRequest{QuoteID: q.QuoteID, Quantity: 4, BusinessID: "cafe-7"})
	expectStatus(t, resp, http.StatusOK)
	o := decodeBody[OrderResponse](t, resp)
	if o.Status != string(domain.OrderStatusConfirmed) || o.TotalCost != 10.0 {
		t.Fatalf("unexpected order %+v", o)
	}
	item, ok := o.Items["whole_milk"]
	if !ok || item.PricePerUnitPaid != 2.5 || item.UseByDate != 2+3*config.OneDay {
		t.Errorf("unexpected order item %+v", item)
	}
	if o.OrderPlacedAt != 2 || o.ExpectedDelivery != 2+service.ExpectedDeliveryLead {
		t.Errorf("unexpected times %d / %d", o.OrderPlacedAt, o.ExpectedDelivery)
	}
	if o.BusinessID == nil || *o.BusinessID != "cafe-7" || o.FailureReason != nil {
		t.Errorf("unexpected optional fields %+v", o)
	}

	resp = getURL(t, srv.URL+"/order/"+o.OrderID)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[OrderResponse](t, resp); got.OrderID != o.OrderID {
		t.Errorf("lookup returned %s", got.OrderID)
	}

	resp = getURL(t, srv.URL+"/orders/business/cafe-7")
	expectStatus(t, resp, http.StatusOK)
	if orders := decodeBody[[]OrderResponse](t, resp); len(orders) != 1 {
		t.Errorf("expected 1 business order, got %d", len(orders))
	}

	expectStatus(t, getURL(t, srv.URL+"/order/missing"), http.StatusNotFound)

	resp = getURL(t, srv.URL+"/stock/whole_milk")
	if s := decodeBody[StockResponse](t, resp); s.StockAvailable != 99996 {
		t.Errorf("expected 99996 whole_milk, got %v", s.StockAvailable)
	}
}

func TestHTTP_BuyFailuresAre200(t *testing.T) {
	srv, _ := newHTTPServer(t, false)
	limit := 0.01

	cases := []struct {
		name string
		req  BuyRequest
		want domain.OrderStatus
	}{
		{"no ids", BuyRequest{Quantity: 1}, domain.OrderStatusInvalidRequest},
		{"unknown item", BuyRequest{IngredientID: "caviar", Quantity: 1}, domain.OrderStatusInvalidItem},
		{"below a thousandth", BuyRequest{IngredientID: "cups", Quantity: 0.0004}, domain.OrderStatusInvalidRequest},
		{"no stock", BuyRequest{IngredientID: "cups", Quantity: 1000000}, domain.OrderStatusNoStock},
		{"too expensive", BuyRequest{IngredientID: "cups", Quantity: 1, MaxAcceptablePricePerUnit: &limit}, domain.OrderStatusPriceTooHigh},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/buy", c.req)
			expectStatus(t, resp, http.StatusOK)
			o := decodeBody[OrderResponse](t, resp)
			if o.Status != string(c.want) || o.TotalCost != 0 || o.FailureReason == nil {
				t.Errorf("unexpected order %+v", o)
			}
		})
	}

	expectStatus(t, postJSON(t, srv.URL+"/buy", "not json"), http.StatusBadRequest)
}

func TestHTTP_ResetDatabase(t *testing.T) {
	srv, _ := newHTTPServer(t, false)
	resp := postJSON(t, srv.URL+"/reset-database", "")
	expectStatus(t, resp, http.StatusBadRequest)
	if e := decodeBody[ErrorResponse](t, resp); e.Message != "Database is not enabled" {
		t.Errorf("unexpected message %q", e.Message)
	}

	srv, _ = newHTTPServer(t, true)
	postJSON(t, srv.URL+"/buy", BuyRequest{IngredientID: "cups", Quantity: 1, BusinessID: "b"})
	expectStatus(t, postJSON(t, srv.URL+"/reset-database", ""), http.StatusOK)

	resp = getURL(t, srv.URL+"/orders/business/b")
	if orders := decodeBody[[]OrderResponse](t, resp); len(orders) != 0 {
		t.Errorf("expected no orders after reset, got %d", len(orders))
	}
}
