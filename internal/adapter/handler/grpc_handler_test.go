package handler

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

func newGRPCClient(t *testing.T) (*MarketClient, *marketFixture) {
	t.Helper()
	f := newMarketFixture(t)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	NewGRPCHandler(f.market).Register(s)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewMarketClient(conn), f
}

func expectCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Errorf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestGRPC_QuoteNegotiateBuy(t *testing.T) {
	client, _ := newGRPCClient(t)
	ctx := context.Background()

	q, err := client.Quote(ctx, &QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 10})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.PricePerUnit != 7.2 || q.TotalPrice != 72.0 {
		t.Errorf("unexpected quote %+v", q)
	}

	n, err := client.Negotiate(ctx, &NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 7.0, Rationale: "repeat buyer"})
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if !n.Accepted || n.NewQuote == nil || n.NewQuote.TotalPrice != 70.0 {
		t.Errorf("unexpected negotiation %+v", n)
	}

	o, err := client.Buy(ctx, &BuyRequest{QuoteID: q.QuoteID, Quantity: 10, BusinessID: "roastery"})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if o.Status != string(domain.OrderStatusConfirmed) || o.TotalCost != 70.0 {
		t.Errorf("unexpected order %+v", o)
	}

	got, err := client.GetOrder(ctx, &OrderLookupRequest{OrderID: o.OrderID})
	if err != nil || got.OrderID != o.OrderID {
		t.Errorf("GetOrder: %+v, %v", got, err)
	}
	list, err := client.GetOrdersByBusiness(ctx, &BusinessOrdersRequest{BusinessID: "roastery"})
	if err != nil || len(list.Orders) != 1 {
		t.Errorf("GetOrdersByBusiness: %+v, %v", list, err)
	}
}

func TestGRPC_Errors(t *testing.T) {
	client, f := newGRPCClient(t)
	ctx := context.Background()

	_, err := client.Quote(ctx, &QuoteRequest{Quantity: 1})
	expectCode(t, err, codes.InvalidArgument)
	_, err = client.Quote(ctx, &QuoteRequest{IngredientID: "caviar", Quantity: 1})
	expectCode(t, err, codes.NotFound)
	_, err = client.Quote(ctx, &QuoteRequest{IngredientID: "cups", Quantity: -1})
	expectCode(t, err, codes.InvalidArgument)

	_, err = client.Negotiate(ctx, &NegotiateRequest{QuoteID: "nope", ProposedPricePerUnit: 1})
	expectCode(t, err, codes.InvalidArgument)
	_, err = client.Negotiate(ctx, &NegotiateRequest{QuoteID: "nope", ProposedPricePerUnit: 1, Rationale: "x"})
	expectCode(t, err, codes.NotFound)

	q, err := client.Quote(ctx, &QuoteRequest{IngredientID: "cups", Quantity: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.clock.Advance(q.PriceValidUntil); err != nil {
		t.Fatal(err)
	}
	_, err = client.Negotiate(ctx, &NegotiateRequest{QuoteID: q.QuoteID, ProposedPricePerUnit: 0.05, Rationale: "x"})
	expectCode(t, err, codes.FailedPrecondition)

	_, err = client.GetOrder(ctx, &OrderLookupRequest{OrderID: "missing"})
	expectCode(t, err, codes.NotFound)
}

func TestGRPC_BuyFailureIsNotAnError(t *testing.T) {
	client, _ := newGRPCClient(t)

	o, err := client.Buy(context.Background(), &BuyRequest{IngredientID: "saffron", Quantity: 1})
	if err != nil {
		t.Fatalf("Buy returned an RPC error: %v", err)
	}
	if o.Status != string(domain.OrderStatusInvalidItem) || o.TotalCost != 0 {
		t.Errorf("unexpected order %+v", o)
	}
}
