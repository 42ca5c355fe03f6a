package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/service"
)

// JSONCodecName is the content subtype clients must request, e.g. with
// grpc.CallContentSubtype(JSONCodecName).
const JSONCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// MarketServer is the server API of market.v1.Market.
type MarketServer interface {
	Quote(context.Context, *QuoteRequest) (*QuoteResponse, error)
	Negotiate(context.Context, *NegotiateRequest) (*NegotiateResponse, error)
	Buy(context.Context, *BuyRequest) (*OrderResponse, error)
	GetOrder(context.Context, *OrderLookupRequest) (*OrderResponse, error)
	GetOrdersByBusiness(context.Context, *BusinessOrdersRequest) (*BusinessOrdersResponse, error)
}

type GRPCHandler struct {
	market *service.TradingService
}

func NewGRPCHandler(market *service.TradingService) *GRPCHandler {
	return &GRPCHandler{market: market}
}

// Register attaches the handler to s.
func (h *GRPCHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&MarketServiceDesc, h)
}

func (h *GRPCHandler) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	if req.IngredientID == "" {
		return nil, status.Error(codes.InvalidArgument, "ingredient_id is required")
	}
	q, err := h.market.Quote(ctx, req.IngredientID, decimal.NewFromFloat(req.Quantity))
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toQuoteResponse(q)
	return &resp, nil
}

func (h *GRPCHandler) Negotiate(ctx context.Context, req *NegotiateRequest) (*NegotiateResponse, error) {
	rationale := strings.TrimSpace(req.Rationale)
	if req.QuoteID == "" || rationale == "" || len(rationale) > maxRationaleLength {
		return nil, status.Error(codes.InvalidArgument, "quote_id and a rationale of 1 to 1000 characters are required")
	}
	outcome, err := h.market.Negotiate(ctx, req.QuoteID, decimal.NewFromFloat(req.ProposedPricePerUnit), rationale)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toNegotiateResponse(outcome)
	return &resp, nil
}

// Buy mirrors the HTTP contract: failures are reported in the order status,
// never as RPC errors.
func (h *GRPCHandler) Buy(ctx context.Context, req *BuyRequest) (*OrderResponse, error) {
	resp := toOrderResponse(h.market.Buy(ctx, req.toService()))
	return &resp, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *OrderLookupRequest) (*OrderResponse, error) {
	order, err := h.market.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (h *GRPCHandler) GetOrdersByBusiness(ctx context.Context, req *BusinessOrdersRequest) (*BusinessOrdersResponse, error) {
	orders, err := h.market.GetOrdersByBusiness(ctx, req.BusinessID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &BusinessOrdersResponse{Orders: toOrderResponses(orders)}, nil
}

func grpcError(err error) error {
	switch {
	case service.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrQuoteExpired):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidNegotiation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(MarketServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MarketServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + MarketServiceName + "/" + method,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(MarketServer), ctx, req.(*Req))
			})
		},
	}
}

const MarketServiceName = "market.v1.Market"

var MarketServiceDesc = grpc.ServiceDesc{
	ServiceName: MarketServiceName,
	HandlerType: (*MarketServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Quote", MarketServer.Quote),
		unaryHandler("Negotiate", MarketServer.Negotiate),
		unaryHandler("Buy", MarketServer.Buy),
		unaryHandler("GetOrder", MarketServer.GetOrder),
		unaryHandler("GetOrdersByBusiness", MarketServer.GetOrdersByBusiness),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "market/v1/market.proto",
}

// MarketClient calls market.v1.Market over a connection using the JSON codec.
type MarketClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketClient(cc grpc.ClientConnInterface) *MarketClient {
	return &MarketClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+MarketServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MarketClient) Quote(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*QuoteResponse, error) {
	return invoke[QuoteResponse](ctx, c.cc, "Quote", in, opts...)
}

func (c *MarketClient) Negotiate(ctx context.Context, in *NegotiateRequest, opts ...grpc.CallOption) (*NegotiateResponse, error) {
	return invoke[NegotiateResponse](ctx, c.cc, "Negotiate", in, opts...)
}

func (c *MarketClient) Buy(ctx context.Context, in *BuyRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "Buy", in, opts...)
}

func (c *MarketClient) GetOrder(ctx context.Context, in *OrderLookupRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, "GetOrder", in, opts...)
}

func (c *MarketClient) GetOrdersByBusiness(ctx context.Context, in *BusinessOrdersRequest, opts ...grpc.CallOption) (*BusinessOrdersResponse, error) {
	return invoke[BusinessOrdersResponse](ctx, c.cc, "GetOrdersByBusiness", in, opts...)
}
