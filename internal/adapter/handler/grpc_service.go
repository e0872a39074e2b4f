package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/rl1809/inventory/internal/core/domain"
)

// The Inventory service speaks JSON over gRPC: messages are plain Go structs and the
// codec is selected with the "json" content-subtype.
const (
	InventoryServiceName = "inventory.v1.Inventory"
	codecName            = "json"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type GetProductRequest struct {
	Code string `json:"code"`
}

type ProductReply struct {
	Product domain.Product `json:"product"`
}

type ListProductsRequest struct{}

type ProductsReply struct {
	Products []domain.Product `json:"products"`
}

type ValuationRequest struct{}

// LowStockRequest uses the server's configured threshold when Threshold is nil.
type LowStockRequest struct {
	Threshold *int `json:"threshold,omitempty"`
}

type NearExpiryRequest struct{}

type InventoryServer interface {
	GetProduct(context.Context, *GetProductRequest) (*ProductReply, error)
	ListProducts(context.Context, *ListProductsRequest) (*ProductsReply, error)
	ProcessTransaction(context.Context, *TransactionRequest) (*TransactionResponse, error)
	Valuation(context.Context, *ValuationRequest) (*ValuationResponse, error)
	LowStock(context.Context, *LowStockRequest) (*ProductsReply, error)
	NearExpiry(context.Context, *NearExpiryRequest) (*ProductsReply, error)
}

var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetProduct", InventoryServer.GetProduct),
		unary("ListProducts", InventoryServer.ListProducts),
		unary("ProcessTransaction", InventoryServer.ProcessTransaction),
		unary("Valuation", InventoryServer.Valuation),
		unary("LowStock", InventoryServer.LowStock),
		unary("NearExpiry", InventoryServer.NearExpiry),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory",
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(InventoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + InventoryServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// InventoryClient calls the Inventory service with the JSON codec.
type InventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := cc.Invoke(ctx, "/"+InventoryServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductReply, error) {
	return invoke[ProductReply](ctx, c.cc, "GetProduct", in, opts)
}

func (c *InventoryClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ProductsReply, error) {
	return invoke[ProductsReply](ctx, c.cc, "ListProducts", in, opts)
}

func (c *InventoryClient) ProcessTransaction(ctx context.Context, in *TransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, "ProcessTransaction", in, opts)
}

func (c *InventoryClient) Valuation(ctx context.Context, in *ValuationRequest, opts ...grpc.CallOption) (*ValuationResponse, error) {
	return invoke[ValuationResponse](ctx, c.cc, "Valuation", in, opts)
}

func (c *InventoryClient) LowStock(ctx context.Context, in *LowStockRequest, opts ...grpc.CallOption) (*ProductsReply, error) {
	return invoke[ProductsReply](ctx, c.cc, "LowStock", in, opts)
}

func (c *InventoryClient) NearExpiry(ctx context.Context, in *NearExpiryRequest, opts ...grpc.CallOption) (*ProductsReply, error) {
	return invoke[ProductsReply](ctx, c.cc, "NearExpiry", in, opts)
}
