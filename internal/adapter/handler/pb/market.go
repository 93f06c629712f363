package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	MarketService_Availability_FullMethodName = "/market.v1.MarketService/Availability"
	MarketService_Book_FullMethodName         = "/market.v1.MarketService/Book"
	MarketService_Purchase_FullMethodName     = "/market.v1.MarketService/Purchase"
	MarketService_Delete_FullMethodName       = "/market.v1.MarketService/Delete"
)

// Result is shared by every response. Outcome is SUCCESS, INVALID or
// CONFLICT; Reason is set unless the call succeeded.
type Result struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

type AvailabilityRequest struct {
	ProductId string `json:"product_id"`
}

func (x *AvailabilityRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

type AvailabilityResponse struct {
	Result
	ProductId string `json:"product_id"`
	Status    string `json:"status,omitempty"`
	RentStart string `json:"rent_start,omitempty"`
	RentEnd   string `json:"rent_end,omitempty"`
}

type BookRequest struct {
	ProductId string `json:"product_id"`
	RenterId  string `json:"renter_id"`
	RentStart string `json:"rent_start"`
	RentEnd   string `json:"rent_end"`
}

func (x *BookRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *BookRequest) GetRenterId() string {
	if x != nil {
		return x.RenterId
	}
	return ""
}

func (x *BookRequest) GetRentStart() string {
	if x != nil {
		return x.RentStart
	}
	return ""
}

func (x *BookRequest) GetRentEnd() string {
	if x != nil {
		return x.RentEnd
	}
	return ""
}

type BookResponse struct {
	Result
	BookingId string  `json:"booking_id,omitempty"`
	Units     int64   `json:"units,omitempty"`
	Unit      string  `json:"unit,omitempty"`
	TotalRent float64 `json:"total_rent,omitempty"`
}

type PurchaseRequest struct {
	ProductId string `json:"product_id"`
	BuyerId   string `json:"buyer_id"`
}

func (x *PurchaseRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *PurchaseRequest) GetBuyerId() string {
	if x != nil {
		return x.BuyerId
	}
	return ""
}

type PurchaseResponse struct {
	Result
	PurchaseId string `json:"purchase_id,omitempty"`
}

type DeleteRequest struct {
	ProductId string `json:"product_id"`
	CallerId  string `json:"caller_id"`
}

func (x *DeleteRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *DeleteRequest) GetCallerId() string {
	if x != nil {
		return x.CallerId
	}
	return ""
}

type DeleteResponse struct {
	Result
}

type MarketServiceServer interface {
	Availability(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error)
	Book(context.Context, *BookRequest) (*BookResponse, error)
	Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

// UnimplementedMarketServiceServer can be embedded for forward compatibility.
type UnimplementedMarketServiceServer struct{}

func (UnimplementedMarketServiceServer) Availability(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Availability not implemented")
}

func (UnimplementedMarketServiceServer) Book(context.Context, *BookRequest) (*BookResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Book not implemented")
}

func (UnimplementedMarketServiceServer) Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Purchase not implemented")
}

func (UnimplementedMarketServiceServer) Delete(context.Context, *DeleteRequest) (*DeleteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Delete not implemented")
}

func RegisterMarketServiceServer(s grpc.ServiceRegistrar, srv MarketServiceServer) {
	s.RegisterService(&MarketService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(MarketServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MarketServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MarketServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var MarketService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "market.v1.MarketService",
	HandlerType: (*MarketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Availability",
			Handler:    unaryHandler(MarketService_Availability_FullMethodName, MarketServiceServer.Availability),
		},
		{
			MethodName: "Book",
			Handler:    unaryHandler(MarketService_Book_FullMethodName, MarketServiceServer.Book),
		},
		{
			MethodName: "Purchase",
			Handler:    unaryHandler(MarketService_Purchase_FullMethodName, MarketServiceServer.Purchase),
		},
		{
			MethodName: "Delete",
			Handler:    unaryHandler(MarketService_Delete_FullMethodName, MarketServiceServer.Delete),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "market/v1/market.proto",
}

type MarketServiceClient interface {
	Availability(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error)
	Book(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*BookResponse, error)
	Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
}

type marketServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketServiceClient(cc grpc.ClientConnInterface) MarketServiceClient {
	return &marketServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketServiceClient) Availability(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error) {
	return invoke[AvailabilityResponse](ctx, c.cc, MarketService_Availability_FullMethodName, in, opts)
}

func (c *marketServiceClient) Book(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*BookResponse, error) {
	return invoke[BookResponse](ctx, c.cc, MarketService_Book_FullMethodName, in, opts)
}

func (c *marketServiceClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error) {
	return invoke[PurchaseResponse](ctx, c.cc, MarketService_Purchase_FullMethodName, in, opts)
}

func (c *marketServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, MarketService_Delete_FullMethodName, in, opts)
}
