package handler

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/rent-market/internal/adapter/handler/pb"
	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedMarketServiceServer
	market *service.Market
	log    *zap.Logger
}

func NewGRPCHandler(market *service.Market, log *zap.Logger) *GRPCHandler {
	return &GRPCHandler{market: market, log: log}
}

type callerKey struct{}

// UnaryAuthInterceptor verifies the bearer token in the "authorization"
// metadata. The token subject replaces any caller ID carried in the request.
func UnaryAuthInterceptor(auth *Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}
		userID, err := auth.Verify(values[0])
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(context.WithValue(ctx, callerKey{}, userID), req)
	}
}

func caller(ctx context.Context, fallback string) string {
	if id, ok := ctx.Value(callerKey{}).(string); ok && id != "" {
		return id
	}
	return fallback
}

func (h *GRPCHandler) Availability(ctx context.Context, req *pb.AvailabilityRequest) (*pb.AvailabilityResponse, error) {
	if req.GetProductId() == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	res, err := h.market.Lookup(ctx, req.GetProductId())
	if err != nil {
		return nil, h.internal("availability", err)
	}
	out := &pb.AvailabilityResponse{Result: result(res.Rejected), ProductId: req.GetProductId()}
	if res.Rejected != nil {
		return out, nil
	}
	out.Status = string(res.Availability.Status)
	if res.Availability.RentStart != nil && res.Availability.RentEnd != nil {
		out.RentStart = domain.FormatDateTime(*res.Availability.RentStart)
		out.RentEnd = domain.FormatDateTime(*res.Availability.RentEnd)
	}
	return out, nil
}

func (h *GRPCHandler) Book(ctx context.Context, req *pb.BookRequest) (*pb.BookResponse, error) {
	renterID := caller(ctx, req.GetRenterId())
	if req.GetProductId() == "" || renterID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id and renter_id are required")
	}
	loc := h.market.Location()
	start, err := domain.ParseDateTime(req.GetRentStart(), loc)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "rent_start: %v", err)
	}
	end, err := domain.ParseDateTime(req.GetRentEnd(), loc)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "rent_end: %v", err)
	}

	res, err := h.market.TryBook(ctx, service.BookingRequest{
		ProductID: req.GetProductId(),
		RenterID:  renterID,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, h.internal("book", err)
	}
	out := &pb.BookResponse{Result: result(res.Rejected)}
	if res.Rejected != nil {
		return out, nil
	}
	out.Message = res.Message
	out.BookingId = res.Booking.ID
	out.Units = res.Booking.Units
	out.Unit = string(res.Booking.Unit)
	out.TotalRent = res.Booking.Total
	return out, nil
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *pb.PurchaseRequest) (*pb.PurchaseResponse, error) {
	buyerID := caller(ctx, req.GetBuyerId())
	if req.GetProductId() == "" || buyerID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id and buyer_id are required")
	}

	res, err := h.market.TryPurchase(ctx, service.PurchaseRequest{ProductID: req.GetProductId(), BuyerID: buyerID})
	if err != nil {
		return nil, h.internal("purchase", err)
	}
	out := &pb.PurchaseResponse{Result: result(res.Rejected)}
	if res.Rejected != nil {
		return out, nil
	}
	out.Message = res.Message
	out.PurchaseId = res.Purchase.ID
	return out, nil
}

func (h *GRPCHandler) Delete(ctx context.Context, req *pb.DeleteRequest) (*pb.DeleteResponse, error) {
	callerID := caller(ctx, req.GetCallerId())
	if req.GetProductId() == "" || callerID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id and caller_id are required")
	}

	res, err := h.market.TryDelete(ctx, service.DeleteRequest{ProductID: req.GetProductId(), CallerID: callerID})
	if err != nil {
		return nil, h.internal("delete", err)
	}
	out := &pb.DeleteResponse{Result: result(res.Rejected)}
	if res.Rejected == nil {
		out.Message = res.Message
	}
	return out, nil
}

func (h *GRPCHandler) internal(op string, err error) error {
	h.log.Error("grpc call failed", zap.String("op", op), zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func result(r *domain.Rejection) pb.Result {
	if r == nil {
		return pb.Result{Success: true, Outcome: string(domain.OutcomeSuccess)}
	}
	return pb.Result{
		Outcome: string(r.Outcome),
		Reason:  string(r.Reason),
		Message: r.Message,
	}
}
