package handler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/core/service"
)

type GRPCHandler struct {
	coordinator       *service.Coordinator
	lowStockThreshold int
}

func NewGRPCHandler(coordinator *service.Coordinator, lowStockThreshold int) *GRPCHandler {
	return &GRPCHandler{coordinator: coordinator, lowStockThreshold: lowStockThreshold}
}

func (h *GRPCHandler) GetProduct(ctx context.Context, req *GetProductRequest) (*ProductReply, error) {
	p, ok := h.coordinator.FindProduct(req.Code)
	if !ok {
		return nil, toStatus(service.ErrProductNotFound)
	}
	return &ProductReply{Product: p}, nil
}

func (h *GRPCHandler) ListProducts(ctx context.Context, req *ListProductsRequest) (*ProductsReply, error) {
	return &ProductsReply{Products: h.coordinator.ListProducts()}, nil
}

// ProcessTransaction reports a refused EXIT through Applied=false rather than an error
// status, since the transaction was still recorded.
func (h *GRPCHandler) ProcessTransaction(ctx context.Context, req *TransactionRequest) (*TransactionResponse, error) {
	t, err := req.toTransaction()
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := h.coordinator.ProcessTransaction(ctx, t)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TransactionResponse{
		Transaction: result.Transaction,
		Stock:       result.Stock,
		Applied:     result.Applied,
	}, nil
}

func (h *GRPCHandler) Valuation(ctx context.Context, req *ValuationRequest) (*ValuationResponse, error) {
	return &ValuationResponse{
		Total: h.coordinator.TotalValuation(),
		AsOf:  domain.CalendarDate(h.coordinator.Today()).Format(dateLayout),
	}, nil
}

func (h *GRPCHandler) LowStock(ctx context.Context, req *LowStockRequest) (*ProductsReply, error) {
	threshold := h.lowStockThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	return &ProductsReply{Products: h.coordinator.LowStock(threshold)}, nil
}

func (h *GRPCHandler) NearExpiry(ctx context.Context, req *NearExpiryRequest) (*ProductsReply, error) {
	return &ProductsReply{Products: h.coordinator.NearExpiry()}, nil
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidSupplier),
		errors.Is(err, service.ErrInvalidTransaction):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrSupplierNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		return codes.NotFound
	case errors.Is(err, service.ErrDuplicateProduct):
		return codes.AlreadyExists
	case errors.Is(err, service.ErrProductExpired):
		return codes.FailedPrecondition
	case errors.Is(err, service.ErrStore), errors.Is(err, service.ErrSnapshot):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

func toStatus(err error) error {
	return status.Error(codeFor(err), err.Error())
}

// WatchStoreHealth keeps the health server's status for the Inventory service, and the
// overall server status, in line with store reachability until ctx is done.
func WatchStoreHealth(ctx context.Context, coordinator *service.Coordinator, hs *health.Server, interval time.Duration, logger zerolog.Logger) {
	check := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if err := coordinator.CheckStore(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("store unreachable")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(InventoryServiceName, st)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
