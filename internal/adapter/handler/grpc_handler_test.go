package handler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type grpcEnv struct {
	client *InventoryClient
	health healthpb.HealthClient
	store  *memStore
}

func startGRPC(t *testing.T) *grpcEnv {
	t.Helper()

	store := newMemStore()
	coord := seededCoordinator(store)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterInventoryServer(srv, NewGRPCHandler(coord, 10))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	ctx, cancel := context.WithCancel(context.Background())
	go WatchStoreHealth(ctx, coord, hs, 10*time.Millisecond, zerolog.Nop())
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		conn.Close()
		srv.Stop()
	})

	return &grpcEnv{
		client: NewInventoryClient(conn),
		health: healthpb.NewHealthClient(conn),
		store:  store,
	}
}

func TestGRPC_GetProduct(t *testing.T) {
	env := startGRPC(t)
	ctx := context.Background()

	reply, err := env.client.GetProduct(ctx, &GetProductRequest{Code: "M1"})
	require.NoError(t, err)
	assert.Equal(t, "Milk", reply.Product.Name)
	assert.True(t, reply.Product.Refrigerated)

	_, err = env.client.GetProduct(ctx, &GetProductRequest{Code: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_ListProducts(t *testing.T) {
	env := startGRPC(t)

	reply, err := env.client.ListProducts(context.Background(), &ListProductsRequest{})
	require.NoError(t, err)
	require.Len(t, reply.Products, 2)
	assert.Equal(t, "D1", reply.Products[0].Code)
}

func TestGRPC_ProcessTransaction(t *testing.T) {
	env := startGRPC(t)
	ctx := context.Background()

	reply, err := env.client.ProcessTransaction(ctx, &TransactionRequest{Kind: "EXIT", Quantity: 2, ProductCode: "D1"})
	require.NoError(t, err)
	assert.True(t, reply.Applied)
	assert.Equal(t, 3, reply.Stock)
	assert.Equal(t, 3, env.store.stockOf("D1"))

	reply, err = env.client.ProcessTransaction(ctx, &TransactionRequest{Kind: "EXIT", Quantity: 4, ProductCode: "D1"})
	require.NoError(t, err)
	assert.False(t, reply.Applied)
	assert.Equal(t, 3, reply.Stock)
	assert.Equal(t, int64(2), reply.Transaction.ID)

	_, err = env.client.ProcessTransaction(ctx, &TransactionRequest{Kind: "MOVE", Quantity: 1, ProductCode: "D1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.ProcessTransaction(ctx, &TransactionRequest{Kind: "ENTRY", Quantity: 1, ProductCode: "ghost"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_StoreFailureIsUnavailable(t *testing.T) {
	env := startGRPC(t)
	env.store.mu.Lock()
	env.store.saveTransactionErr = errors.New("deadlock")
	env.store.mu.Unlock()

	_, err := env.client.ProcessTransaction(context.Background(), &TransactionRequest{Kind: "ENTRY", Quantity: 1, ProductCode: "D1"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPC_Reports(t *testing.T) {
	env := startGRPC(t)
	ctx := context.Background()

	valuation, err := env.client.Valuation(ctx, &ValuationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "100", valuation.Total.String())
	assert.Equal(t, "2026-03-15", valuation.AsOf)

	low, err := env.client.LowStock(ctx, &LowStockRequest{})
	require.NoError(t, err)
	require.Len(t, low.Products, 1)
	assert.Equal(t, "D1", low.Products[0].Code)

	threshold := 50
	low, err = env.client.LowStock(ctx, &LowStockRequest{Threshold: &threshold})
	require.NoError(t, err)
	assert.Len(t, low.Products, 2)

	near, err := env.client.NearExpiry(ctx, &NearExpiryRequest{})
	require.NoError(t, err)
	require.Len(t, near.Products, 1)
	assert.Equal(t, "M1", near.Products[0].Code)
}

func TestGRPC_Health(t *testing.T) {
	env := startGRPC(t)
	ctx := context.Background()

	serving := func(want healthpb.HealthCheckResponse_ServingStatus) func() bool {
		return func() bool {
			resp, err := env.health.Check(ctx, &healthpb.HealthCheckRequest{Service: InventoryServiceName})
			return err == nil && resp.GetStatus() == want
		}
	}

	assert.Eventually(t, serving(healthpb.HealthCheckResponse_SERVING), time.Second, 10*time.Millisecond)

	env.store.setPingErr(errors.New("connection refused"))
	assert.Eventually(t, serving(healthpb.HealthCheckResponse_NOT_SERVING), time.Second, 10*time.Millisecond)

	env.store.setPingErr(nil)
	assert.Eventually(t, serving(healthpb.HealthCheckResponse_SERVING), time.Second, 10*time.Millisecond)
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, codes.Internal, codeFor(errors.New("boom")))
	assert.Equal(t, codes.DeadlineExceeded, codeFor(context.DeadlineExceeded))
}
