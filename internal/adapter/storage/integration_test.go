package storage_test

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory/internal/adapter/storage"
	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/core/service"
)

type testEnv struct {
	redis     *redis.Client
	mysql     *sql.DB
	store     *storage.MySQLStore
	snapshots *storage.RedisSnapshotStore
	cleanup   func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	snapshotKey := "test:integration:" + uuid.NewString()
	return &testEnv{
		redis:     rdb,
		mysql:     db,
		store:     storage.NewMySQLStore(db),
		snapshots: storage.NewRedisSnapshotStore(rdb, snapshotKey),
		cleanup: func() {
			rdb.Del(context.Background(), snapshotKey, snapshotKey+":taken_at")
			rdb.Close()
			db.Close()
		},
	}
}

func TestIntegration_ConcurrentExitsNeverOversell(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	taxID := "it-sup-" + suffix
	code := "it-item-" + suffix
	initialStock := 10

	// Cleanup
	defer func() {
		env.mysql.ExecContext(ctx, `DELETE FROM stock_transactions WHERE product_code = ?`, code)
		env.mysql.ExecContext(ctx, `DELETE FROM products WHERE code = ?`, code)
		env.mysql.ExecContext(ctx, `DELETE FROM suppliers WHERE tax_id = ?`, taxID)
	}()

	coord := service.NewCoordinator(env.store, zerolog.Nop())
	if err := coord.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	supplier := domain.Supplier{TaxID: taxID, LegalName: "Integration Ltd"}
	if err := coord.RegisterSupplier(ctx, supplier); err != nil {
		t.Fatalf("register supplier failed: %v", err)
	}
	product := domain.NewDurable(code, "Router", decimal.RequireFromString("89.00"), initialStock, &supplier, "network", 12)
	if err := coord.RegisterProduct(ctx, product); err != nil {
		t.Fatalf("register product failed: %v", err)
	}

	var applied atomic.Int32
	var wg sync.WaitGroup
	totalRequests := 20

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := coord.ProcessTransaction(ctx, domain.NewTransaction(domain.TransactionKindExit, 1, code, domain.TransactionDetails{}))
			if err == nil && result.Applied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	if applied.Load() != int32(initialStock) {
		t.Errorf("expected %d applied exits, got %d", initialStock, applied.Load())
	}

	var mysqlStock int
	env.mysql.QueryRowContext(ctx, `SELECT stock FROM products WHERE code = ?`, code).Scan(&mysqlStock)
	if mysqlStock != 0 {
		t.Errorf("expected MySQL stock 0, got %d", mysqlStock)
	}

	// rejected exits are recorded too
	var txCount int
	env.mysql.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_transactions WHERE product_code = ?`, code).Scan(&txCount)
	if txCount != totalRequests {
		t.Errorf("expected %d transactions in MySQL, got %d", totalRequests, txCount)
	}

	// a fresh coordinator sees the same state
	reloaded := service.NewCoordinator(env.store, zerolog.Nop())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	p, ok := reloaded.FindProduct(code)
	if !ok || p.Stock != 0 {
		t.Errorf("expected reloaded stock 0, got %+v", p)
	}
	if n := len(reloaded.FilterTransactions(service.TransactionFilter{Kind: domain.TransactionKindExit})); n < totalRequests {
		t.Errorf("expected at least %d exits after reload, got %d", totalRequests, n)
	}
}

func TestIntegration_SnapshotRestoresProducts(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	taxID := "it-sup-" + suffix
	code := "it-milk-" + suffix

	defer func() {
		env.mysql.ExecContext(ctx, `DELETE FROM products WHERE code = ?`, code)
		env.mysql.ExecContext(ctx, `DELETE FROM suppliers WHERE tax_id = ?`, taxID)
	}()

	coord := service.NewCoordinator(env.store, zerolog.Nop(), service.WithSnapshotStore(env.snapshots))
	supplier := domain.Supplier{TaxID: taxID}
	if err := coord.RegisterSupplier(ctx, supplier); err != nil {
		t.Fatalf("register supplier failed: %v", err)
	}
	milk := domain.NewPerishable(code, "Milk", decimal.RequireFromString("1.10"), 40, &supplier, time.Now().AddDate(0, 0, 5), true)
	if err := coord.RegisterProduct(ctx, milk); err != nil {
		t.Fatalf("register product failed: %v", err)
	}
	if err := coord.SaveSnapshot(ctx); err != nil {
		t.Fatalf("save snapshot failed: %v", err)
	}

	restored := service.NewCoordinator(env.store, zerolog.Nop(), service.WithSnapshotStore(env.snapshots))
	if !restored.RestoreFromSnapshot(ctx) {
		t.Fatal("expected snapshot to be applied")
	}
	p, ok := restored.FindProduct(code)
	if !ok {
		t.Fatal("product missing after restore")
	}
	if p.Stock != 40 || !p.Refrigerated {
		t.Errorf("unexpected restored product: %+v", p)
	}
}
