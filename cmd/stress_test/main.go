package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/inventory/internal/adapter/handler"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC address of a running server")
	code := flag.String("product", "stress-item", "code of an already registered product")
	exits := flag.Int("exits", 50, "concurrent EXIT requests of one unit")
	entries := flag.Int("entries", 10, "concurrent ENTRY requests of one unit")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	client := handler.NewInventoryClient(conn)

	before, err := client.GetProduct(ctx, &handler.GetProductRequest{Code: *code})
	if err != nil {
		log.Fatalf("failed to read product %s: %v", *code, err)
	}
	initialStock := before.Product.Stock

	// Counters
	var applied, refused, failed atomic.Int32
	var negative atomic.Bool

	send := func(kind string) {
		reply, err := client.ProcessTransaction(ctx, &handler.TransactionRequest{
			Kind:        kind,
			Quantity:    1,
			ProductCode: *code,
			Reason:      "stress test",
		})
		switch {
		case err != nil:
			failed.Add(1)
		case reply.Applied:
			applied.Add(1)
		default:
			refused.Add(1)
		}
		if err == nil && reply.Stock < 0 {
			negative.Store(true)
		}
	}

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *exits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			send("EXIT")
		}()
	}
	for i := 0; i < *entries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			send("ENTRY")
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	after, err := client.GetProduct(ctx, &handler.GetProductRequest{Code: *code})
	if err != nil {
		log.Fatalf("failed to read product %s: %v", *code, err)
	}

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Exits / Entries:  %d / %d\n", *exits, *entries)
	fmt.Printf("Applied:          %d\n", applied.Load())
	fmt.Printf("Refused:          %d\n", refused.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Final Stock:      %d\n", after.Product.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Every applied entry adds one and every applied exit removes one
	appliedExits := int(applied.Load()) - *entries
	expected := initialStock + *entries - appliedExits

	if failed.Load() > 0 {
		fmt.Printf("WARN: %d requests failed; stock balance cannot be checked\n", failed.Load())
	} else if after.Product.Stock == expected {
		fmt.Printf("PASS: final stock %d matches %d + %d - %d\n", after.Product.Stock, initialStock, *entries, appliedExits)
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", expected, after.Product.Stock)
	}

	if negative.Load() || after.Product.Stock < 0 {
		fmt.Println("FAIL: stock went negative")
	} else {
		fmt.Println("PASS: stock never went negative")
	}
}
