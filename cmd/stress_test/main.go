package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type orderResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderNumber string `json:"orderNumber"`
}

type tally struct {
	accepted, rejected, failed atomic.Int32

	mu           sync.Mutex
	orderNumbers map[string]struct{}
}

func newTally() *tally {
	return &tally{orderNumbers: make(map[string]struct{})}
}

// record counts one response. A 201 only counts as accepted when its body
// carries an order number.
func (t *tally) record(status int, body io.Reader) {
	switch status {
	case http.StatusCreated:
		var out orderResponse
		if err := json.NewDecoder(body).Decode(&out); err != nil || out.OrderNumber == "" {
			t.failed.Add(1)
			return
		}
		t.accepted.Add(1)
		t.mu.Lock()
		t.orderNumbers[out.OrderNumber] = struct{}{}
		t.mu.Unlock()
	case http.StatusGone:
		t.rejected.Add(1)
	default:
		t.failed.Add(1)
	}
}

func (t *tally) distinct() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.orderNumbers)
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "order service base URL")
	sku := flag.String("sku", "iphone_17", "SKU to order")
	totalRequests := flag.Int("requests", 50, "number of orders to place")
	concurrency := flag.Int("concurrency", 50, "maximum requests in flight")
	flag.Parse()

	body, err := json.Marshal(map[string]any{
		"orderLineItemsDtoList": []map[string]any{
			{"skuCode": *sku, "price": 999, "quantity": 1},
		},
	})
	if err != nil {
		log.Fatalf("failed to build request: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	results := newTally()

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, *baseURL+"/api/order", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				results.failed.Add(1)
				return nil
			}
			defer resp.Body.Close()

			results.record(resp.StatusCode, resp.Body)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("stress test aborted: %v", err)
	}
	elapsed := time.Since(start)

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("SKU:              %s\n", *sku)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Accepted:         %d\n", results.accepted.Load())
	fmt.Printf("Out of stock:     %d\n", results.rejected.Load())
	fmt.Printf("Failed:           %d\n", results.failed.Load())
	fmt.Printf("Order numbers:    %d distinct\n", results.distinct())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Identical requests must never collapse into one order
	if results.distinct() == int(results.accepted.Load()) {
		fmt.Println("PASS: every accepted order has its own order number")
	} else {
		fmt.Printf("FAIL: %d accepted orders share %d order numbers\n", results.accepted.Load(), results.distinct())
	}
}
