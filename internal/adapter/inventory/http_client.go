// Package inventory talks to the inventory service over HTTP.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/semaphore"
)

const (
	lookupPath        = "/api/inventory"
	maxErrorBodyBytes = 512
)

type availabilityDTO struct {
	SkuCode   string `json:"skuCode"`
	IsInStock bool   `json:"isInStock"`
}

// HTTPClient queries the bulk availability endpoint. At most maxInFlight
// lookups run at once; further callers wait until a slot frees up or their
// context ends.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	sem     *semaphore.Weighted
}

func NewHTTPClient(baseURL string, timeout time.Duration, maxInFlight int64) *HTTPClient {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		sem: semaphore.NewWeighted(maxInFlight),
	}
}

// Lookup returns an entry for every requested SKU. SKUs absent from the
// response are reported as out of stock.
func (c *HTTPClient) Lookup(ctx context.Context, skus []string) (map[string]bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for lookup slot: %w", err)
	}
	defer c.sem.Release(1)

	query := url.Values{}
	for _, sku := range skus {
		query.Add("skuCode", sku)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+lookupPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("inventory service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(resp.Body)
	var entries []availabilityDTO
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode inventory response: %w", err)
	}
	if entries == nil {
		return nil, errors.New("decode inventory response: expected a JSON array")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode inventory response: unexpected data after JSON array")
	}

	reported := make(map[string]bool, len(entries))
	for _, e := range entries {
		reported[e.SkuCode] = e.IsInStock
	}

	availability := make(map[string]bool, len(skus))
	for _, sku := range skus {
		availability[sku] = reported[sku]
	}
	return availability, nil
}
