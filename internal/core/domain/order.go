package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrOrderNotFound = errors.New("order not found")

// Prices are stored as DECIMAL(19, 4).
const (
	PriceScale         = 4
	PriceIntegerDigits = 15
)

var maxPrice = decimal.New(1, PriceIntegerDigits)

type OrderLineItemRequest struct {
	SkuCode  string
	Quantity int
	Price    decimal.Decimal
}

type OrderRequest struct {
	LineItems []OrderLineItemRequest
}

// Validate checks the request shape only; it never consults inventory.
func (r OrderRequest) Validate() error {
	if len(r.LineItems) == 0 {
		return errors.New("order must contain at least one line item")
	}
	for i, item := range r.LineItems {
		if strings.TrimSpace(item.SkuCode) == "" {
			return fmt.Errorf("line item %d: sku code is required", i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("line item %d: quantity must not be negative", i)
		}
		if item.Price.IsNegative() {
			return fmt.Errorf("line item %d: price must not be negative", i)
		}
		if !item.Price.Equal(item.Price.Truncate(PriceScale)) {
			return fmt.Errorf("line item %d: price must have at most %d decimal places", i, PriceScale)
		}
		if item.Price.GreaterThanOrEqual(maxPrice) {
			return fmt.Errorf("line item %d: price must have at most %d integer digits", i, PriceIntegerDigits)
		}
	}
	return nil
}

type OrderLineItem struct {
	SkuCode  string
	Quantity int
	Price    decimal.Decimal
}

type Order struct {
	ID          string
	OrderNumber string
	LineItems   []OrderLineItem
	CreatedAt   time.Time
}

// NewOrder builds the persistable order for req. Every call yields a new
// order number, so two identical requests never share one.
func NewOrder(req OrderRequest) Order {
	items := make([]OrderLineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, OrderLineItem{
			SkuCode:  item.SkuCode,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	return Order{
		ID:          uuid.NewString(),
		OrderNumber: uuid.NewString(),
		LineItems:   items,
		CreatedAt:   time.Now().UTC(),
	}
}

// DistinctSKUs returns the referenced SKUs once each, in first-appearance order.
func (o Order) DistinctSKUs() []string {
	seen := make(map[string]struct{}, len(o.LineItems))
	skus := make([]string, 0, len(o.LineItems))
	for _, item := range o.LineItems {
		if _, ok := seen[item.SkuCode]; ok {
			continue
		}
		seen[item.SkuCode] = struct{}{}
		skus = append(skus, item.SkuCode)
	}
	return skus
}
