package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/observability"
	"github.com/rl1809/storefront/internal/port"
)

// InventoryService answers availability queries and reserves stock. The cache
// is optional; without it reservations go straight to the repository.
type InventoryService struct {
	repo    port.InventoryRepository
	cache   port.CacheRepository
	logger  *zap.Logger
	metrics *observability.OrderMetrics
}

func NewInventoryService(repo port.InventoryRepository, cache port.CacheRepository, logger *zap.Logger, metrics *observability.OrderMetrics) *InventoryService {
	return &InventoryService{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckStock reports availability for the SKUs that exist in storage.
// Unknown SKUs are left out of the result.
func (s *InventoryService) CheckStock(ctx context.Context, skus []string) ([]domain.InventoryAvailability, error) {
	skus = distinct(skus)
	if len(skus) == 0 {
		return []domain.InventoryAvailability{}, nil
	}

	rows, err := s.repo.FindBySkus(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}

	result := make([]domain.InventoryAvailability, 0, len(rows))
	for _, inv := range rows {
		result = append(result, domain.InventoryAvailability{
			SkuCode: inv.SkuCode,
			InStock: inv.InStock(),
		})
	}
	return result, nil
}

func (s *InventoryService) IsInStock(ctx context.Context, skuCode string) (bool, error) {
	availability, err := s.CheckStock(ctx, []string{skuCode})
	if err != nil {
		return false, err
	}
	for _, a := range availability {
		if a.SkuCode == skuCode {
			return a.InStock, nil
		}
	}
	return false, nil
}

// ReserveStock decrements stock for all items or for none of them.
func (s *InventoryService) ReserveStock(ctx context.Context, items []domain.StockReservationItem) error {
	merged, err := mergeReservationItems(items)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if s.cache != nil {
		ok, err := s.cache.ReserveStock(ctx, merged)
		if err != nil {
			s.metrics.RecordReservation(ctx, "error")
			return fmt.Errorf("stock reservation failed: %w", err)
		}
		if !ok {
			s.metrics.RecordReservation(ctx, "insufficient")
			return ErrInsufficientStock
		}
	}

	if err := s.repo.DecrementStock(ctx, merged); err != nil {
		s.logger.Error("failed to persist stock reservation", zap.Error(err))

		if s.cache != nil {
			if rollbackErr := s.cache.ReleaseStock(context.WithoutCancel(ctx), merged); rollbackErr != nil {
				s.logger.Error("CRITICAL rollback failed for stock reservation",
					zap.Any("items", merged),
					zap.Error(rollbackErr))
			} else {
				s.logger.Info("rolled back cached stock reservation", zap.Int("items", len(merged)))
			}
		}

		if errors.Is(err, domain.ErrStockConflict) {
			s.metrics.RecordReservation(ctx, "insufficient")
			return ErrInsufficientStock
		}
		s.metrics.RecordReservation(ctx, "error")
		return fmt.Errorf("persist reservation: %w", err)
	}

	s.metrics.RecordReservation(ctx, "reserved")
	return nil
}

// SyncCache copies the durable stock levels into the cache.
func (s *InventoryService) SyncCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	rows, err := s.repo.ListInventory(ctx)
	if err != nil {
		return fmt.Errorf("list inventory: %w", err)
	}

	for _, inv := range rows {
		if err := s.cache.SetStock(ctx, inv.SkuCode, inv.Quantity); err != nil {
			return fmt.Errorf("set cached stock for %s: %w", inv.SkuCode, err)
		}
	}

	s.logger.Info("synced stock to cache", zap.Int("skus", len(rows)))
	return nil
}

func mergeReservationItems(items []domain.StockReservationItem) ([]domain.StockReservationItem, error) {
	if len(items) == 0 {
		return nil, errors.New("reservation must contain at least one item")
	}

	index := make(map[string]int, len(items))
	merged := make([]domain.StockReservationItem, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.SkuCode) == "" {
			return nil, fmt.Errorf("item %d: sku code is required", i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity must be positive", i)
		}
		if pos, ok := index[item.SkuCode]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.SkuCode] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
