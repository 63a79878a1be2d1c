package worker

import (
	"context"
	"encoding/json"

	"dione/internal/broker"
	"dione/internal/models"
	"dione/internal/service"
	"dione/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// StockCacheWorker keeps the Redis stock cache in step with the database by
// consuming order events and re-reading the touched products. Refreshing is
// best-effort; the catalog falls back to the tables on a cache miss.
type StockCacheWorker struct {
	consumer *broker.Consumer
	catalog  *service.CatalogService
	logger   *zap.Logger
}

// NewStockCacheWorker creates a new stock cache worker
func NewStockCacheWorker(consumer *broker.Consumer, catalog *service.CatalogService) *StockCacheWorker {
	return &StockCacheWorker{
		consumer: consumer,
		catalog:  catalog,
		logger:   util.GetLogger(),
	}
}

// Start consumes until the context is cancelled.
func (w *StockCacheWorker) Start(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop closes the underlying consumer.
func (w *StockCacheWorker) Stop() {
	if err := w.consumer.Close(); err != nil {
		w.logger.Warn("Error closing consumer", zap.Error(err))
	}
}

func (w *StockCacheWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		w.logger.Warn("Skipping malformed event", zap.Error(err))
		return nil
	}

	var productIDs []int64
	switch base.EventType {
	case models.EventTypeOrderPlaced:
		var event models.OrderPlacedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Warn("Skipping malformed OrderPlaced event", zap.Error(err))
			return nil
		}
		seen := make(map[int64]bool)
		for _, item := range event.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				productIDs = append(productIDs, item.ProductID)
			}
		}
	case models.EventTypeOrderCompleted:
		var event models.OrderCompletedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Warn("Skipping malformed OrderCompleted event", zap.Error(err))
			return nil
		}
		productIDs = event.ProductIDs
	default:
		return nil
	}

	for _, productID := range productIDs {
		if err := w.catalog.RefreshStockCache(ctx, productID); err != nil {
			w.logger.Warn("Failed to refresh stock cache",
				zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	w.logger.Debug("Stock cache refreshed",
		zap.String("event_type", base.EventType), zap.Int("products", len(productIDs)))
	return nil
}
