package worker

import (
	"context"

	"pricing-engine/internal/broker"
	"pricing-engine/internal/cache"
	"pricing-engine/internal/models"
	"pricing-engine/internal/service"
	"pricing-engine/internal/util"

	"go.uber.org/zap"
)

// AuditWorker persists PriceComputed events as audit logs
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, auditService *service.AuditService) *AuditWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPriceComputed(auditService.RecordPriceComputed)

	return &AuditWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

// InvalidationWorker drops locally cached prices named by CatalogChanged
// events, keeping every instance's cache coherent with the catalog
type InvalidationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewInvalidationWorker creates a new invalidation worker
func NewInvalidationWorker(consumer *broker.Consumer, priceCache cache.PriceCache) *InvalidationWorker {
	w := &InvalidationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnCatalogChanged(InvalidateHandler(priceCache, w.logger))
	return w
}

// Start starts the worker
func (w *InvalidationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache invalidation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *InvalidationWorker) Stop() error {
	w.logger.Info("Stopping cache invalidation worker")
	return w.consumer.Close()
}

// InvalidateHandler returns a CatalogChanged handler that drops the cached
// prices of every product the event names
func InvalidateHandler(priceCache cache.PriceCache, logger *zap.Logger) func(context.Context, *models.CatalogChangedEvent) error {
	return func(ctx context.Context, event *models.CatalogChangedEvent) error {
		removed := 0
		for _, id := range event.ProductIDs {
			removed += priceCache.InvalidateProduct(ctx, id)
		}
		util.CacheInvalidatedKeysTotal.Add(float64(removed))

		logger.Info("Applied remote catalog change",
			zap.String("event_id", event.EventID),
			zap.String("change", event.Change),
			zap.Int("keys", removed))
		return nil
	}
}
