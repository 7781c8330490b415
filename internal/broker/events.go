package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pricing-engine/internal/models"
	"pricing-engine/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes pricing and catalog events
type EventPublisher struct {
	producer     *Producer
	pricingTopic string
	catalogTopic string
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer, pricingTopic, catalogTopic string) *EventPublisher {
	return &EventPublisher{
		producer:     producer,
		pricingTopic: pricingTopic,
		catalogTopic: catalogTopic,
	}
}

// PublishPriceComputed publishes a PriceComputed event
func (ep *EventPublisher) PublishPriceComputed(ctx context.Context, event *models.PriceComputedEvent) error {
	key := fmt.Sprintf("product-%d", event.Result.ProductID)
	return ep.producer.PublishEvent(ctx, ep.pricingTopic, key, event)
}

// PublishCatalogChanged publishes a CatalogChanged event
func (ep *EventPublisher) PublishCatalogChanged(ctx context.Context, event *models.CatalogChangedEvent) error {
	key := event.Change
	if len(event.ProductIDs) > 0 {
		key = fmt.Sprintf("product-%d", event.ProductIDs[0])
	}
	return ep.producer.PublishEvent(ctx, ep.catalogTopic, key, event)
}

// EventHandler routes incoming events by type
type EventHandler struct {
	onPriceComputed  func(context.Context, *models.PriceComputedEvent) error
	onCatalogChanged func(context.Context, *models.CatalogChangedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPriceComputed registers a handler for PriceComputed events
func (eh *EventHandler) OnPriceComputed(handler func(context.Context, *models.PriceComputedEvent) error) {
	eh.onPriceComputed = handler
}

// OnCatalogChanged registers a handler for CatalogChanged events
func (eh *EventHandler) OnCatalogChanged(handler func(context.Context, *models.CatalogChangedEvent) error) {
	eh.onCatalogChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePriceComputed:
		if eh.onPriceComputed != nil {
			var event models.PriceComputedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PriceComputed event: %w", err)
			}
			return eh.onPriceComputed(ctx, &event)
		}

	case models.EventTypeCatalogChanged:
		if eh.onCatalogChanged != nil {
			var event models.CatalogChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CatalogChanged event: %w", err)
			}
			return eh.onCatalogChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
