package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishRecordChanged publishes RecordChanged keyed by entity and id
func (ep *EventPublisher) PublishRecordChanged(ctx context.Context, event *models.RecordChangedEvent) error {
	key := fmt.Sprintf("%s-%s", event.Entity, event.RecordID)
	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// PublishSaleItemRecorded publishes SaleItemRecorded keyed by medicine so
// alerts for one medicine stay ordered
func (ep *EventPublisher) PublishSaleItemRecorded(ctx context.Context, event *models.SaleItemRecordedEvent) error {
	key := "medicine-" + event.MedicineID
	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// PublishStockLow publishes StockLow keyed by medicine
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	key := "medicine-" + event.MedicineID
	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// NoopPublisher drops events; used when Kafka is disabled
type NoopPublisher struct{}

func (NoopPublisher) PublishRecordChanged(context.Context, *models.RecordChangedEvent) error {
	return nil
}

func (NoopPublisher) PublishSaleItemRecorded(context.Context, *models.SaleItemRecordedEvent) error {
	return nil
}

func (NoopPublisher) PublishStockLow(context.Context, *models.StockLowEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onSaleItemRecorded func(context.Context, *models.SaleItemRecordedEvent) error
	onRecordChanged    func(context.Context, *models.RecordChangedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSaleItemRecorded registers a handler for SaleItemRecorded events
func (eh *EventHandler) OnSaleItemRecorded(handler func(context.Context, *models.SaleItemRecordedEvent) error) {
	eh.onSaleItemRecorded = handler
}

// OnRecordChanged registers a handler for RecordChanged events
func (eh *EventHandler) OnRecordChanged(handler func(context.Context, *models.RecordChangedEvent) error) {
	eh.onRecordChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg, headerEventType)
	if eventType == "" {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			return fmt.Errorf("failed to unmarshal base event: %w", err)
		}
		eventType = baseEvent.EventType
	}

	eh.logger.Debug("Handling event", zap.String("type", eventType), zap.ByteString("key", msg.Key))

	switch eventType {
	case models.EventTypeSaleItemRecorded:
		if eh.onSaleItemRecorded != nil {
			var event models.SaleItemRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleItemRecorded event: %w", err)
			}
			return eh.onSaleItemRecorded(ctx, &event)
		}

	case models.EventTypeRecordChanged:
		if eh.onRecordChanged != nil {
			var event models.RecordChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RecordChanged event: %w", err)
			}
			return eh.onRecordChanged(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", eventType))
	}

	return nil
}
