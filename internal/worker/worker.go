package worker

import (
	"context"
	"fmt"
	"time"

	"pharmacy-service/internal/broker"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockReader is the slice of the store the worker needs
type StockReader interface {
	MedicineStock(ctx context.Context, medicineID string) (int, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// StockLowPublisher announces medicines that fell under the threshold
type StockLowPublisher interface {
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// StockAlertWorker watches sale-item events and raises low stock alerts
type StockAlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        StockReader
	publisher    StockLowPublisher
	threshold    int
	logger       *zap.Logger
}

// NewStockAlertWorker creates a new stock alert worker
func NewStockAlertWorker(
	consumer *broker.Consumer,
	store StockReader,
	publisher StockLowPublisher,
	threshold int,
) *StockAlertWorker {
	w := &StockAlertWorker{
		consumer:  consumer,
		store:     store,
		publisher: publisher,
		threshold: threshold,
		logger:    util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnSaleItemRecorded(w.HandleSaleItemRecorded)
	return w
}

// Start starts the worker
func (w *StockAlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock alert worker", zap.Int("threshold", w.threshold))
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockAlertWorker) Stop() error {
	w.logger.Info("Stopping stock alert worker")
	return w.consumer.Close()
}

// HandleSaleItemRecorded checks the remaining stock of the sold medicine.
// Each event is handled once.
func (w *StockAlertWorker) HandleSaleItemRecorded(ctx context.Context, event *models.SaleItemRecordedEvent) error {
	ctx, span := util.StartSpan(ctx, "StockAlertWorker.HandleSaleItemRecorded")
	defer span.End()

	done, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event %s: %w", event.EventID, err)
	}
	if done {
		w.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	remaining, err := w.store.MedicineStock(ctx, event.MedicineID)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to read stock for %s: %w", event.MedicineID, err)
	}

	if remaining < w.threshold {
		util.LowStockAlertsTotal.Inc()
		w.logger.Warn("Low stock",
			zap.String("medicine_id", event.MedicineID),
			zap.Int("remaining", remaining),
			zap.Int("threshold", w.threshold),
			zap.String("sale_item_id", event.SaleItemID))

		alert := &models.StockLowEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockLow,
				ActionID:  event.ActionID,
				Timestamp: time.Now(),
			},
			MedicineID: event.MedicineID,
			Remaining:  remaining,
			Threshold:  w.threshold,
		}
		if err := w.publisher.PublishStockLow(ctx, alert); err != nil {
			w.logger.Error("Failed to publish stock low event", zap.Error(err))
		}
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
