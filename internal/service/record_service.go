package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"pharmacy-service/config"
	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/command"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/pricing"
	"pharmacy-service/internal/records"
	"pharmacy-service/internal/store"
	"pharmacy-service/internal/util"
	"pharmacy-service/internal/validate"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EventPublisher is implemented by broker.EventPublisher and broker.NoopPublisher
type EventPublisher interface {
	PublishRecordChanged(ctx context.Context, event *models.RecordChangedEvent) error
	PublishSaleItemRecorded(ctx context.Context, event *models.SaleItemRecordedEvent) error
}

// RecordService validates and persists pharmacy records
type RecordService struct {
	store          *store.Store
	eventPublisher EventPublisher
	business       config.BusinessConfig
	now            func() time.Time
	logger         *zap.Logger
}

// NewRecordService creates a new record service
func NewRecordService(
	store *store.Store,
	eventPublisher EventPublisher,
	business config.BusinessConfig,
) *RecordService {
	return &RecordService{
		store:          store,
		eventPublisher: eventPublisher,
		business:       business,
		now:            time.Now,
		logger:         util.GetLogger(),
	}
}

// ActionRequest carries the raw input of one insert or update
type ActionRequest struct {
	Entity   models.Entity     `json:"entity"`
	Fields   map[string]string `json:"fields" binding:"required"`
	Discount string            `json:"discount,omitempty"`
}

// ActionResult reports a committed write
type ActionResult struct {
	ActionID  string        `json:"action_id"`
	Entity    models.Entity `json:"entity"`
	RecordID  string        `json:"record_id"`
	Operation string        `json:"operation"`
	Subtotal  *float64      `json:"subtotal,omitempty"`
}

// Check modes for CheckID
const (
	CheckFormat    = "format"
	CheckInsert    = "insert"
	CheckReference = "reference"
)

func (s *RecordService) validator() *records.Validator {
	return &records.Validator{
		Lookup:           s.store,
		Now:              s.now,
		ExpiryWindowDays: s.business.ExpiryWindowDays,
	}
}

func schemaFor(entity models.Entity) (*records.Schema, error) {
	schema, ok := records.For(entity)
	if !ok {
		return nil, apperr.Format("entity", "unknown entity %q", entity)
	}
	return schema, nil
}

// Insert validates and inserts one record
func (s *RecordService) Insert(ctx context.Context, req *ActionRequest) (*ActionResult, error) {
	return s.write(ctx, req, records.Insert)
}

// Update validates and rewrites one record in place
func (s *RecordService) Update(ctx context.Context, req *ActionRequest) (*ActionResult, error) {
	return s.write(ctx, req, records.Update)
}

func (s *RecordService) write(ctx context.Context, req *ActionRequest, op records.Op) (*ActionResult, error) {
	spanName := "RecordService.Insert"
	if op == records.Update {
		spanName = "RecordService.Update"
	}
	ctx, span := util.StartSpan(ctx, spanName, attribute.String("entity", string(req.Entity)))
	defer span.End()

	actionID := uuid.New().String()
	logger := s.logger.With(zap.String("action_id", actionID), zap.String("entity", string(req.Entity)))

	schema, err := schemaFor(req.Entity)
	if err != nil {
		return nil, err
	}

	policy, err := pricing.Parse(req.Discount)
	if err != nil {
		return nil, s.reject(req.Entity, err)
	}
	if req.Discount != "" && req.Entity != models.EntitySaleItem {
		return nil, s.reject(req.Entity, apperr.Format("discount", "discounts apply to sale items only"))
	}

	rec := records.New(schema, req.Fields).WithDiscount(policy)
	if err := rec.Validate(ctx, s.validator(), op); err != nil {
		util.RecordError(span, err)
		return nil, s.reject(req.Entity, err)
	}

	queue := command.NewQueue()
	if op == records.Insert {
		queue.Add(command.NewInsertCommand(rec))
	} else {
		queue.Add(command.NewUpdateCommand(rec))
	}

	if err := queue.RunAll(ctx, s.store); err != nil {
		util.RecordError(span, err)
		if errors.Is(err, apperr.ErrStockInsufficient) {
			util.StockRejectionsTotal.Inc()
			logger.Warn("Sale item rejected for insufficient stock",
				zap.String("medicine_id", rec.Raw("medicine_id")),
				zap.String("quantity", rec.Raw("quantity")))
		}
		return nil, s.reject(req.Entity, err)
	}

	operation := models.OperationInsert
	if op == records.Update {
		operation = models.OperationUpdate
	}
	util.RecordsWrittenTotal.WithLabelValues(string(req.Entity), operation).Inc()
	logger.Info("Record written", zap.String("record_id", rec.ID()), zap.String("operation", operation))

	result := &ActionResult{
		ActionID:  actionID,
		Entity:    req.Entity,
		RecordID:  rec.ID(),
		Operation: operation,
	}

	s.publishRecordChanged(ctx, actionID, req.Entity, rec.ID(), operation)

	if req.Entity == models.EntitySaleItem {
		subtotal, _ := rec.Value("subtotal").(float64)
		result.Subtotal = &subtotal
		if op == records.Insert {
			s.publishSaleItem(ctx, actionID, rec, subtotal)
		}
	}

	return result, nil
}

// Delete removes one record after reconfirming it exists
func (s *RecordService) Delete(ctx context.Context, entity models.Entity, id string) (*ActionResult, error) {
	ctx, span := util.StartSpan(ctx, "RecordService.Delete", attribute.String("entity", string(entity)))
	defer span.End()

	actionID := uuid.New().String()

	schema, err := schemaFor(entity)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if err := validate.ID(entity, id); err != nil {
		return nil, s.reject(entity, err)
	}

	exists, err := s.store.Exists(ctx, entity, id)
	if err != nil {
		util.RecordError(span, err)
		return nil, s.reject(entity, err)
	}
	if !exists {
		return nil, s.reject(entity, apperr.NotFound(schema.Key(), "%s ID %s does not exist", entity, id))
	}

	queue := command.NewQueue()
	queue.Add(command.NewDeleteCommand(schema, id))
	if err := queue.RunAll(ctx, s.store); err != nil {
		util.RecordError(span, err)
		return nil, s.reject(entity, err)
	}

	util.RecordsWrittenTotal.WithLabelValues(string(entity), models.OperationDelete).Inc()
	s.logger.Info("Record deleted",
		zap.String("action_id", actionID),
		zap.String("entity", string(entity)),
		zap.String("record_id", id))

	s.publishRecordChanged(ctx, actionID, entity, id, models.OperationDelete)

	return &ActionResult{
		ActionID:  actionID,
		Entity:    entity,
		RecordID:  id,
		Operation: models.OperationDelete,
	}, nil
}

// CheckID validates an identifier's format and, depending on mode, whether it
// may be used as a new key (insert) or must already exist (reference).
func (s *RecordService) CheckID(ctx context.Context, entity models.Entity, id, mode string) error {
	schema, err := schemaFor(entity)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := validate.ID(entity, id); err != nil {
		return err
	}
	if mode == "" || mode == CheckFormat {
		return nil
	}
	if mode != CheckInsert && mode != CheckReference {
		return apperr.Format("mode", "unknown check mode %q", mode)
	}

	exists, err := s.store.Exists(ctx, entity, id)
	if err != nil {
		return err
	}
	switch {
	case mode == CheckInsert && exists:
		return apperr.Duplicate(schema.Key(), "%s ID %s already exists", entity, id)
	case mode == CheckReference && !exists:
		return apperr.NotFound(schema.Key(), "%s ID %s does not exist", entity, id)
	}
	return nil
}

// Get loads one record
func (s *RecordService) Get(ctx context.Context, entity models.Entity, id string) (any, error) {
	ctx, span := util.StartSpan(ctx, "RecordService.Get")
	defer span.End()

	if err := validate.ID(entity, strings.TrimSpace(id)); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, entity, strings.TrimSpace(id))
}

// List loads every record of an entity
func (s *RecordService) List(ctx context.Context, entity models.Entity) (any, error) {
	ctx, span := util.StartSpan(ctx, "RecordService.List")
	defer span.End()

	if _, err := schemaFor(entity); err != nil {
		return nil, err
	}
	return s.store.List(ctx, entity)
}

// CustomerHistory returns the purchase history of an existing customer
func (s *RecordService) CustomerHistory(ctx context.Context, customerID string) ([]models.CustomerHistoryRow, error) {
	ctx, span := util.StartSpan(ctx, "RecordService.CustomerHistory")
	defer span.End()

	if err := s.CheckID(ctx, models.EntityCustomer, customerID, CheckReference); err != nil {
		return nil, err
	}
	return s.store.CustomerHistory(ctx, strings.TrimSpace(customerID))
}

// NearExpiry lists medicines expiring within days; 0 uses the configured window
func (s *RecordService) NearExpiry(ctx context.Context, days int) ([]models.NearExpiryRow, error) {
	ctx, span := util.StartSpan(ctx, "RecordService.NearExpiry")
	defer span.End()

	if days < 0 {
		return nil, apperr.Constraint("days", "must not be negative, got %d", days)
	}
	if days == 0 {
		days = s.business.NearExpiryDays
	}
	now := s.now()
	cutoff := models.NewDate(now).AddDate(0, 0, days)
	return s.store.NearExpiry(ctx, now, cutoff)
}

// LowStock lists medicines under threshold; 0 uses the configured threshold
func (s *RecordService) LowStock(ctx context.Context, threshold int) ([]models.LowStockRow, error) {
	ctx, span := util.StartSpan(ctx, "RecordService.LowStock")
	defer span.End()

	if threshold < 0 {
		return nil, apperr.Constraint("threshold", "must not be negative, got %d", threshold)
	}
	if threshold == 0 {
		threshold = s.business.LowStockThreshold
	}
	return s.store.LowStock(ctx, threshold)
}

func (s *RecordService) reject(entity models.Entity, err error) error {
	util.ValidationFailuresTotal.WithLabelValues(string(entity), apperr.KindOf(err).String()).Inc()
	s.logger.Debug("Record action rejected",
		zap.String("entity", string(entity)),
		zap.String("field", apperr.FieldOf(err)),
		zap.Error(err))
	return err
}

func (s *RecordService) publishRecordChanged(ctx context.Context, actionID string, entity models.Entity, id, operation string) {
	event := &models.RecordChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRecordChanged,
			ActionID:  actionID,
			Timestamp: time.Now(),
		},
		Entity:    entity,
		RecordID:  id,
		Operation: operation,
	}
	if err := s.eventPublisher.PublishRecordChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish RecordChanged event", zap.Error(err))
	}
}

func (s *RecordService) publishSaleItem(ctx context.Context, actionID string, rec *records.Record, subtotal float64) {
	quantity, _ := rec.Value("quantity").(int)
	event := &models.SaleItemRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleItemRecorded,
			ActionID:  actionID,
			Timestamp: time.Now(),
		},
		SaleItemID: rec.ID(),
		SaleID:     rec.Raw("sale_id"),
		MedicineID: rec.Raw("medicine_id"),
		Quantity:   quantity,
		Subtotal:   subtotal,
		Discount:   rec.Discount().Name(),
	}
	if err := s.eventPublisher.PublishSaleItemRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleItemRecorded event", zap.Error(err), zap.String("sale_item_id", rec.ID()))
	}
}
