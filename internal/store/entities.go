package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/records"
)

func selectColumns(schema *records.Schema) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(schema.Columns(), ", "), schema.Table())
}

func (s *Store) getByKey(ctx context.Context, entity models.Entity, id string, dest any) error {
	schema, ok := records.For(entity)
	if !ok {
		return apperr.Format("entity", "unknown entity %q", entity)
	}
	query := selectColumns(schema) + " WHERE " + schema.Key() + " = ?"
	err := s.Get(ctx, dest, query, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound(schema.Key(), "%s ID %s does not exist", entity, id)
	}
	return err
}

func (s *Store) listAll(ctx context.Context, entity models.Entity, dest any) error {
	schema, ok := records.For(entity)
	if !ok {
		return apperr.Format("entity", "unknown entity %q", entity)
	}
	return s.Fetch(ctx, dest, selectColumns(schema)+" ORDER BY "+schema.Key())
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	var row models.Supplier
	if err := s.getByKey(ctx, models.EntitySupplier, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) GetMedicine(ctx context.Context, id string) (*models.Medicine, error) {
	var row models.Medicine
	if err := s.getByKey(ctx, models.EntityMedicine, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var row models.Customer
	if err := s.getByKey(ctx, models.EntityCustomer, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) GetPrescription(ctx context.Context, id string) (*models.Prescription, error) {
	var row models.Prescription
	if err := s.getByKey(ctx, models.EntityPrescription, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	var row models.Sale
	if err := s.getByKey(ctx, models.EntitySale, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) GetSaleItem(ctx context.Context, id string) (*models.SaleItem, error) {
	var row models.SaleItem
	if err := s.getByKey(ctx, models.EntitySaleItem, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetRecord loads one row of any entity
func (s *Store) GetRecord(ctx context.Context, entity models.Entity, id string) (any, error) {
	switch entity {
	case models.EntitySupplier:
		return s.GetSupplier(ctx, id)
	case models.EntityMedicine:
		return s.GetMedicine(ctx, id)
	case models.EntityCustomer:
		return s.GetCustomer(ctx, id)
	case models.EntityPrescription:
		return s.GetPrescription(ctx, id)
	case models.EntitySale:
		return s.GetSale(ctx, id)
	case models.EntitySaleItem:
		return s.GetSaleItem(ctx, id)
	default:
		return nil, apperr.Format("entity", "unknown entity %q", entity)
	}
}

// List loads every row of an entity ordered by key
func (s *Store) List(ctx context.Context, entity models.Entity) (any, error) {
	var err error
	switch entity {
	case models.EntitySupplier:
		rows := []models.Supplier{}
		err = s.listAll(ctx, entity, &rows)
		return rows, err
	case models.EntityMedicine:
		rows := []models.Medicine{}
		err = s.listAll(ctx, entity, &rows)
		return rows, err
	case models.EntityCustomer:
		rows := []models.Customer{}
		err = s.listAll(ctx, entity, &rows)
		return rows, err
	case models.EntityPrescription:
		rows := []models.Prescription{}
		err = s.listAll(ctx, entity, &rows)
		return rows, err
	case models.EntitySale:
		rows := []models.Sale{}
		err = s.listAll(ctx, entity, &rows)
		return rows, err
	case models.EntitySaleItem:
		rows := []models.SaleItem{}
		err = s.listAll(ctx, entity, &rows)
		return rows, err
	default:
		return nil, apperr.Format("entity", "unknown entity %q", entity)
	}
}
