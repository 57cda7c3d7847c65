package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/models"
)

const customerHistoryQuery = `
	SELECT c.customer_id, c.c_name AS customer_name,
		p.prescription_id, m.m_name AS medicine_name,
		si.quantity, s.sale_date,
		(SELECT MAX(p1.prescription_id) FROM prescription p1
			WHERE p1.customer_id = c.customer_id) AS most_recent_prescription_id
	FROM customer c
	JOIN prescription p ON c.customer_id = p.customer_id
	JOIN sales s ON c.customer_id = s.customer_id
	JOIN sales_items si ON si.sale_id = s.sale_id
	JOIN medicine m ON m.medicine_id = si.medicine_id
	WHERE c.customer_id = ?
	ORDER BY s.sale_date, si.sale_item_id, p.prescription_id`

// CustomerHistory returns every purchase line paired with each of the
// customer's prescriptions
func (s *Store) CustomerHistory(ctx context.Context, customerID string) ([]models.CustomerHistoryRow, error) {
	rows := []models.CustomerHistoryRow{}
	if err := s.Fetch(ctx, &rows, customerHistoryQuery, customerID); err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", customerID, err)
	}
	return rows, nil
}

// NearExpiry returns medicines expiring on or before cutoff, soonest first
func (s *Store) NearExpiry(ctx context.Context, now, cutoff time.Time) ([]models.NearExpiryRow, error) {
	rows := []models.NearExpiryRow{}
	err := s.Fetch(ctx, &rows,
		"SELECT medicine_id, m_name, expiry_date FROM medicine WHERE expiry_date <= ? ORDER BY expiry_date, medicine_id",
		cutoff.Format(models.StorageDateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to load near-expiry medicines: %w", err)
	}

	today := models.NewDate(now).Time
	for i := range rows {
		rows[i].DaysRemaining = int(rows[i].ExpiryDate.Sub(today).Hours() / 24)
	}
	return rows, nil
}

// LowStock returns medicines whose quantity is below threshold
func (s *Store) LowStock(ctx context.Context, threshold int) ([]models.LowStockRow, error) {
	rows := []models.LowStockRow{}
	err := s.Fetch(ctx, &rows,
		"SELECT medicine_id, m_name, quantity FROM medicine WHERE quantity < ? ORDER BY quantity, medicine_id",
		threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to load low-stock medicines: %w", err)
	}
	return rows, nil
}

// MedicineStock returns the remaining quantity of one medicine
func (s *Store) MedicineStock(ctx context.Context, medicineID string) (int, error) {
	var qty int
	err := s.Get(ctx, &qty, "SELECT quantity FROM medicine WHERE medicine_id = ?", medicineID)
	if errors.Is(err, apperr.ErrNotFound) {
		return 0, apperr.NotFound("medicine_id", "medicine ID %s does not exist", medicineID)
	}
	if err != nil {
		return 0, err
	}
	return qty, nil
}
