package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pharmacy-service/config"
	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/session"
	"pharmacy-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

type capturePublisher struct {
	mu        sync.Mutex
	changed   []*models.RecordChangedEvent
	saleItems []*models.SaleItemRecordedEvent
}

func (c *capturePublisher) PublishRecordChanged(_ context.Context, e *models.RecordChangedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changed = append(c.changed, e)
	return nil
}

func (c *capturePublisher) PublishSaleItemRecorded(_ context.Context, e *models.SaleItemRecordedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saleItems = append(c.saleItems, e)
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pharmacy.db")
	s, err := store.NewStore(config.DatabaseConfig{
		Driver: store.DriverSQLite,
		URL:    path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Migrate(context.Background())
	require.NoError(t, err)
	return s
}

func newRecordService(t *testing.T) (*RecordService, *store.Store, *capturePublisher) {
	t.Helper()
	st := newTestStore(t)
	pub := &capturePublisher{}
	svc := NewRecordService(st, pub, config.BusinessConfig{
		ExpiryWindowDays:  30,
		LowStockThreshold: 10,
		NearExpiryDays:    30,
	})
	svc.now = func() time.Time { return today }
	return svc, st, pub
}

func date(days int) string {
	return today.AddDate(0, 0, days).Format(models.DisplayDateLayout)
}

func mustInsert(t *testing.T, svc *RecordService, entity models.Entity, fields map[string]string) *ActionResult {
	t.Helper()
	res, err := svc.Insert(context.Background(), &ActionRequest{Entity: entity, Fields: fields})
	require.NoError(t, err, entity)
	return res
}

func seedPharmacy(t *testing.T, svc *RecordService) {
	t.Helper()
	mustInsert(t, svc, models.EntitySupplier, map[string]string{
		"supplier_id": "S001", "s_name": "MedLine", "contact_number": "9876543210",
		"email": "orders@medline.in", "address": "Chennai",
	})
	mustInsert(t, svc, models.EntityMedicine, map[string]string{
		"medicine_id": "M001", "m_name": "Paracetamol", "brand": "Calpol", "batch_number": "BATCH001",
		"expiry_date": date(180), "quantity": "10", "price": "50", "supplier_id": "S001",
	})
	mustInsert(t, svc, models.EntityCustomer, map[string]string{
		"customer_id": "C001", "c_name": "Asha Rao", "contact_number": "9123456789",
		"email": "asha@example.com", "address": "Pune",
	})
	mustInsert(t, svc, models.EntitySale, map[string]string{
		"sale_id": "S001", "customer_id": "C001", "sale_date": date(0),
		"total_amount": "135", "payment_method": "Cash",
	})
}

func saleItem(id string, qty string) map[string]string {
	return map[string]string{
		"sale_item_id": id, "sale_id": "S001", "medicine_id": "M001",
		"quantity": qty, "price_per_unit": "50.0",
	}
}

func TestInsertSaleItemWithDiscount(t *testing.T) {
	svc, st, pub := newRecordService(t)
	seedPharmacy(t, svc)
	ctx := context.Background()

	res, err := svc.Insert(ctx, &ActionRequest{
		Entity:   models.EntitySaleItem,
		Fields:   saleItem("SI001", "3"),
		Discount: "SeasonalDiscount",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Subtotal)
	assert.Equal(t, 135.0, *res.Subtotal)
	assert.NotEmpty(t, res.ActionID)

	item, err := st.GetSaleItem(ctx, "SI001")
	require.NoError(t, err)
	assert.Equal(t, 135.0, item.Subtotal)

	stock, err := st.MedicineStock(ctx, "M001")
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	require.Len(t, pub.saleItems, 1)
	assert.Equal(t, "SeasonalDiscount", pub.saleItems[0].Discount)
	assert.Equal(t, res.ActionID, pub.saleItems[0].ActionID)
}

func TestInsertSaleItemInsufficientStock(t *testing.T) {
	svc, st, pub := newRecordService(t)
	seedPharmacy(t, svc)
	ctx := context.Background()

	_, err := svc.Insert(ctx, &ActionRequest{Entity: models.EntitySaleItem, Fields: saleItem("SI001", "11")})
	assert.True(t, errors.Is(err, apperr.ErrStockInsufficient))

	exists, err := st.Exists(ctx, models.EntitySaleItem, "SI001")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, pub.saleItems)
}

func TestConcurrentSaleItemInserts(t *testing.T) {
	svc, st, _ := newRecordService(t)
	seedPharmacy(t, svc)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"SI001", "SI002"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.Insert(ctx, &ActionRequest{Entity: models.EntitySaleItem, Fields: saleItem(id, "6")})
		}(i, id)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, errors.Is(err, apperr.ErrStockInsufficient), err)
		}
	}
	assert.Equal(t, 1, failed)

	stock, err := st.MedicineStock(ctx, "M001")
	require.NoError(t, err)
	assert.Equal(t, 4, stock)
}

func TestPrescriptionForMissingCustomer(t *testing.T) {
	svc, st, pub := newRecordService(t)
	ctx := context.Background()

	_, err := svc.Insert(ctx, &ActionRequest{Entity: models.EntityPrescription, Fields: map[string]string{
		"prescription_id": "P001", "customer_id": "C404", "doctor_name": "Dr. Menon",
		"prescription_date": "05-Jan-24", "dosage": "500mg", "frequency": "twice daily",
		"duration": "5 days", "additional_instructions": "after food",
	}})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "customer_id", apperr.FieldOf(err))

	exists, err := st.Exists(ctx, models.EntityPrescription, "P001")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, pub.changed)
}

func TestMedicineExpiryWindow(t *testing.T) {
	svc, _, _ := newRecordService(t)
	seedPharmacy(t, svc)

	fields := func(id string, days int) map[string]string {
		return map[string]string{
			"medicine_id": id, "m_name": "Amoxicillin", "brand": "Mox", "batch_number": "BATCH002",
			"expiry_date": date(days), "quantity": "20", "price": "8.5", "supplier_id": "S001",
		}
	}

	_, err := svc.Insert(context.Background(), &ActionRequest{Entity: models.EntityMedicine, Fields: fields("M002", 30)})
	assert.True(t, errors.Is(err, apperr.ErrConstraint))

	_, err = svc.Insert(context.Background(), &ActionRequest{Entity: models.EntityMedicine, Fields: fields("M002", 31)})
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	svc, _, pub := newRecordService(t)
	seedPharmacy(t, svc)
	ctx := context.Background()

	_, err := svc.Delete(ctx, models.EntitySupplier, "S009")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = svc.Delete(ctx, models.EntitySupplier, "S1")
	assert.True(t, errors.Is(err, apperr.ErrFormat))

	// still referenced by M001
	_, err = svc.Delete(ctx, models.EntitySupplier, "S001")
	assert.True(t, errors.Is(err, apperr.ErrConstraint))

	res, err := svc.Delete(ctx, models.EntitySale, "S001")
	require.NoError(t, err)
	assert.Equal(t, models.OperationDelete, res.Operation)
	assert.Equal(t, models.OperationDelete, pub.changed[len(pub.changed)-1].Operation)
}

func TestUpdate(t *testing.T) {
	svc, st, _ := newRecordService(t)
	seedPharmacy(t, svc)
	ctx := context.Background()

	_, err := svc.Update(ctx, &ActionRequest{Entity: models.EntityCustomer, Fields: map[string]string{
		"customer_id": "C001", "c_name": "Asha R", "contact_number": "9123456789",
		"email": "asha.r@example.com", "address": "Mumbai",
	}})
	require.NoError(t, err)

	c, err := st.GetCustomer(ctx, "C001")
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", c.Address)

	_, err = svc.Update(ctx, &ActionRequest{Entity: models.EntityCustomer, Fields: map[string]string{
		"customer_id": "C002", "c_name": "Nobody", "contact_number": "9123456789",
		"email": "n@example.com", "address": "Goa",
	}})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDiscountOnlyForSaleItems(t *testing.T) {
	svc, _, _ := newRecordService(t)

	_, err := svc.Insert(context.Background(), &ActionRequest{
		Entity:   models.EntityCustomer,
		Discount: "SeasonalDiscount",
		Fields:   map[string]string{"customer_id": "C001"},
	})
	assert.True(t, errors.Is(err, apperr.ErrFormat))
	assert.Equal(t, "discount", apperr.FieldOf(err))
}

func TestCheckID(t *testing.T) {
	svc, _, _ := newRecordService(t)
	seedPharmacy(t, svc)
	ctx := context.Background()

	assert.NoError(t, svc.CheckID(ctx, models.EntityCustomer, "C002", CheckFormat))
	assert.True(t, errors.Is(svc.CheckID(ctx, models.EntityCustomer, "C0001", CheckFormat), apperr.ErrFormat))
	assert.True(t, errors.Is(svc.CheckID(ctx, models.EntityCustomer, "C001", CheckInsert), apperr.ErrDuplicate))
	assert.True(t, errors.Is(svc.CheckID(ctx, models.EntityCustomer, "C002", CheckReference), apperr.ErrNotFound))
	assert.NoError(t, svc.CheckID(ctx, models.EntityCustomer, "C001", CheckReference))
	assert.True(t, errors.Is(svc.CheckID(ctx, models.EntityCustomer, "C001", "sideways"), apperr.ErrFormat))
}

func TestReports(t *testing.T) {
	svc, _, _ := newRecordService(t)
	seedPharmacy(t, svc)
	ctx := context.Background()

	_, err := svc.Insert(ctx, &ActionRequest{Entity: models.EntitySaleItem, Fields: saleItem("SI001", "6")})
	require.NoError(t, err)

	low, err := svc.LowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, 4, low[0].Quantity)

	expiring, err := svc.NearExpiry(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, expiring)

	expiring, err = svc.NearExpiry(ctx, 365)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, 180, expiring[0].DaysRemaining)

	_, err = svc.CustomerHistory(ctx, "C404")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	history, err := svc.CustomerHistory(ctx, "C001")
	require.NoError(t, err)
	assert.Empty(t, history, "no prescription on file yet")
}

func newAccountService(t *testing.T) *AccountService {
	t.Helper()
	return NewAccountService(newTestStore(t), session.NewMemoryStore(), auth.NewIssuer("test-secret", time.Hour))
}

func TestCreateAccount(t *testing.T) {
	svc := newAccountService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateAccount(ctx, "pharmacist", "Str0ng!Pass"))

	err := svc.CreateAccount(ctx, "pharmacist", "weak")
	assert.True(t, errors.Is(err, apperr.ErrDuplicate), "duplicate is reported before password strength")

	err = svc.CreateAccount(ctx, "clerk", "password1")
	assert.True(t, errors.Is(err, apperr.ErrConstraint))

	ok, err := svc.ValidateLogin(ctx, "pharmacist", "Str0ng!Pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ValidateLogin(ctx, "Pharmacist", "Str0ng!Pass")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ValidateLogin(ctx, "pharmacist", "Str0ng!Pas")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginSessionLifecycle(t *testing.T) {
	svc := newAccountService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateAccount(ctx, "pharmacist", "Str0ng!Pass"))

	_, err := svc.Login(ctx, "pharmacist", "wrong")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	resp, err := svc.Login(ctx, "pharmacist", "Str0ng!Pass")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	sess, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "pharmacist", sess.Username)

	require.NoError(t, svc.Logout(ctx, resp.Token))
	_, err = svc.Authenticate(ctx, resp.Token)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}
