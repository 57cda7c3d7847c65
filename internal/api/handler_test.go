package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"pharmacy-service/config"
	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/broker"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/service"
	"pharmacy-service/internal/session"
	"pharmacy-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "pharmacy.db")
	st, err := store.NewStore(config.DatabaseConfig{
		Driver: store.DriverSQLite,
		URL:    path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	_, err = st.Migrate(context.Background())
	require.NoError(t, err)

	records := service.NewRecordService(st, broker.NoopPublisher{}, config.BusinessConfig{
		ExpiryWindowDays:  30,
		LowStockThreshold: 10,
		NearExpiryDays:    30,
	})
	accounts := service.NewAccountService(st, session.NewMemoryStore(), auth.NewIssuer("test-secret", time.Hour))

	router := gin.New()
	NewHandler(records, accounts, st).SetupRoutes(router)
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login() {
	s.t.Helper()
	creds := gin.H{"username": "pharmacist", "password": "Str0ng!Pass"}
	w := s.do(http.MethodPost, "/api/v1/accounts", creds)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/sessions", creds)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var resp service.LoginResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	s.token = resp.Token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func expiry(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DisplayDateLayout)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", nil).Code)
}

func TestRecordsRequireSession(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/records/suppliers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.token = "garbage"
	w = s.do(http.MethodGet, "/api/v1/records/suppliers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecordLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.login()

	supplier := gin.H{"fields": gin.H{
		"supplier_id": "S001", "s_name": "MedLine", "contact_number": "9876543210",
		"email": "orders@medline.in", "address": "Chennai",
	}}
	w := s.do(http.MethodPost, "/api/v1/records/supplier", supplier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/records/supplier", supplier)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate", errorCode(t, w))

	w = s.do(http.MethodPost, "/api/v1/records/medicines", gin.H{"fields": gin.H{
		"medicine_id": "M001", "m_name": "Paracetamol", "brand": "Calpol", "batch_number": "BATCH001",
		"expiry_date": expiry(10), "quantity": "10", "price": "50", "supplier_id": "S001",
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/records/medicines", gin.H{"fields": gin.H{
		"medicine_id": "M001", "m_name": "Paracetamol", "brand": "Calpol", "batch_number": "BATCH001",
		"expiry_date": expiry(120), "quantity": "10", "price": "50", "supplier_id": "S001",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/records/customer", gin.H{"fields": gin.H{
		"customer_id": "C001", "c_name": "Asha Rao", "contact_number": "0123456789",
		"email": "asha@example.com", "address": "Pune",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "format", errorCode(t, w))

	w = s.do(http.MethodPost, "/api/v1/records/customer", gin.H{"fields": gin.H{
		"customer_id": "C001", "c_name": "Asha Rao", "contact_number": "9123456789",
		"email": "asha@example.com", "address": "Pune",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/records/sale", gin.H{"fields": gin.H{
		"sale_id": "S001", "customer_id": "C001", "sale_date": expiry(0),
		"total_amount": "300", "payment_method": "UPI",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/records/sale-items", gin.H{
		"discount": "FirstTimeBuyerDiscount",
		"fields": gin.H{
			"sale_item_id": "SI001", "sale_id": "S001", "medicine_id": "M001",
			"quantity": "3", "price_per_unit": "50",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res service.ActionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.Subtotal)
	assert.Equal(t, 120.0, *res.Subtotal)

	w = s.do(http.MethodPost, "/api/v1/records/sale-items", gin.H{"fields": gin.H{
		"sale_item_id": "SI002", "sale_id": "S001", "medicine_id": "M001",
		"quantity": "8", "price_per_unit": "50",
	}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "stock_insufficient", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/v1/records/medicine/M001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var med models.Medicine
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &med))
	assert.Equal(t, 7, med.Quantity)

	w = s.do(http.MethodGet, "/api/v1/reports/low-stock?threshold=8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "M001")

	w = s.do(http.MethodGet, "/api/v1/reports/low-stock?threshold=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/records/supplier/S009", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/records/customer/C001/check?mode=insert", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/records/customer/C002/check?mode=insert", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPut, "/api/v1/records/customer/C001", gin.H{"fields": gin.H{
		"customer_id": "C002", "c_name": "Asha Rao", "contact_number": "9123456789",
		"email": "asha@example.com", "address": "Pune",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/records/customer/%20C001", gin.H{"fields": gin.H{
		"customer_id": "C001 ", "c_name": "Asha Rao", "contact_number": "9123456789",
		"email": "asha.rao@example.com", "address": "Pune",
	}})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/records/vendors", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	s := newTestServer(t)
	s.login()

	w := s.do(http.MethodDelete, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/records/suppliers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Format("x", "bad"), http.StatusBadRequest},
		{apperr.NotFound("x", "missing"), http.StatusNotFound},
		{apperr.Duplicate("x", "again"), http.StatusConflict},
		{apperr.New(apperr.KindStockInsufficient, "", "short"), http.StatusConflict},
		{apperr.Constraint("x", "range"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.KindUnauthorized, "", "who"), http.StatusUnauthorized},
		{apperr.Wrap(apperr.KindConnection, errors.New("dial"), "down"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(apperr.KindOf(tt.err)), tt.err.Error())
	}
}
