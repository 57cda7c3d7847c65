package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"pharmacy-service/config"
	"pharmacy-service/internal/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresStore opens a store on a throwaway schema of TEST_DATABASE_URL
func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires postgres (set TEST_DATABASE_URL)")
	}

	admin, err := NewStore(config.DatabaseConfig{Driver: DriverPostgres, URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { admin.Close() })

	schema := "pharmacy_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Execute(context.Background(), "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Execute(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})

	s, err := NewStore(config.DatabaseConfig{
		Driver: DriverPostgres,
		URL:    withQueryParam(url, "search_path="+schema),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresMigrationsAndStockTrigger(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	n, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Migrations), n)

	n, err = s.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.VerifyStockGuards(ctx))

	seed(t, s)

	err = insertSaleItem(ctx, s, "SI000", "M001", 0)
	assert.True(t, errors.Is(err, apperr.ErrConstraint), err)

	err = insertSaleItem(ctx, s, "SI000", "M001", 11)
	assert.True(t, errors.Is(err, apperr.ErrStockInsufficient), err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"SI001", "SI002"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = insertSaleItem(ctx, s, id, "M001", 6)
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, apperr.ErrStockInsufficient), err)
		}
	}
	assert.Equal(t, 1, failures)

	stock, err := s.MedicineStock(ctx, "M001")
	require.NoError(t, err)
	assert.Equal(t, 4, stock)

	_, err = s.Execute(ctx, "DELETE FROM supplier WHERE supplier_id = ?", "S001")
	assert.True(t, errors.Is(err, apperr.ErrConstraint), err)
}
