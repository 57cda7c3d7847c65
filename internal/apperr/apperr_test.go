package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("insert sale item: %w", Wrap(KindStockInsufficient, errors.New("driver"), "insufficient stock"))

	assert.True(t, errors.Is(err, ErrStockInsufficient))
	assert.False(t, errors.Is(err, ErrConstraint))
	assert.Equal(t, KindStockInsufficient, KindOf(err))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestErrorMessage(t *testing.T) {
	err := Format("contact_number", "must be 10 digits")
	assert.Equal(t, "contact_number: must be 10 digits", err.Error())
	assert.Equal(t, "contact_number", FieldOf(fmt.Errorf("wrapped: %w", err)))

	assert.Equal(t, "not_found", ErrNotFound.Error())
}

func TestJoinedErrorsStillMatch(t *testing.T) {
	err := errors.Join(
		fmt.Errorf("insert supplier: %w", Duplicate("supplier_id", "S001 already exists")),
		fmt.Errorf("delete medicine: %w", NotFound("medicine_id", "M404 does not exist")),
	)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConnection))
}
