package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldErrors_CollectsEveryField(t *testing.T) {
	fe := FieldErrors{}
	fe.Add("warehouse", "required")
	fe.Add("warehouse", "ignored second message")
	fe.Merge("items[1].", FieldErrors{"qty": "must be > 0", "price": "must be >= 0"})

	err := fe.Err()
	require.Error(t, err)

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Equal(t, []string{"items[1].price", "items[1].qty", "warehouse"}, appErr.Details["fields"])
	assert.Equal(t, "required", appErr.Details["errors"].(map[string]string)["warehouse"])
}

func TestFieldErrors_EmptyIsNil(t *testing.T) {
	assert.NoError(t, FieldErrors{}.Err())
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	base := NewConcurrencyConflict("product", "p1")
	wrapped := fmt.Errorf("apply: %w", base)

	assert.True(t, IsConcurrencyConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestStorageError_HidesCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewStorage(cause)

	assert.True(t, err.IsServerSide())
	assert.Equal(t, "Internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestBusinessErrors_Statuses(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{NewDocumentLocked("stock_in", "x"), CodeDocumentLocked, http.StatusConflict},
		{NewAlreadyConfirmed("x"), CodeAlreadyConfirmed, http.StatusConflict},
		{NewInsufficientStock("p", 6, 4), CodeInsufficientStock, http.StatusConflict},
		{NewInvalidQuantity(0, "zero"), CodeInvalidQuantity, http.StatusBadRequest},
		{NewInvalidType("MOVE"), CodeInvalidType, http.StatusBadRequest},
		{NewNotFound("stock_in", "x"), CodeNotFound, http.StatusNotFound},
		{NewReservationClosed("ORDER", "o-1", "p"), CodeReservationClosed, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.False(t, tt.err.IsServerSide())
		})
	}
}
