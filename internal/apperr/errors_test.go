package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("ORDER_NOT_FOUND", "Order not found: %d", 42))

	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "Order not found: 42", Message(err))
	assert.Equal(t, "ORDER_NOT_FOUND", Code(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInvalid, "INVALID_ORDER", cause, "Failed to reserve stock for product: %d", 3)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to reserve stock for product: 3: connection refused", err.Error())
	assert.Equal(t, "Failed to reserve stock for product: 3", Message(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"not found":          {err: NotFound("X", "x"), want: http.StatusNotFound},
		"invalid":            {err: Invalid("X", "x"), want: http.StatusBadRequest},
		"insufficient stock": {err: InsufficientStock("X", "x"), want: http.StatusConflict},
		"unavailable":        {err: Wrap(KindUnavailable, "X", errors.New("down"), "x"), want: http.StatusServiceUnavailable},
		"untyped":            {err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestMessageHidesUntypedErrors(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("pq: password authentication failed")))
	assert.Empty(t, Code(errors.New("boom")))
}
