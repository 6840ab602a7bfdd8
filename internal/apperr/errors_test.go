package apperr

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("order %s not found", "x"), http.StatusNotFound},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{InvalidState("cannot cancel"), http.StatusBadRequest},
		{Validation("bad body"), http.StatusBadRequest},
		{Conflict("email taken"), http.StatusConflict},
		{InsufficientStock("p1", "Onions", 2, 5), http.StatusBadRequest},
	}
	for _, tc := range cases {
		appErr, ok := As(tc.err)
		require.True(t, ok)
		assert.Equal(t, tc.want, appErr.Status(), tc.err.Error())
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	err := errors.Wrap(NotFound("Supplier not found"), "placing order")

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, appErr.Kind)
	assert.Equal(t, "Supplier not found", appErr.Message)
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindForbidden))
}

func TestInsufficientStockDetails(t *testing.T) {
	appErr, ok := As(InsufficientStock("abc", "Tomatoes", 3, 10))
	require.True(t, ok)
	assert.Equal(t, "Insufficient stock for Tomatoes", appErr.Message)
	assert.Equal(t, 3, appErr.Details["available"])
	assert.Equal(t, 10, appErr.Details["requested"])
}

func TestPlainErrorIsNotAppError(t *testing.T) {
	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}
