package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(Conflict("insufficient stock")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	// wrapped errors still resolve
	wrapped := fmt.Errorf("outer: %w", Forbidden("nope"))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
}

func TestWithContext(t *testing.T) {
	err := Conflict("insufficient stock").
		With("available_stock", 3).
		With("product_id", int64(7))

	ctx := ContextOf(err)
	assert.Equal(t, 3, ctx["available_stock"])
	assert.Equal(t, int64(7), ctx["product_id"])

	assert.Nil(t, ContextOf(errors.New("plain")))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "cart is empty", MessageOf(BadRequest("cart is empty")))
	// raw errors never leak their text to the client
	assert.Equal(t, "internal server error", MessageOf(errors.New("pq: deadlock detected")))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{BadRequest("bad"), http.StatusBadRequest},
		{AuthRequired("login"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("taken"), http.StatusConflict},
		{Internal("boom", errors.New("cause")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to load product", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
