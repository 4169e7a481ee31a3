package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdempotencyMiddleware(t *testing.T) {
	h := IdempotencyMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing key rejected")

	req = httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set("Idempotency-Key", "short")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "short key rejected")

	req = httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set("Idempotency-Key", "0123456789abcdef")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// GET passes without a key
	req = httptest.NewRequest(http.MethodGet, "/v1/reservations/x", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware("secret")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// reads stay open
	req = httptest.NewRequest(http.MethodGet, "/v1/spaces", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	open := AuthMiddleware("")(okHandler())
	req = httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
