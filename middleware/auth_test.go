package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func cronRequest(t *testing.T, configure func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	m := NewCronAuthMiddleware("cron-secret")
	called := false
	handler := m.WithAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/cron/daily-digest", nil)
	configure(req)
	recorder := httptest.NewRecorder()
	handler(recorder, req)

	if recorder.Code == http.StatusOK {
		assert.True(t, called, "next handler should run on success")
	} else {
		assert.False(t, called, "next handler must not run on auth failure")
	}
	return recorder
}

func TestCronAuth_SecretHeader(t *testing.T) {
	recorder := cronRequest(t, func(r *http.Request) {
		r.Header.Set("X-Cron-Secret", "cron-secret")
	})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCronAuth_BearerToken(t *testing.T) {
	recorder := cronRequest(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer cron-secret")
	})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCronAuth_WrongSecret(t *testing.T) {
	recorder := cronRequest(t, func(r *http.Request) {
		r.Header.Set("X-Cron-Secret", "guess")
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestCronAuth_MissingCredentials(t *testing.T) {
	recorder := cronRequest(t, func(r *http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestCronAuth_UnconfiguredSecretRejectsAll(t *testing.T) {
	m := NewCronAuthMiddleware("")
	handler := m.WithAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/cron/daily-digest", nil)
	req.Header.Set("X-Cron-Secret", "")
	recorder := httptest.NewRecorder()
	handler(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
