package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akarpov/ak-go-cashback/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignatureHandler_SignatureHandle(t *testing.T) {
	cfg := &config.PayoutConfig{WebhookSecret: "whsec"}
	handler, err := NewSignatureHandler(cfg)
	require.NoError(t, err)

	body := `{"event":"payout.processed"}`
	var seenBody string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.WriteHeader(http.StatusOK)
	})
	wrapped := handler.SignatureHandle(next)

	t.Run("ValidSignaturePassesBodyThrough", func(t *testing.T) {
		seenBody = ""
		r := httptest.NewRequest(http.MethodPost, "/api/webhook/payout", strings.NewReader(body))
		r.Header.Set("X-Payout-Signature", signBody("whsec", body))
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, seenBody)
	})

	t.Run("MissingSignature", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/webhook/payout", strings.NewReader(body))
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/webhook/payout", strings.NewReader(body))
		r.Header.Set("X-Payout-Signature", signBody("other", body))
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("TamperedBody", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/webhook/payout", strings.NewReader(`{"event":"payout.failed"}`))
		r.Header.Set("X-Payout-Signature", signBody("whsec", body))
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAPIKeyHandler_APIKeyHandle(t *testing.T) {
	cfg := &config.ServerConfig{CallbackAPIKey: "cbkey"}
	handler, err := NewAPIKeyHandler(cfg)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := handler.APIKeyHandle(next)

	t.Run("ValidKey", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/callback/postback", nil)
		r.Header.Set("X-Api-Key", "cbkey")
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("MissingKey", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/callback/postback", nil)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongKey", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/callback/postback", nil)
		r.Header.Set("X-Api-Key", "nope")
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
