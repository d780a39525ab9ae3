package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/akarpov/ak-go-cashback/internal/config"
)

// SignatureHandler sets object structure.
type SignatureHandler struct {
	cfg *config.PayoutConfig
}

// NewSignatureHandler initializes a new webhook signature handler.
func NewSignatureHandler(cfg *config.PayoutConfig) (*SignatureHandler, error) {
	if cfg == nil {
		return nil, errors.New("nil payout configuration was found")
	}
	return &SignatureHandler{cfg: cfg}, nil
}

// SignatureHandle verifies the payout provider webhook signature computed as
// HMAC-SHA256 over the raw request body. The body is restored for the next
// handler.
func (s *SignatureHandler) SignatureHandle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.Header.Get("X-Payout-Signature")
		if len(signature) == 0 {
			http.Error(w, "Signature required", http.StatusUnauthorized)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
