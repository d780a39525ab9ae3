package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/akarpov/ak-go-cashback/internal/config"
)

// APIKeyHandler sets object structure.
type APIKeyHandler struct {
	cfg *config.ServerConfig
}

// NewAPIKeyHandler initializes a new API key handler.
func NewAPIKeyHandler(cfg *config.ServerConfig) (*APIKeyHandler, error) {
	if cfg == nil {
		return nil, errors.New("nil server configuration was found")
	}
	return &APIKeyHandler{cfg: cfg}, nil
}

// APIKeyHandle authenticates affiliate network callbacks via the X-Api-Key
// header.
func (a *APIKeyHandler) APIKeyHandle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-Api-Key")
		if len(apiKey) == 0 {
			http.Error(w, "API key required", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(a.cfg.CallbackAPIKey)) != 1 {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
