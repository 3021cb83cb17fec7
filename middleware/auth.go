package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// CronAuthMiddleware guards the scheduled-job endpoints. Callers present
// either the shared X-Cron-Secret header or the same secret as a bearer token
// (the form the platform scheduler sends).
type CronAuthMiddleware struct {
	cronSecret string
}

// NewCronAuthMiddleware creates a new cron authentication middleware instance
func NewCronAuthMiddleware(cronSecret string) *CronAuthMiddleware {
	return &CronAuthMiddleware{cronSecret: cronSecret}
}

// WithAuth wraps an HTTP handler with cron secret authentication
func (m *CronAuthMiddleware) WithAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.cronSecret == "" {
			log.Printf("❌ Cron secret not configured - rejecting request")
			m.writeErrorResponse(w, "cron endpoints disabled", http.StatusUnauthorized)
			return
		}

		presented := r.Header.Get("X-Cron-Secret")
		if presented == "" {
			authHeader := r.Header.Get("Authorization")
			presented = strings.TrimPrefix(authHeader, "Bearer ")
			if presented == authHeader {
				presented = ""
			}
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(m.cronSecret)) != 1 {
			log.Printf("❌ Cron authentication failed from %s", r.RemoteAddr)
			m.writeErrorResponse(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// writeErrorResponse writes a standardized error response
func (m *CronAuthMiddleware) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("❌ Failed to encode error response: %v", err)
	}
}
