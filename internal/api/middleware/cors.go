package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the mobile web client to call the API from the given origins.
// A "*" entry allows any origin without credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Cache", "X-Request-Id", "X-Trace-Id"},
		AllowCredentials: !wildcard,
		MaxAge:           3600,
	})
	return c.Handler
}
