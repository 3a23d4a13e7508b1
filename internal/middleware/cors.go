// Package middleware holds small chi-compatible HTTP middleware shared by
// the adaptor's dashboard surface.
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORSMiddleware builds the dashboard's CORS policy. allowedOrigins comes
// from server.dashboardAllowedOrigins; an empty list falls back to "*" only
// when AllowCredentials is off, since browsers reject a wildcard origin
// alongside credentialed requests.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowCredentials := true
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
		allowCredentials = false
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}


