// Package middleware holds HTTP middleware shared by all routes.
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS returns the CORS middleware. An empty allowedOrigins list allows every origin
// (OBS browser sources and local overlays connect from arbitrary origins); entries may carry
// one wildcard, e.g. "https://*.example.com".
func NewCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	})
}
