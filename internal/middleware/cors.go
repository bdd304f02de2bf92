// Package middleware holds HTTP middleware shared by all routes.
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows any origin. The broker is called from a browser extension whose
// origin is not known in advance.
var CORS = cors.Handler(cors.Options{
	AllowedOrigins:       []string{"*"},
	AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders:       []string{"Content-Type", "Authorization", "X-Request-ID"},
	AllowCredentials:     false,
	MaxAge:               600,
	OptionsSuccessStatus: http.StatusNoContent,
})
