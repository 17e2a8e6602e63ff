package mw

import (
	"net/http"
	"strings"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/config"
)

const (
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsDefaultHeaders = "Content-Type, X-Request-ID"
	corsExposedHeaders = "X-Request-ID"
	corsMaxAge         = "600"
)

// CORS answers browser callers from the configured frontend origins with
// credentials allowed. Requested preflight headers are echoed back.
func CORS(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		listed := origin != "" && cfg.OriginAllowed(origin)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !listed {
				http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
				return
			}
			h := w.Header()
			setOriginHeaders(h, origin)
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			allowHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
			if allowHeaders == "" {
				allowHeaders = corsDefaultHeaders
			}
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusOK)
			return
		}

		if listed {
			setOriginHeaders(w.Header(), origin)
			w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
		}
		next.ServeHTTP(w, r)
	})
}

func setOriginHeaders(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Credentials", "true")
}
