package websocket

import (
	"net/http"
	"os"
	"strings"
)

// AllowedOrigins is read from ALLOWED_ORIGINS at startup.
var AllowedOrigins = getAllowedOrigins()

// getAllowedOrigins parses the comma separated ALLOWED_ORIGINS variable and
// falls back to the local frontend.
func getAllowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// checkOrigin requires an exact, case-sensitive match. Requests without an
// Origin header are rejected.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
