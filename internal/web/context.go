package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/clodoo/internal/core"
)

// withOrigin records the submitter of a run for the run history.
func withOrigin(r *http.Request) context.Context {
	// RemoteAddr was already rewritten by TrustedRealIP.
	return core.ContextWithOrigin(r.Context(), r.RemoteAddr, r.UserAgent())
}
