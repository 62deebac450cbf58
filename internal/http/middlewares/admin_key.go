package middlewares

import (
	"net/http"

	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/security/apikey"
	"github.com/mercadorhq/mercador/internal/sessions"
	"github.com/mercadorhq/mercador/internal/store"
)

// AdminAPIKeyHeader es el header alternativo para automatización (CLI, CI).
const AdminAPIKeyHeader = "X-Admin-API-Key"

// RequireAdmin protege rutas administrativas. Acepta dos credenciales:
// una API key válida en X-Admin-API-Key (automatización), o una sesión
// normal con rol admin (RequireAuth + RequireRole).
func RequireAdmin(verifier *apikey.Verifier, provider identity.Provider, sess *sessions.SessionStore, profiles store.ProfileRepository) Middleware {
	sessionGate := func(next http.Handler) http.Handler {
		return Chain(next, RequireAuth(provider, sess, profiles), RequireRole("admin"))
	}
	return func(next http.Handler) http.Handler {
		viaSession := sessionGate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get(AdminAPIKeyHeader); key != "" && verifier != nil && verifier.Verify(key) {
				ctx := WithIdentity(r.Context(), Identity{UserID: "admin-api-key", Role: "admin"})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			viaSession.ServeHTTP(w, r)
		})
	}
}
