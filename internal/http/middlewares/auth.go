package middlewares

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/mercadorhq/mercador/internal/http/errors"
	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/sessions"
	"github.com/mercadorhq/mercador/internal/store"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARES
// =================================================================================

// RequireAuth valida Authorization: Bearer <token> en tres pasos:
//  1. el Identity Provider resuelve el token a un usuario (sin validación
//     criptográfica local, el provider es la autoridad),
//  2. debe existir un record session:<token> vivo en el Session Store,
//  3. el perfil local debe existir y no estar soft-deleted.
//
// Cualquier fallo responde 401 con mensaje genérico, sin detalle interno.
func RequireAuth(provider identity.Provider, sess *sessions.SessionStore, profiles store.ProfileRepository) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}

			ctx := r.Context()
			log := logger.From(ctx).With(logger.Component("middlewares.auth"))

			// Paso 1: el provider resuelve el token
			info, err := provider.ResolveToken(ctx, token)
			if err != nil {
				if !stderrors.Is(err, identity.ErrTokenInvalid) {
					log.Warn("token resolution failed", logger.Err(err))
				}
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}

			// Paso 2: la sesión debe seguir viva en el Session Store
			if _, err := sess.GetSession(ctx, token); err != nil {
				if !sessions.IsNotFound(err) {
					log.Warn("session lookup failed", logger.Err(err))
				}
				errors.WriteError(w, errors.ErrSessionExpired)
				return
			}

			// Paso 3: perfil local (role + soft-delete)
			profile, err := profiles.GetByID(ctx, info.UserID)
			if err != nil || profile.IsDeleted() {
				if err != nil && !stderrors.Is(err, store.ErrNotFound) {
					log.Warn("profile lookup failed", logger.Err(err))
				}
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}

			ctx = WithIdentity(ctx, Identity{
				UserID: profile.ID,
				Email:  profile.Email,
				Role:   profile.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole exige un rol exacto en la identidad del contexto.
// Debe usarse después de RequireAuth.
func RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r.Context())
			if !ok {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			if id.Role != role {
				errors.WriteError(w, errors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extrae el token del header Authorization.
func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}
