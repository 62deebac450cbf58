package middlewares

import (
	"net/http"
	"strings"
)

// SessionCookieName es la cookie que setea el login final.
// Su valor es el JWT de acceso (tres segmentos header.payload.signature).
const SessionCookieName = "sb_access_token"

// WithSessionCookie normaliza clientes cookie-based y header-based a un solo
// code path: si no hay header Authorization pero sí cookie de sesión, copia
// el valor de la cookie como Bearer antes de seguir. El middleware de
// validación de abajo solo mira el header.
func WithSessionCookie(cookieName string) Middleware {
	if cookieName == "" {
		cookieName = SessionCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
				if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
					r.Header.Set("Authorization", "Bearer "+c.Value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
