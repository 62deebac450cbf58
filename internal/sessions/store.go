package sessions

import (
	"context"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Prefijos del contrato de claves. Los valores son el user id a secas.
const (
	keySession    = "session:"
	keyRefresh    = "refresh:"
	keyMFAPending = "mfa_pending:"
)

// TTLs del contrato.
const (
	// PendingMFATTL es el TTL fijo del marker mfa_pending (300s).
	PendingMFATTL = 5 * time.Minute

	// DefaultRefreshTTL es la ventana default del refresh token (7 días).
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// SessionStore es el overlay tipado sobre Store que implementa el contrato
// de claves de autenticación. Todas las operaciones son un único
// read/write/delete atómico sobre el Store subyacente.
type SessionStore struct {
	store      Store
	refreshTTL time.Duration
}

// NewSessionStore crea el overlay. refreshTTL <= 0 usa DefaultRefreshTTL.
func NewSessionStore(store Store, refreshTTL time.Duration) *SessionStore {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &SessionStore{store: store, refreshTTL: refreshTTL}
}

// RefreshTTL retorna la ventana configurada para refresh tokens.
func (s *SessionStore) RefreshTTL() time.Duration { return s.refreshTTL }

// Raw expone el Store subyacente (healthz, stats).
func (s *SessionStore) Raw() Store { return s.store }

// ─── session:<token> ───

// PutSession escribe session:<token> → userID con el TTL dado.
// Invariante: la session record nunca sobrevive el expiry nominal del token;
// si el token es un JWT parseable con `exp` más cercano, el TTL se recorta.
func (s *SessionStore) PutSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.store.Set(ctx, keySession+token, userID, clampToTokenExpiry(token, ttl))
}

// GetSession retorna el userID de session:<token>, o ErrNotFound.
func (s *SessionStore) GetSession(ctx context.Context, token string) (string, error) {
	return s.store.Get(ctx, keySession+token)
}

// DeleteSession elimina session:<token>.
func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	return s.store.Delete(ctx, keySession+token)
}

// ─── refresh:<token> ───

// PutRefresh escribe refresh:<token> → userID con la ventana configurada.
func (s *SessionStore) PutRefresh(ctx context.Context, token, userID string) error {
	return s.store.Set(ctx, keyRefresh+token, userID, s.refreshTTL)
}

// GetRefresh retorna el userID de refresh:<token>, o ErrNotFound.
func (s *SessionStore) GetRefresh(ctx context.Context, token string) (string, error) {
	return s.store.Get(ctx, keyRefresh+token)
}

// DeleteRefresh elimina refresh:<token>.
func (s *SessionStore) DeleteRefresh(ctx context.Context, token string) error {
	return s.store.Delete(ctx, keyRefresh+token)
}

// ─── mfa_pending:<token> ───

// PutPendingMFA escribe mfa_pending:<token> → userID con TTL fijo de 300s.
func (s *SessionStore) PutPendingMFA(ctx context.Context, token, userID string) error {
	return s.store.Set(ctx, keyMFAPending+token, userID, PendingMFATTL)
}

// GetPendingMFA retorna el userID de mfa_pending:<token>, o ErrNotFound
// si el marker no existe o ya expiró.
func (s *SessionStore) GetPendingMFA(ctx context.Context, token string) (string, error) {
	return s.store.Get(ctx, keyMFAPending+token)
}

// DeletePendingMFA elimina mfa_pending:<token>. La ausencia no es error.
func (s *SessionStore) DeletePendingMFA(ctx context.Context, token string) error {
	return s.store.Delete(ctx, keyMFAPending+token)
}

// ─── helpers ───

// clampToTokenExpiry recorta ttl al `exp` del JWT si el token es parseable.
// No valida firma: la validez criptográfica es del Identity Provider; acá
// solo necesitamos el expiry nominal para no dejar sesiones zombis.
func clampToTokenExpiry(token string, ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	claims := jwtv5.MapClaims{}
	if _, _, err := jwtv5.NewParser().ParseUnverified(token, claims); err != nil {
		return ttl
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return ttl
	}
	if until := time.Until(exp.Time); until > 0 && until < ttl {
		return until
	}
	return ttl
}
