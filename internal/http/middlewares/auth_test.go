package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/sessions"
	"github.com/mercadorhq/mercador/internal/store"
)

type fakeProvider struct {
	info *identity.TokenInfo
	err  error

	lastToken string
}

func (f *fakeProvider) VerifyCredentials(ctx context.Context, email, password string) (*identity.Session, error) {
	return nil, identity.ErrInvalidCredentials
}
func (f *fakeProvider) ListFactors(ctx context.Context, accessToken string) ([]identity.Factor, error) {
	return nil, nil
}
func (f *fakeProvider) ChallengeFactor(ctx context.Context, accessToken, factorID string) (string, error) {
	return "", identity.ErrTokenInvalid
}
func (f *fakeProvider) VerifyFactor(ctx context.Context, accessToken, factorID, challengeID, code string) (*identity.Session, error) {
	return nil, identity.ErrTokenInvalid
}
func (f *fakeProvider) ResolveToken(ctx context.Context, accessToken string) (*identity.TokenInfo, error) {
	f.lastToken = accessToken
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

type fakeProfiles struct {
	profiles map[string]*store.Profile
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*store.Profile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeProfiles) Upsert(ctx context.Context, id, email, role string) error { return nil }

func setupAuth(t *testing.T) (*fakeProvider, *sessions.SessionStore, *fakeProfiles, http.Handler) {
	t.Helper()

	provider := &fakeProvider{info: &identity.TokenInfo{UserID: "user-1", Email: "ana@example.com"}}
	ss := sessions.NewSessionStore(sessions.NewMemory(""), 0)
	profiles := &fakeProfiles{profiles: map[string]*store.Profile{
		"user-1": {ID: "user-1", Email: "ana@example.com", Role: "customer"},
	}}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := Chain(inner,
		WithSessionCookie(""),
		RequireAuth(provider, ss, profiles),
	)
	return provider, ss, profiles, handler
}

func TestRequireAuth_MissingToken(t *testing.T) {
	_, _, _, handler := setupAuth(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header on missing token")
	}
}

func TestRequireAuth_CookieNormalizedToBearer(t *testing.T) {
	provider, ss, _, handler := setupAuth(t)
	ctx := context.Background()

	if err := ss.PutSession(ctx, "cookie-token", "user-1", time.Hour); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	// El provider debe haber visto el token de la cookie como bearer.
	if provider.lastToken != "cookie-token" {
		t.Fatalf("provider token: got %q, want cookie-token", provider.lastToken)
	}
}

func TestRequireAuth_HeaderWinsOverCookie(t *testing.T) {
	provider, ss, _, handler := setupAuth(t)
	ctx := context.Background()

	if err := ss.PutSession(ctx, "header-token", "user-1", time.Hour); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if provider.lastToken != "header-token" {
		t.Fatalf("provider token: got %q, want header-token", provider.lastToken)
	}
}

func TestRequireAuth_ValidTokenWithoutSessionRecord(t *testing.T) {
	// El provider acepta el token pero no hay session:<token> vivo
	// (logout previo o TTL vencido): 401 genérico.
	_, _, _, handler := setupAuth(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer orphan-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestRequireAuth_ProviderRejectsToken(t *testing.T) {
	provider, ss, _, handler := setupAuth(t)
	provider.err = identity.ErrTokenInvalid
	ctx := context.Background()

	if err := ss.PutSession(ctx, "some-token", "user-1", time.Hour); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestRequireAuth_DeletedProfile(t *testing.T) {
	_, ss, profiles, handler := setupAuth(t)
	ctx := context.Background()

	now := time.Now()
	profiles.profiles["user-1"].DeletedAt = &now
	if err := ss.PutSession(ctx, "valid-token", "user-1", time.Hour); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Perfil soft-deleted = 401 genérico, igual que cualquier otro fallo.
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestRequireAuth_HappyPathInjectsIdentity(t *testing.T) {
	provider := &fakeProvider{info: &identity.TokenInfo{UserID: "user-1", Email: "ana@example.com"}}
	ss := sessions.NewSessionStore(sessions.NewMemory(""), 0)
	profiles := &fakeProfiles{profiles: map[string]*store.Profile{
		"user-1": {ID: "user-1", Email: "ana@example.com", Role: "admin"},
	}}

	var got Identity
	var ok bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Chain(inner, RequireAuth(provider, ss, profiles))

	ctx := context.Background()
	if err := ss.PutSession(ctx, "valid-token", "user-1", time.Hour); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if !ok {
		t.Fatal("identity missing from context")
	}
	if got.UserID != "user-1" || got.Role != "admin" {
		t.Fatalf("identity: got %+v", got)
	}
}

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Chain(inner, RequireRole("admin"))

	// Sin identidad: 401.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no identity: got %d, want 401", rec.Code)
	}

	// Rol incorrecto: 403.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u", Role: "customer"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: got %d, want 403", rec.Code)
	}

	// Rol correcto: pasa.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u", Role: "admin"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin role: got %d, want 200", rec.Code)
	}
}
