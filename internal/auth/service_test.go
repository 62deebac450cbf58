package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/sessions"
)

// fakeProvider implementa identity.Provider con respuestas programables.
type fakeProvider struct {
	session      *identity.Session
	factors      []identity.Factor
	verifySess   *identity.Session
	loginErr     error
	factorsErr   error
	challengeErr error
	verifyErr    error

	challengeCalls int
	verifyCalls    int
}

func (f *fakeProvider) VerifyCredentials(ctx context.Context, email, password string) (*identity.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.session, nil
}

func (f *fakeProvider) ListFactors(ctx context.Context, accessToken string) ([]identity.Factor, error) {
	if f.factorsErr != nil {
		return nil, f.factorsErr
	}
	return f.factors, nil
}

func (f *fakeProvider) ChallengeFactor(ctx context.Context, accessToken, factorID string) (string, error) {
	f.challengeCalls++
	if f.challengeErr != nil {
		return "", f.challengeErr
	}
	return "challenge-1", nil
}

func (f *fakeProvider) VerifyFactor(ctx context.Context, accessToken, factorID, challengeID, code string) (*identity.Session, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifySess, nil
}

func (f *fakeProvider) ResolveToken(ctx context.Context, accessToken string) (*identity.TokenInfo, error) {
	return nil, identity.ErrTokenInvalid
}

func newTestService(p identity.Provider) (Service, sessions.Store, *sessions.SessionStore) {
	raw := sessions.NewMemory("")
	ss := sessions.NewSessionStore(raw, 0)
	return NewService(Deps{Provider: p, Sessions: ss}), raw, ss
}

func storeKeys(t *testing.T, raw sessions.Store) int64 {
	t.Helper()
	stats, err := raw.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats err: %v", err)
	}
	return stats.Keys
}

func TestLoginWithEmail_NoMFA_WritesSessionAndRefresh(t *testing.T) {
	p := &fakeProvider{
		session: &identity.Session{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			UserID:       "user-1",
			ExpiresIn:    3600,
		},
	}
	svc, raw, ss := newTestService(p)
	ctx := context.Background()

	result, err := svc.LoginWithEmail(ctx, "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("LoginWithEmail err: %v", err)
	}
	if result.MFARequired {
		t.Fatal("expected MFARequired=false for account without factors")
	}

	uid, err := ss.GetSession(ctx, "access-1")
	if err != nil || uid != "user-1" {
		t.Fatalf("session record: got (%q, %v), want (user-1, nil)", uid, err)
	}
	uid, err = ss.GetRefresh(ctx, "refresh-1")
	if err != nil || uid != "user-1" {
		t.Fatalf("refresh record: got (%q, %v), want (user-1, nil)", uid, err)
	}

	// TTLs del contrato: session = expires_in, refresh = 7 días.
	if ttl, _ := raw.TTL(ctx, "session:access-1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("session ttl fuera de rango: %v", ttl)
	}
	if ttl, _ := raw.TTL(ctx, "refresh:refresh-1"); ttl <= 7*24*time.Hour-time.Minute || ttl > 7*24*time.Hour {
		t.Fatalf("refresh ttl fuera de rango: %v", ttl)
	}
}

func TestLoginWithEmail_MFA_WritesOnlyPendingMarker(t *testing.T) {
	p := &fakeProvider{
		session: &identity.Session{
			AccessToken:  "temp-access",
			RefreshToken: "temp-refresh",
			UserID:       "user-2",
			ExpiresIn:    3600,
		},
		factors: []identity.Factor{
			{ID: "factor-unverified", Type: "totp", Status: "unverified"},
			{ID: "factor-ok", Type: "totp", Status: identity.FactorStatusVerified},
		},
	}
	svc, raw, ss := newTestService(p)
	ctx := context.Background()

	result, err := svc.LoginWithEmail(ctx, "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("LoginWithEmail err: %v", err)
	}
	if !result.MFARequired {
		t.Fatal("expected MFARequired=true")
	}
	if result.FactorID != "factor-ok" {
		t.Fatalf("FactorID: got %q, want factor-ok (primer factor verified)", result.FactorID)
	}

	// Único write permitido: el marker pending con TTL de 300s.
	if n := storeKeys(t, raw); n != 1 {
		t.Fatalf("expected exactly 1 key in store, got %d", n)
	}
	uid, err := ss.GetPendingMFA(ctx, "temp-access")
	if err != nil || uid != "user-2" {
		t.Fatalf("pending marker: got (%q, %v), want (user-2, nil)", uid, err)
	}
	ttl, err := raw.TTL(ctx, "mfa_pending:temp-access")
	if err != nil {
		t.Fatalf("pending TTL err: %v", err)
	}
	if ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Fatalf("pending ttl: got %v, want ~300s", ttl)
	}

	// El access token temporal NO debe servir como sesión.
	if _, err := ss.GetSession(ctx, "temp-access"); !sessions.IsNotFound(err) {
		t.Fatalf("temp access token must not have a session record, got err=%v", err)
	}
}

func TestVerifyMFA_MissingPending_NoProviderCalls(t *testing.T) {
	p := &fakeProvider{}
	svc, _, _ := newTestService(p)

	_, err := svc.VerifyMFA(context.Background(), "never-seen", "factor-1", "123456")
	if !errors.Is(err, ErrNoPendingMFA) {
		t.Fatalf("err: got %v, want ErrNoPendingMFA", err)
	}
	if p.challengeCalls != 0 || p.verifyCalls != 0 {
		t.Fatal("provider must not be called without a pending marker")
	}
}

func TestVerifyMFA_WrongOTP_StoreUntouched(t *testing.T) {
	p := &fakeProvider{verifyErr: identity.ErrInvalidOTP}
	svc, raw, ss := newTestService(p)
	ctx := context.Background()

	if err := ss.PutPendingMFA(ctx, "temp-access", "user-3"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.VerifyMFA(ctx, "temp-access", "factor-1", "000000")
	if !errors.Is(err, identity.ErrInvalidOTP) {
		t.Fatalf("err: got %v, want ErrInvalidOTP", err)
	}

	// El marker sigue intacto para reintentos; ningún otro write.
	if uid, err := ss.GetPendingMFA(ctx, "temp-access"); err != nil || uid != "user-3" {
		t.Fatalf("pending marker gone after failed OTP: (%q, %v)", uid, err)
	}
	if n := storeKeys(t, raw); n != 1 {
		t.Fatalf("expected 1 key after failed OTP, got %d", n)
	}
}

func TestVerifyMFA_UserMismatch(t *testing.T) {
	p := &fakeProvider{
		verifySess: &identity.Session{
			AccessToken:  "fresh-access",
			RefreshToken: "fresh-refresh",
			UserID:       "other-user",
			ExpiresIn:    3600,
		},
	}
	svc, _, ss := newTestService(p)
	ctx := context.Background()

	if err := ss.PutPendingMFA(ctx, "temp-access", "user-4"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.VerifyMFA(ctx, "temp-access", "factor-1", "123456")
	if !errors.Is(err, ErrPendingMismatch) {
		t.Fatalf("err: got %v, want ErrPendingMismatch", err)
	}
}

func TestCompleteMFALogin_WritesSessionThenDeletesPending(t *testing.T) {
	p := &fakeProvider{}
	svc, raw, ss := newTestService(p)
	ctx := context.Background()

	if err := ss.PutPendingMFA(ctx, "temp-access", "user-5"); err != nil {
		t.Fatal(err)
	}

	err := svc.CompleteMFALogin(ctx, CompleteMFAInput{
		AccessToken:  "fresh-access",
		RefreshToken: "fresh-refresh",
		UserID:       "user-5",
		ExpiresIn:    3600,
		PendingToken: "temp-access",
	})
	if err != nil {
		t.Fatalf("CompleteMFALogin err: %v", err)
	}

	if uid, err := ss.GetSession(ctx, "fresh-access"); err != nil || uid != "user-5" {
		t.Fatalf("session record: (%q, %v)", uid, err)
	}
	if uid, err := ss.GetRefresh(ctx, "fresh-refresh"); err != nil || uid != "user-5" {
		t.Fatalf("refresh record: (%q, %v)", uid, err)
	}
	if _, err := ss.GetPendingMFA(ctx, "temp-access"); !sessions.IsNotFound(err) {
		t.Fatalf("pending marker must be deleted after completion, err=%v", err)
	}

	if ttl, _ := raw.TTL(ctx, "refresh:fresh-refresh"); ttl <= 7*24*time.Hour-time.Minute {
		t.Fatalf("refresh ttl: got %v, want ~604800s", ttl)
	}
}

func TestCompleteMFALogin_ExpiredPendingIsNotAnError(t *testing.T) {
	p := &fakeProvider{}
	svc, _, ss := newTestService(p)
	ctx := context.Background()

	// Nunca escribimos el marker: simula expiración previa.
	err := svc.CompleteMFALogin(ctx, CompleteMFAInput{
		AccessToken:  "fresh-access",
		RefreshToken: "fresh-refresh",
		UserID:       "user-6",
		ExpiresIn:    60,
		PendingToken: "expired-token",
	})
	if err != nil {
		t.Fatalf("CompleteMFALogin err: %v", err)
	}
	if uid, err := ss.GetSession(ctx, "fresh-access"); err != nil || uid != "user-6" {
		t.Fatalf("session record: (%q, %v)", uid, err)
	}
}

func TestLoginWithEmail_InvalidCredentials_NoWrites(t *testing.T) {
	p := &fakeProvider{loginErr: identity.ErrInvalidCredentials}
	svc, raw, _ := newTestService(p)

	_, err := svc.LoginWithEmail(context.Background(), "ana@example.com", "wrong")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("err: got %v, want ErrInvalidCredentials", err)
	}
	if n := storeKeys(t, raw); n != 0 {
		t.Fatalf("expected no writes on failed login, got %d keys", n)
	}
}

func TestLogout_BestEffort(t *testing.T) {
	p := &fakeProvider{}
	svc, raw, ss := newTestService(p)
	ctx := context.Background()

	if err := ss.PutSession(ctx, "access-x", "user-7", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := ss.PutRefresh(ctx, "refresh-x", "user-7"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Logout(ctx, "access-x", "refresh-x"); err != nil {
		t.Fatalf("Logout err: %v", err)
	}
	if n := storeKeys(t, raw); n != 0 {
		t.Fatalf("expected empty store after logout, got %d keys", n)
	}

	// Logout de tokens inexistentes no falla.
	if err := svc.Logout(ctx, "ghost", "ghost"); err != nil {
		t.Fatalf("Logout on unknown tokens err: %v", err)
	}
}
