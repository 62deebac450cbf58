// Package auth implementa el orquestador de login/MFA.
//
// Flujo: Anonymous → CredentialsVerified → {MFAPending | Authenticated}.
// Desde MFAPending: OTP verificado → Authenticated, o el marker expira y
// se vuelve a Anonymous. Authenticated es terminal para el flujo; los
// requests posteriores son validaciones independientes del middleware.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/sessions"
)

// Deps contiene las dependencias del orquestador.
type Deps struct {
	Provider identity.Provider
	Sessions *sessions.SessionStore
}

// Service define las operaciones del orquestador de login/MFA.
type Service interface {
	// LoginWithEmail verifica credenciales contra el Identity Provider y,
	// según los factores MFA de la cuenta, materializa una sesión completa
	// o deja un marker pending y exige el segundo factor.
	LoginWithEmail(ctx context.Context, email, password string) (*LoginResult, error)

	// VerifyMFA somete el código OTP. En fallo no muta el Session Store:
	// el marker pending queda intacto para reintentos dentro de su TTL.
	VerifyMFA(ctx context.Context, pendingToken, factorID, code string) (*MFAVerifyData, error)

	// CompleteMFALogin materializa la sesión emitida tras el OTP. Es el
	// único camino de MFAPending a Authenticated.
	CompleteMFALogin(ctx context.Context, in CompleteMFAInput) error

	// Logout elimina los records de sesión (best-effort).
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// LoginResult es el resultado de LoginWithEmail.
// Si MFARequired es true, Session es temporal: su access token sirve
// únicamente como pendingToken del challenge, nunca como sesión completa
// (no existe session:<token> para él).
type LoginResult struct {
	Session     *identity.Session
	MFARequired bool
	FactorID    string
}

// MFAVerifyData es el resultado de un OTP verificado con éxito.
type MFAVerifyData struct {
	Session *identity.Session
	UserID  string
}

// CompleteMFAInput son los datos para materializar la sesión post-MFA.
type CompleteMFAInput struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	ExpiresIn    int64 // segundos, vida del access token
	PendingToken string
}

// Errores del orquestador.
var (
	ErrNoPendingMFA    = fmt.Errorf("auth: no pending mfa state for token")
	ErrPendingMismatch = fmt.Errorf("auth: pending mfa state does not match user")
	ErrSessionWrite    = fmt.Errorf("auth: failed to persist session")
)

type service struct {
	deps Deps
}

// NewService crea el orquestador de login/MFA.
func NewService(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) LoginWithEmail(ctx context.Context, email, password string) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("LoginWithEmail"),
	)

	// Paso 1: Verificar credenciales contra el provider.
	// Password incorrecto no es transitorio: el error sube sin retry.
	sess, err := s.deps.Provider.VerifyCredentials(ctx, email, password)
	if err != nil {
		log.Debug("credential verification failed", logger.Err(err))
		return nil, err
	}

	log = log.With(logger.UserID(sess.UserID))

	// Paso 2: Listar factores MFA de la cuenta.
	factors, err := s.deps.Provider.ListFactors(ctx, sess.AccessToken)
	if err != nil {
		log.Error("failed to list mfa factors", logger.Err(err))
		return nil, err
	}

	// Paso 3: Gate MFA. El check de factor verified va estrictamente ANTES
	// de cualquier write de sesión: un access token de una cuenta con MFA
	// nunca debe ser usable como session key por sí solo.
	if f := firstVerifiedFactor(factors); f != nil {
		if err := s.deps.Sessions.PutPendingMFA(ctx, sess.AccessToken, sess.UserID); err != nil {
			log.Error("failed to store pending mfa marker", logger.Err(err))
			return nil, ErrSessionWrite
		}

		log.Info("mfa challenge required", logger.FactorID(f.ID))
		return &LoginResult{
			Session:     sess,
			MFARequired: true,
			FactorID:    f.ID,
		}, nil
	}

	// Paso 4: Sin MFA → sesión completa.
	if err := s.persistSession(ctx, sess); err != nil {
		log.Error("failed to persist session", logger.Err(err))
		return nil, ErrSessionWrite
	}

	log.Info("login successful")
	return &LoginResult{Session: sess, MFARequired: false}, nil
}

func (s *service) VerifyMFA(ctx context.Context, pendingToken, factorID, code string) (*MFAVerifyData, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.mfa"),
		logger.Op("VerifyMFA"),
		logger.FactorID(factorID),
	)

	// Paso 1: El marker pending debe existir (si expiró, el flujo volvió a
	// Anonymous y hay que loguearse de nuevo).
	userID, err := s.deps.Sessions.GetPendingMFA(ctx, pendingToken)
	if err != nil {
		if sessions.IsNotFound(err) {
			log.Debug("pending mfa marker missing or expired")
			return nil, ErrNoPendingMFA
		}
		return nil, err
	}

	log = log.With(logger.UserID(userID))

	// Paso 2: Challenge + verify contra el provider. Código inválido es
	// terminal por intento: no se toca el store y el usuario puede
	// reintentar mientras viva el marker.
	challengeID, err := s.deps.Provider.ChallengeFactor(ctx, pendingToken, factorID)
	if err != nil {
		log.Debug("mfa challenge failed", logger.Err(err))
		return nil, err
	}

	sess, err := s.deps.Provider.VerifyFactor(ctx, pendingToken, factorID, challengeID, code)
	if err != nil {
		log.Debug("mfa verification failed", logger.Err(err))
		return nil, err
	}

	// El provider emite tokens frescos; el user debe ser el del marker.
	if sess.UserID != "" && sess.UserID != userID {
		log.Warn("mfa session user mismatch")
		return nil, ErrPendingMismatch
	}
	if sess.UserID == "" {
		sess.UserID = userID
	}

	log.Info("mfa verified")
	return &MFAVerifyData{Session: sess, UserID: userID}, nil
}

func (s *service) CompleteMFALogin(ctx context.Context, in CompleteMFAInput) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.mfa"),
		logger.Op("CompleteMFALogin"),
		logger.UserID(in.UserID),
	)

	// Orden de efectos: primero los dos writes de sesión, el delete del
	// marker va al final. Un crash a mitad de secuencia deja un pending
	// recuperable, nunca una sesión huérfana.
	ttl := time.Duration(in.ExpiresIn) * time.Second
	if err := s.deps.Sessions.PutSession(ctx, in.AccessToken, in.UserID, ttl); err != nil {
		log.Error("failed to write session record", logger.Err(err))
		return ErrSessionWrite
	}
	if err := s.deps.Sessions.PutRefresh(ctx, in.RefreshToken, in.UserID); err != nil {
		log.Error("failed to write refresh record", logger.Err(err))
		return ErrSessionWrite
	}

	// Best-effort: el marker pudo haber expirado solo; la ausencia no es error.
	if err := s.deps.Sessions.DeletePendingMFA(ctx, in.PendingToken); err != nil && !sessions.IsNotFound(err) {
		log.Warn("failed to delete pending mfa marker", logger.Err(err))
	}

	log.Info("mfa login completed")
	return nil
}

func (s *service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.logout"),
		logger.Op("Logout"),
	)

	if accessToken != "" {
		if err := s.deps.Sessions.DeleteSession(ctx, accessToken); err != nil && !sessions.IsNotFound(err) {
			log.Warn("failed to delete session record", logger.Err(err))
		}
	}
	if refreshToken != "" {
		if err := s.deps.Sessions.DeleteRefresh(ctx, refreshToken); err != nil && !sessions.IsNotFound(err) {
			log.Warn("failed to delete refresh record", logger.Err(err))
		}
	}
	return nil
}

// persistSession escribe los dos records de una sesión completa.
func (s *service) persistSession(ctx context.Context, sess *identity.Session) error {
	ttl := time.Duration(sess.ExpiresIn) * time.Second
	if err := s.deps.Sessions.PutSession(ctx, sess.AccessToken, sess.UserID, ttl); err != nil {
		return err
	}
	return s.deps.Sessions.PutRefresh(ctx, sess.RefreshToken, sess.UserID)
}

// firstVerifiedFactor retorna el primer factor con status verified, o nil.
func firstVerifiedFactor(factors []identity.Factor) *identity.Factor {
	for i := range factors {
		if factors[i].Status == identity.FactorStatusVerified {
			return &factors[i]
		}
	}
	return nil
}
