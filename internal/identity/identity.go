// Package identity define el cliente del Identity Provider externo.
//
// El provider es un colaborador opaco: firma de tokens, hashing de passwords
// y TOTP viven del otro lado de esta interfaz. Mercador solo consume su
// contrato de llamadas y nunca reimplementa la criptografía localmente.
package identity

import (
	"context"
	"errors"
)

// FactorStatusVerified es el status que habilita el branch MFA del login.
const FactorStatusVerified = "verified"

// Session es el triple de tokens que emite el provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	ExpiresIn    int64  `json:"expires_in"` // segundos
}

// Factor es un factor MFA registrado en el provider.
type Factor struct {
	ID     string `json:"id"`
	Type   string `json:"type"` // "totp"
	Status string `json:"status"`
}

// TokenInfo es el resultado de resolver un access token a un usuario.
type TokenInfo struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Provider es el capability set completo que este subsistema usa del
// Identity Provider. Mantenerlo como interfaz permite swapear el backend
// (y fakearlo en tests) sin tocar el orquestador ni los middlewares.
type Provider interface {
	// VerifyCredentials valida email+password y emite una sesión.
	// Credenciales rechazadas → ErrInvalidCredentials (terminal, sin retry).
	VerifyCredentials(ctx context.Context, email, password string) (*Session, error)

	// ListFactors lista los factores MFA de la cuenta dueña del token.
	ListFactors(ctx context.Context, accessToken string) ([]Factor, error)

	// ChallengeFactor abre un challenge para el factor dado.
	// Retorna el challenge id a usar en VerifyFactor.
	ChallengeFactor(ctx context.Context, accessToken, factorID string) (string, error)

	// VerifyFactor somete el código OTP contra un challenge abierto.
	// Código inválido → ErrInvalidOTP. En éxito el provider emite una
	// sesión fresca (tokens nuevos).
	VerifyFactor(ctx context.Context, accessToken, factorID, challengeID, code string) (*Session, error)

	// ResolveToken resuelve un access token al usuario que lo posee.
	// Token inválido o expirado → ErrTokenInvalid.
	ResolveToken(ctx context.Context, accessToken string) (*TokenInfo, error)
}

// Errores del provider.
var (
	ErrInvalidCredentials  = errors.New("identity: invalid credentials")
	ErrInvalidOTP          = errors.New("identity: invalid otp code")
	ErrTokenInvalid        = errors.New("identity: invalid or expired token")
	ErrProviderUnavailable = errors.New("identity: provider unavailable")
)
