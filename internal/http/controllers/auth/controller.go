// Package auth expone los endpoints de login, MFA y logout.
package auth

import (
	stderrors "errors"
	"net/http"

	authsvc "github.com/mercadorhq/mercador/internal/auth"
	httperrors "github.com/mercadorhq/mercador/internal/http/errors"
	"github.com/mercadorhq/mercador/internal/http/helpers"
	"github.com/mercadorhq/mercador/internal/http/middlewares"
	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/store"
)

// CookieConfig controla los atributos de la cookie de sesión.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// Controller maneja los endpoints de autenticación.
type Controller struct {
	auth     authsvc.Service
	profiles store.ProfileRepository
	cookie   CookieConfig
}

// NewController crea el controller de autenticación.
func NewController(auth authsvc.Service, profiles store.ProfileRepository, cookie CookieConfig) *Controller {
	if cookie.Name == "" {
		cookie.Name = middlewares.SessionCookieName
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	return &Controller{auth: auth, profiles: profiles, cookie: cookie}
}

// ─── DTOs ───

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type mfaRequiredResponse struct {
	MFARequired  bool   `json:"mfa_required"`
	FactorID     string `json:"factor_id"`
	PendingToken string `json:"pending_token"`
}

type verifyMFARequest struct {
	PendingToken string `json:"pending_token"`
	FactorID     string `json:"factor_id"`
	Code         string `json:"code"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// ─── Handlers ───

// Login maneja POST /v1/auth/login
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.Login"))

	var req loginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email y password son obligatorios"))
		return
	}

	result, err := c.auth.LoginWithEmail(ctx, req.Email, req.Password)
	if err != nil {
		log.Debug("login failed", logger.Err(err))
		writeAuthError(w, err)
		return
	}

	// El perfil local se asegura en cada login exitoso; el rol nunca se pisa.
	if err := c.profiles.Upsert(ctx, result.Session.UserID, req.Email, "customer"); err != nil {
		log.Warn("profile upsert failed", logger.Err(err), logger.UserID(result.Session.UserID))
	}

	noStore(w)

	if result.MFARequired {
		helpers.WriteJSON(w, http.StatusOK, mfaRequiredResponse{
			MFARequired:  true,
			FactorID:     result.FactorID,
			PendingToken: result.Session.AccessToken,
		})
		return
	}

	c.setSessionCookie(w, result.Session.AccessToken, int(result.Session.ExpiresIn))
	helpers.WriteJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  result.Session.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.Session.ExpiresIn,
		RefreshToken: result.Session.RefreshToken,
	})
}

// VerifyMFA maneja POST /v1/auth/mfa/verify
func (c *Controller) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.VerifyMFA"))

	var req verifyMFARequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.PendingToken == "" || req.FactorID == "" || req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("pending_token, factor_id y code son obligatorios"))
		return
	}

	data, err := c.auth.VerifyMFA(ctx, req.PendingToken, req.FactorID, req.Code)
	if err != nil {
		log.Debug("mfa verify failed", logger.Err(err))
		writeAuthError(w, err)
		return
	}

	if err := c.auth.CompleteMFALogin(ctx, authsvc.CompleteMFAInput{
		AccessToken:  data.Session.AccessToken,
		RefreshToken: data.Session.RefreshToken,
		UserID:       data.UserID,
		ExpiresIn:    data.Session.ExpiresIn,
		PendingToken: req.PendingToken,
	}); err != nil {
		log.Error("mfa completion failed", logger.Err(err))
		writeAuthError(w, err)
		return
	}

	noStore(w)
	c.setSessionCookie(w, data.Session.AccessToken, int(data.Session.ExpiresIn))
	helpers.WriteJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  data.Session.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    data.Session.ExpiresIn,
		RefreshToken: data.Session.RefreshToken,
	})
}

// Logout maneja POST /v1/auth/logout
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// El body es opcional; sin refresh token igual borramos la sesión.
	_ = helpers.ReadJSONLenient(r, &req)

	accessToken := bearerToken(r)
	_ = c.auth.Logout(ctx, accessToken, req.RefreshToken)

	c.clearSessionCookie(w)
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me maneja GET /v1/auth/me (requiere RequireAuth antes).
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewares.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, meResponse{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
	})
}

// ─── Helpers ───

func (c *Controller) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   c.cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: c.cookie.SameSite,
	})
}

func (c *Controller) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: c.cookie.SameSite,
	})
}

// noStore evita que proxies o el browser cacheen respuestas con tokens.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	ah := r.Header.Get("Authorization")
	if len(ah) > len(prefix) && ah[:len(prefix)] == prefix {
		return ah[len(prefix):]
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, identity.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)

	case stderrors.Is(err, identity.ErrInvalidOTP):
		httperrors.WriteError(w, httperrors.ErrInvalidOTP)

	case stderrors.Is(err, identity.ErrTokenInvalid),
		stderrors.Is(err, authsvc.ErrNoPendingMFA),
		stderrors.Is(err, authsvc.ErrPendingMismatch):
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("la verificación expiró, inicie sesión nuevamente"))

	case stderrors.Is(err, identity.ErrProviderUnavailable):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)

	default:
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
