package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mercadorhq/mercador/internal/observability/logger"
)

// httpProvider implementa Provider contra un auth service HTTP estilo
// GoTrue/Supabase. La validación criptográfica de tokens queda del lado
// del provider: acá solo hablamos su API.
type httpProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// HTTPConfig configura el cliente HTTP del provider.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // default 10s
}

// NewHTTP crea un Provider sobre HTTP.
func NewHTTP(cfg HTTPConfig) Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// do ejecuta un request JSON contra el provider.
// bearer vacío = solo apikey.
func (p *httpProvider) do(ctx context.Context, method, path, bearer string, body any) (int, []byte, error) {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("apikey", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}

// sessionPayload es la respuesta de emisión de tokens del provider.
type sessionPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (sp *sessionPayload) toSession() *Session {
	return &Session{
		AccessToken:  sp.AccessToken,
		RefreshToken: sp.RefreshToken,
		UserID:       sp.User.ID,
		ExpiresIn:    sp.ExpiresIn,
	}
}

func (p *httpProvider) VerifyCredentials(ctx context.Context, email, password string) (*Session, error) {
	status, body, err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity {
		return nil, ErrInvalidCredentials
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint status %d", ErrProviderUnavailable, status)
	}

	var sp sessionPayload
	if err := json.Unmarshal(body, &sp); err != nil {
		return nil, fmt.Errorf("identity: bad token response: %w", err)
	}
	return sp.toSession(), nil
}

func (p *httpProvider) ListFactors(ctx context.Context, accessToken string) ([]Factor, error) {
	status, body, err := p.do(ctx, http.MethodGet, "/factors", accessToken, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, ErrTokenInvalid
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: factors endpoint status %d", ErrProviderUnavailable, status)
	}

	var out struct {
		Factors []Factor `json:"factors"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("identity: bad factors response: %w", err)
	}
	return out.Factors, nil
}

func (p *httpProvider) ChallengeFactor(ctx context.Context, accessToken, factorID string) (string, error) {
	status, body, err := p.do(ctx, http.MethodPost, "/factors/"+factorID+"/challenge", accessToken, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized {
		return "", ErrTokenInvalid
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("%w: challenge endpoint status %d", ErrProviderUnavailable, status)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("identity: bad challenge response: %w", err)
	}
	return out.ID, nil
}

func (p *httpProvider) VerifyFactor(ctx context.Context, accessToken, factorID, challengeID, code string) (*Session, error) {
	status, body, err := p.do(ctx, http.MethodPost, "/factors/"+factorID+"/verify", accessToken, map[string]string{
		"challenge_id": challengeID,
		"code":         code,
	})
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		// sigue abajo
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, ErrInvalidOTP
	case http.StatusUnauthorized:
		return nil, ErrTokenInvalid
	default:
		return nil, fmt.Errorf("%w: verify endpoint status %d", ErrProviderUnavailable, status)
	}

	var sp sessionPayload
	if err := json.Unmarshal(body, &sp); err != nil {
		return nil, fmt.Errorf("identity: bad verify response: %w", err)
	}
	return sp.toSession(), nil
}

func (p *httpProvider) ResolveToken(ctx context.Context, accessToken string) (*TokenInfo, error) {
	status, body, err := p.do(ctx, http.MethodGet, "/user", accessToken, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, ErrTokenInvalid
	}
	if status != http.StatusOK {
		logger.From(ctx).Debug("unexpected provider status on resolve",
			logger.Component("identity"),
			logger.Op("ResolveToken"),
			logger.Any("status", status),
		)
		return nil, fmt.Errorf("%w: user endpoint status %d", ErrProviderUnavailable, status)
	}

	var ti TokenInfo
	if err := json.Unmarshal(body, &ti); err != nil {
		return nil, fmt.Errorf("identity: bad user response: %w", err)
	}
	return &ti, nil
}
