// Package apikey valida la API key administrativa (X-Admin-API-Key).
// La clave nunca se guarda en claro: la config lleva el hash bcrypt.
package apikey

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoKeyConfigured indica que no hay hash configurado.
var ErrNoKeyConfigured = errors.New("apikey: no admin api key configured")

// Verifier compara claves presentadas contra el hash configurado.
type Verifier struct {
	hash string
}

// New crea el verifier con el hash bcrypt de la clave.
func New(bcryptHash string) *Verifier {
	return &Verifier{hash: strings.TrimSpace(bcryptHash)}
}

// Enabled indica si hay una clave configurada.
func (v *Verifier) Enabled() bool { return v.hash != "" }

// Verify compara la clave presentada con el hash. Devuelve true solo si
// hay hash configurado y la comparación bcrypt pasa.
func (v *Verifier) Verify(presented string) bool {
	if !v.Enabled() || presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(v.hash), []byte(presented)) == nil
}

// Hash genera el hash bcrypt de una clave (lo usa el CLI de admin).
func Hash(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("apikey: empty key")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
