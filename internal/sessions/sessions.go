// Package sessions implementa el Session Store de Mercador: un key-value
// efímero (Redis o memoria) que guarda el estado de autenticación.
//
// Contrato de claves (los valores son siempre el user id a secas):
//   - mfa_pending:<token>  TTL fijo de 5 minutos
//   - session:<token>      TTL = vida del access token
//   - refresh:<token>      TTL default de 7 días
package sessions

import (
	"context"
	"errors"
	"time"
)

// Store define las operaciones del almacén de sesiones.
type Store interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL retorna el tiempo de vida restante de una key.
	// Retorna ErrNotFound si la key no existe.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Stats retorna estadísticas del store.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del store.
type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

// Config configuración para crear un Store.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string // host:port (redis)
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys

	// ConnectTimeout acota el ping inicial a Redis.
	// Default 3s.
	ConnectTimeout time.Duration
}

// Errores del store.
var (
	ErrNotFound = errNotFound{}

	// ErrClosed indica que el store ya fue cerrado.
	ErrClosed = errors.New("sessions: store is closed")
)

type errNotFound struct{}

func (e errNotFound) Error() string { return "sessions: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un Store según la configuración.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix), nil
	}
}

// NewWithFallback crea un Store Redis y, si no responde dentro de la ventana
// de conexión, degrada a memoria cuando allowFallback es true.
// El booleano de retorno indica si el store quedó degradado; el caller debe
// dejar rastro (log + métrica + healthz) — nunca degradamos en silencio.
func NewWithFallback(cfg Config, allowFallback bool) (Store, bool, error) {
	if cfg.Driver != "redis" {
		s, err := New(cfg)
		return s, false, err
	}
	s, err := NewRedis(cfg)
	if err == nil {
		return s, false, nil
	}
	if !allowFallback {
		return nil, false, err
	}
	return NewMemory(cfg.Prefix), true, nil
}
