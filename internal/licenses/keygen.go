// Package licenses emite claves de licencia para órdenes pagadas.
package licenses

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// keyAlphabet excluye caracteres ambiguos (0/O, 1/I/L) para que las claves
// se puedan dictar por teléfono sin errores.
const keyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	keyPrefix      = "MERC"
	keyGroups      = 4
	keyGroupLength = 4
	keySeparator   = "-"
)

// GenerateKey genera una clave con formato MERC-XXXX-XXXX-XXXX-XXXX
// usando crypto/rand. Nunca reutiliza bytes sesgados: hace rejection
// sampling sobre el alfabeto.
func GenerateKey() (string, error) {
	parts := make([]string, 0, keyGroups+1)
	parts = append(parts, keyPrefix)

	for g := 0; g < keyGroups; g++ {
		group, err := randomGroup(keyGroupLength)
		if err != nil {
			return "", fmt.Errorf("licenses: generating key group: %w", err)
		}
		parts = append(parts, group)
	}
	return strings.Join(parts, keySeparator), nil
}

// randomGroup devuelve n caracteres uniformes del alfabeto.
func randomGroup(n int) (string, error) {
	// El mayor múltiplo de len(keyAlphabet) <= 256; bytes por encima se descartan
	// para no sesgar la distribución.
	max := byte(256 - (256 % len(keyAlphabet)))

	var sb strings.Builder
	sb.Grow(n)

	buf := make([]byte, n*2)
	for sb.Len() < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			sb.WriteByte(keyAlphabet[int(b)%len(keyAlphabet)])
			if sb.Len() == n {
				break
			}
		}
	}
	return sb.String(), nil
}

// ValidKey indica si una cadena tiene el formato de clave emitida por Mercador.
func ValidKey(key string) bool {
	parts := strings.Split(key, keySeparator)
	if len(parts) != keyGroups+1 || parts[0] != keyPrefix {
		return false
	}
	for _, group := range parts[1:] {
		if len(group) != keyGroupLength {
			return false
		}
		for _, r := range group {
			if !strings.ContainsRune(keyAlphabet, r) {
				return false
			}
		}
	}
	return true
}
