// Package checkout maneja órdenes de compra y los eventos de pago de Wompi.
package checkout

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Estados de transacción que reporta Wompi.
const (
	WompiStatusApproved = "APPROVED"
	WompiStatusDeclined = "DECLINED"
	WompiStatusVoided   = "VOIDED"
	WompiStatusError    = "ERROR"
)

// ErrInvalidChecksum indica que la firma del evento no cuadra con el secret.
var ErrInvalidChecksum = errors.New("checkout: invalid wompi event checksum")

// WompiEvent es el payload que Wompi envía al webhook de eventos.
type WompiEvent struct {
	Event     string         `json:"event"`
	Data      WompiEventData `json:"data"`
	SentAt    string         `json:"sent_at"`
	Timestamp int64          `json:"timestamp"`
	Signature WompiSignature `json:"signature"`
}

// WompiEventData envuelve la transacción del evento.
type WompiEventData struct {
	Transaction WompiTransaction `json:"transaction"`
}

// WompiTransaction es la transacción reportada por la pasarela.
type WompiTransaction struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
}

// WompiSignature lleva el checksum y las propiedades firmadas.
type WompiSignature struct {
	Checksum   string   `json:"checksum"`
	Properties []string `json:"properties"`
}

// VerifyChecksum valida la firma del evento según el esquema de Wompi:
// SHA-256 de la concatenación de los valores de signature.properties
// (en orden), el timestamp y el events secret. La comparación es en
// tiempo constante.
func (e *WompiEvent) VerifyChecksum(eventsSecret string) error {
	if e.Signature.Checksum == "" || eventsSecret == "" {
		return ErrInvalidChecksum
	}

	var sb strings.Builder
	for _, prop := range e.Signature.Properties {
		val, err := e.propertyValue(prop)
		if err != nil {
			return err
		}
		sb.WriteString(val)
	}
	sb.WriteString(fmt.Sprintf("%d", e.Timestamp))
	sb.WriteString(eventsSecret)

	sum := sha256.Sum256([]byte(sb.String()))
	computed := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(strings.ToLower(e.Signature.Checksum)), []byte(computed)) != 1 {
		return ErrInvalidChecksum
	}
	return nil
}

// propertyValue resuelve un path tipo "transaction.id" contra el evento.
func (e *WompiEvent) propertyValue(path string) (string, error) {
	switch path {
	case "transaction.id":
		return e.Data.Transaction.ID, nil
	case "transaction.status":
		return e.Data.Transaction.Status, nil
	case "transaction.reference":
		return e.Data.Transaction.Reference, nil
	case "transaction.amount_in_cents":
		return fmt.Sprintf("%d", e.Data.Transaction.AmountInCents), nil
	case "transaction.currency":
		return e.Data.Transaction.Currency, nil
	default:
		return "", fmt.Errorf("checkout: unknown signature property %q", path)
	}
}

// ParseWompiEvent decodifica el cuerpo crudo de un webhook.
func ParseWompiEvent(body []byte) (*WompiEvent, error) {
	var event WompiEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("checkout: decoding wompi event: %w", err)
	}
	return &event, nil
}
