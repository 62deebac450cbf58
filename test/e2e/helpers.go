// Package e2e corre flujos completos contra un server de Mercador ya
// levantado. Los tests se saltan si MERCADOR_E2E_URL no está seteada.
package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"testing"
	"time"
)

var baseURL = os.Getenv("MERCADOR_E2E_URL")

// requireServer salta el test cuando no hay server contra el cual correr.
func requireServer(t *testing.T) {
	t.Helper()
	if baseURL == "" {
		t.Skip("MERCADOR_E2E_URL not set, skipping e2e")
	}
}

// newHTTPClient arma un client con cookie jar para seguir la cookie de sesión.
func newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
	}
}

func postJSON(t *testing.T, c *http.Client, path string, payload any) *http.Response {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Post(baseURL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, body io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}
