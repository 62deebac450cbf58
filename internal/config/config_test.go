package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.App.Env != "dev" {
		t.Fatalf("env: got %q, want dev", c.App.Env)
	}
	if c.Server.Addr != ":9090" {
		t.Fatalf("addr: got %q", c.Server.Addr)
	}
	if c.Sessions.Driver != "redis" || c.Sessions.Redis.Addr != "localhost:6379" {
		t.Fatalf("sessions defaults: %+v", c.Sessions)
	}
	if c.Sessions.Redis.Prefix != "mercador:" {
		t.Fatalf("redis prefix: got %q", c.Sessions.Redis.Prefix)
	}
	if c.Auth.Session.CookieName != "sb_access_token" {
		t.Fatalf("cookie name: got %q", c.Auth.Session.CookieName)
	}
	if got := Duration(c.Sessions.RefreshTTL, 0); got != 168*time.Hour {
		t.Fatalf("refresh ttl: got %v, want 168h", got)
	}
	if c.Email.Driver != "noop" {
		t.Fatalf("email driver: got %q", c.Email.Driver)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":8080\"\n")

	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("DATABASE_URL", "postgres://localhost/mercador_test")
	t.Setenv("SESSIONS_DRIVER", "memory")
	t.Setenv("SESSIONS_ALLOW_FALLBACK", "true")
	t.Setenv("AUTH_SESSION_COOKIE_NAME", "otro_cookie")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.Server.Addr != ":7070" {
		t.Fatalf("addr: got %q, want :7070", c.Server.Addr)
	}
	if c.Storage.DSN != "postgres://localhost/mercador_test" {
		t.Fatalf("dsn: got %q", c.Storage.DSN)
	}
	if c.Sessions.Driver != "memory" || !c.Sessions.AllowFallback {
		t.Fatalf("sessions: %+v", c.Sessions)
	}
	if c.Auth.Session.CookieName != "otro_cookie" {
		t.Fatalf("cookie: got %q", c.Auth.Session.CookieName)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("log level: got %q, want debug (lowercased)", c.Logging.Level)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "server:\n  read_timeout: \"tres segundos\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "no-existe.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_ProdGuards(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.App.Env = "prod"
		c.Storage.DSN = "postgres://db/mercador"
		c.Identity.BaseURL = "https://auth.mercador.co"
		c.Wompi.EventsSecret = "prod_events_secret"
		c.Sessions.Driver = "redis"
		return c
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("complete prod config must validate: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing dsn", func(c *Config) { c.Storage.DSN = "" }, "storage.dsn"},
		{"missing identity url", func(c *Config) { c.Identity.BaseURL = "" }, "identity.base_url"},
		{"missing wompi secret", func(c *Config) { c.Wompi.EventsSecret = "" }, "wompi.events_secret"},
		{"memory sessions", func(c *Config) { c.Sessions.Driver = "memory" }, "memory"},
	}
	for _, tc := range cases {
		c := base()
		tc.mutate(c)
		err := c.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantSub) {
			t.Errorf("%s: err %q does not mention %q", tc.name, err, tc.wantSub)
		}
	}
}

func TestValidate_DevIsPermissive(t *testing.T) {
	c := &Config{}
	c.App.Env = "dev"
	c.Sessions.Driver = "memory"
	if err := c.Validate(); err != nil {
		t.Fatalf("dev config must not require prod fields: %v", err)
	}
}
