// Package config carga la configuración desde YAML con overrides por env.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda "dev".
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
		ShutdownTimeout    string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Sessions struct {
		// redis | memory
		Driver string `yaml:"driver"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		// AllowFallback permite degradar a memoria si Redis no responde.
		// En prod es opt-in explícito; el default es fail-closed.
		AllowFallback bool   `yaml:"allow_fallback"`
		RefreshTTL    string `yaml:"refresh_ttl"`
	} `yaml:"sessions"`

	Identity struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"identity"`

	Auth struct {
		Session struct {
			CookieName string `yaml:"cookie_name"`
			Domain     string `yaml:"domain"`
			SameSite   string `yaml:"samesite"`
			Secure     bool   `yaml:"secure"`
		} `yaml:"session"`
	} `yaml:"auth"`

	Catalog struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"catalog"`

	Wompi struct {
		PublicKey    string `yaml:"public_key"`
		EventsSecret string `yaml:"events_secret"`
	} `yaml:"wompi"`

	Email struct {
		// mailgun | smtp | noop
		Driver  string `yaml:"driver"`
		Mailgun struct {
			APIKey string `yaml:"api_key"`
			Domain string `yaml:"domain"`
			From   string `yaml:"from"`
		} `yaml:"mailgun"`
		SMTP struct {
			Host               string `yaml:"host"`
			Port               int    `yaml:"port"`
			Username           string `yaml:"username"`
			Password           string `yaml:"password"`
			From               string `yaml:"from"`
			TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
			InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
		} `yaml:"smtp"`
	} `yaml:"email"`

	Admin struct {
		// Hash bcrypt de la API key administrativa (X-Admin-API-Key).
		APIKeyHash string `yaml:"api_key_hash"`
	} `yaml:"admin"`

	Logging struct {
		Level string `yaml:"level"`
		// Dir habilita logs a archivo (mercador-YYYY-MM-DD.log) y con eso
		// el endpoint de logs para admins.
		Dir string `yaml:"dir"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Sessions.Driver == "" {
		c.Sessions.Driver = "redis"
	}
	if c.Sessions.Redis.Addr == "" {
		c.Sessions.Redis.Addr = "localhost:6379"
	}
	if c.Sessions.Redis.Prefix == "" {
		c.Sessions.Redis.Prefix = "mercador:"
	}
	if c.Sessions.RefreshTTL == "" {
		c.Sessions.RefreshTTL = "168h" // 7d
	}
	if c.Identity.Timeout == "" {
		c.Identity.Timeout = "10s"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "sb_access_token"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Catalog.CacheTTL == "" {
		c.Catalog.CacheTTL = "60s"
	}
	if c.Email.Driver == "" {
		c.Email.Driver = "noop"
	}
	if c.Email.SMTP.TLS == "" {
		c.Email.SMTP.TLS = "auto"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	// validate string durations
	for _, d := range []string{
		c.Server.ReadTimeout, c.Server.WriteTimeout, c.Server.ShutdownTimeout,
		c.Sessions.RefreshTTL, c.Identity.Timeout, c.Catalog.CacheTTL,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate chequea lo que no puede faltar en prod.
func (c *Config) Validate() error {
	if !c.IsProd() {
		return nil
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: storage.dsn is required in prod")
	}
	if strings.TrimSpace(c.Identity.BaseURL) == "" {
		return errors.New("config: identity.base_url is required in prod")
	}
	if strings.TrimSpace(c.Wompi.EventsSecret) == "" {
		return errors.New("config: wompi.events_secret is required in prod")
	}
	// En prod la degradación del Session Store es opt-in explícito.
	if c.Sessions.Driver == "memory" {
		return errors.New("config: sessions.driver=memory is not allowed in prod")
	}
	return nil
}

// IsProd indica si corremos en producción.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}

// Duration parsea una duración ya validada en Load.
func Duration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	} else if v, ok := getEnvStr("DATABASE_URL"); ok {
		// alias común en PaaS
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// SESSIONS
	if v, ok := getEnvStr("SESSIONS_DRIVER"); ok {
		c.Sessions.Driver = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Sessions.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Sessions.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Sessions.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Sessions.Redis.Prefix = v
	}
	if v, ok := getEnvBool("SESSIONS_ALLOW_FALLBACK"); ok {
		c.Sessions.AllowFallback = v
	}
	if v, ok := getEnvStr("SESSIONS_REFRESH_TTL"); ok {
		c.Sessions.RefreshTTL = v
	}

	// IDENTITY
	if v, ok := getEnvStr("IDENTITY_BASE_URL"); ok {
		c.Identity.BaseURL = v
	}
	if v, ok := getEnvStr("IDENTITY_API_KEY"); ok {
		c.Identity.APIKey = v
	}
	if v, ok := getEnvStr("IDENTITY_TIMEOUT"); ok {
		c.Identity.Timeout = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_SESSION_COOKIE_NAME"); ok {
		c.Auth.Session.CookieName = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_DOMAIN"); ok {
		c.Auth.Session.Domain = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_SAMESITE"); ok {
		c.Auth.Session.SameSite = v
	}
	if v, ok := getEnvBool("AUTH_SESSION_SECURE"); ok {
		c.Auth.Session.Secure = v
	}

	// CATALOG
	if v, ok := getEnvStr("CATALOG_CACHE_TTL"); ok {
		c.Catalog.CacheTTL = v
	}

	// WOMPI
	if v, ok := getEnvStr("WOMPI_PUBLIC_KEY"); ok {
		c.Wompi.PublicKey = v
	}
	if v, ok := getEnvStr("WOMPI_EVENTS_SECRET"); ok {
		c.Wompi.EventsSecret = v
	}

	// EMAIL
	if v, ok := getEnvStr("EMAIL_DRIVER"); ok {
		c.Email.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("MAILGUN_API_KEY"); ok {
		c.Email.Mailgun.APIKey = v
	}
	if v, ok := getEnvStr("MAILGUN_DOMAIN"); ok {
		c.Email.Mailgun.Domain = v
	}
	if v, ok := getEnvStr("MAILGUN_FROM"); ok {
		c.Email.Mailgun.From = v
	}
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.Email.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.Email.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.Email.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.Email.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.Email.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.Email.SMTP.TLS = strings.ToLower(v) // auto|starttls|ssl|none
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.Email.SMTP.InsecureSkipVerify = v
	}

	// ADMIN
	if v, ok := getEnvStr("ADMIN_API_KEY_HASH"); ok {
		c.Admin.APIKeyHash = v
	}

	// LOGGING
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_DIR"); ok {
		c.Logging.Dir = v
	}

	// METRICS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}

	// FLAGS
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}
