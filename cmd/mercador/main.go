package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mercadorhq/mercador/internal/adminlogs"
	"github.com/mercadorhq/mercador/internal/auth"
	"github.com/mercadorhq/mercador/internal/catalog"
	"github.com/mercadorhq/mercador/internal/checkout"
	"github.com/mercadorhq/mercador/internal/config"
	"github.com/mercadorhq/mercador/internal/email"
	mercadorhttp "github.com/mercadorhq/mercador/internal/http"
	adminctrl "github.com/mercadorhq/mercador/internal/http/controllers/admin"
	authctrl "github.com/mercadorhq/mercador/internal/http/controllers/auth"
	catalogctrl "github.com/mercadorhq/mercador/internal/http/controllers/catalog"
	checkoutctrl "github.com/mercadorhq/mercador/internal/http/controllers/checkout"
	licensesctrl "github.com/mercadorhq/mercador/internal/http/controllers/licenses"
	"github.com/mercadorhq/mercador/internal/http/helpers"
	"github.com/mercadorhq/mercador/internal/http/router"
	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/licenses"
	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/security/apikey"
	"github.com/mercadorhq/mercador/internal/sessions"
	"github.com/mercadorhq/mercador/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mercador: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env es opcional; en prod todo llega por env del orquestador.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Logging.Level,
		ServiceName: "mercador",
		Dir:         cfg.Logging.Dir,
	})
	defer func() { _ = logger.Sync() }()

	log := logger.L()
	log.Info("starting mercador", logger.String("env", cfg.App.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─── Postgres ───
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if cfg.Flags.Migrate {
		if err := store.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	repos := store.NewPG(pool)

	// ─── Session Store ───
	raw, degraded, err := sessions.NewWithFallback(sessions.Config{
		Driver:   cfg.Sessions.Driver,
		Addr:     cfg.Sessions.Redis.Addr,
		Password: cfg.Sessions.Redis.Password,
		DB:       cfg.Sessions.Redis.DB,
		Prefix:   cfg.Sessions.Redis.Prefix,
	}, cfg.Sessions.AllowFallback)
	if err != nil {
		return fmt.Errorf("connecting to session store: %w", err)
	}
	defer raw.Close()
	if degraded {
		log.Warn("session store degraded to memory, redis unreachable",
			logger.String("addr", cfg.Sessions.Redis.Addr))
	}
	mercadorhttp.SetSessionFallback(degraded)

	refreshTTL := config.Duration(cfg.Sessions.RefreshTTL, sessions.DefaultRefreshTTL)
	sessionStore := sessions.NewSessionStore(raw, refreshTTL)

	// ─── Identity Provider ───
	provider := identity.NewHTTP(identity.HTTPConfig{
		BaseURL: cfg.Identity.BaseURL,
		APIKey:  cfg.Identity.APIKey,
		Timeout: config.Duration(cfg.Identity.Timeout, 10*time.Second),
	})

	// ─── Email ───
	sender, err := email.New(email.Config{
		Driver: cfg.Email.Driver,
		Mailgun: email.MailgunConfig{
			APIKey: cfg.Email.Mailgun.APIKey,
			Domain: cfg.Email.Mailgun.Domain,
			From:   cfg.Email.Mailgun.From,
		},
		SMTP: email.SMTPConfig{
			Host:               cfg.Email.SMTP.Host,
			Port:               cfg.Email.SMTP.Port,
			From:               cfg.Email.SMTP.From,
			Username:           cfg.Email.SMTP.Username,
			Password:           cfg.Email.SMTP.Password,
			TLSMode:            cfg.Email.SMTP.TLS,
			InsecureSkipVerify: cfg.Email.SMTP.InsecureSkipVerify,
		},
	})
	if err != nil {
		return fmt.Errorf("building email sender: %w", err)
	}
	notifier := email.NewPurchaseNotifier(sender, email.NewInvoiceRenderer(), repos.Profiles, repos.Products)

	// ─── Services ───
	authService := auth.NewService(auth.Deps{Provider: provider, Sessions: sessionStore})
	catalogService := catalog.New(catalog.Deps{
		Products: repos.Products,
		CacheTTL: config.Duration(cfg.Catalog.CacheTTL, 0),
	})
	licenseService := licenses.New(licenses.Deps{Licenses: repos.Licenses})
	checkoutService := checkout.New(checkout.Deps{
		Orders:            repos.Orders,
		Products:          repos.Products,
		Licenses:          licenseService,
		Notifier:          notifier,
		WompiEventsSecret: cfg.Wompi.EventsSecret,
	})
	logsService := adminlogs.New(cfg.Logging.Dir)

	// ─── Métricas ───
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler, err = mercadorhttp.RegisterMetrics(nil)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	// ─── Controllers + router ───
	cookieCfg := authctrl.CookieConfig{
		Name:     cfg.Auth.Session.CookieName,
		Domain:   cfg.Auth.Session.Domain,
		Secure:   cfg.Auth.Session.Secure,
		SameSite: parseSameSite(cfg.Auth.Session.SameSite),
	}

	handler := router.New(router.Deps{
		Provider: provider,
		Sessions: sessionStore,
		Profiles: repos.Profiles,
		AdminKey: apikey.New(cfg.Admin.APIKeyHash),

		Auth:     authctrl.NewController(authService, repos.Profiles, cookieCfg),
		Catalog:  catalogctrl.NewController(catalogService),
		Checkout: checkoutctrl.NewController(checkoutService),
		Licenses: licensesctrl.NewController(licenseService),
		Logs:     adminctrl.NewLogsController(logsService),

		CookieName:         cfg.Auth.Session.CookieName,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MetricsHandler:     metricsHandler,
		Healthz:            healthzHandler(pool, raw, degraded),
	})

	srv := mercadorhttp.NewServer(mercadorhttp.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout, 0),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout, 0),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout, 0),
	}, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("mercador stopped")
	return nil
}

// newPool crea el pool de Postgres con los límites configurados.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Postgres.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
	}
	if cfg.Storage.Postgres.MinConns > 0 {
		pcfg.MinConns = int32(cfg.Storage.Postgres.MinConns)
	}
	if cfg.Storage.Postgres.ConnMaxLifetime != "" {
		pcfg.MaxConnLifetime = config.Duration(cfg.Storage.Postgres.ConnMaxLifetime, 0)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// healthzHandler reporta el estado de las dependencias. La degradación del
// Session Store se reporta siempre, nunca en silencio.
func healthzHandler(pool *pgxpool.Pool, sess sessions.Store, degraded bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{
			"postgres": "ok",
			"sessions": "ok",
		}
		if err := pool.Ping(ctx); err != nil {
			checks["postgres"] = "down"
			status = http.StatusServiceUnavailable
		}
		if err := sess.Ping(ctx); err != nil {
			checks["sessions"] = "down"
			status = http.StatusServiceUnavailable
		} else if degraded {
			checks["sessions"] = "degraded"
		}

		helpers.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}

func parseSameSite(s string) http.SameSite {
	switch s {
	case "Strict", "strict":
		return http.SameSiteStrictMode
	case "None", "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
