// Package router define las rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mercadorhttp "github.com/mercadorhq/mercador/internal/http"
	adminctrl "github.com/mercadorhq/mercador/internal/http/controllers/admin"
	authctrl "github.com/mercadorhq/mercador/internal/http/controllers/auth"
	catalogctrl "github.com/mercadorhq/mercador/internal/http/controllers/catalog"
	checkoutctrl "github.com/mercadorhq/mercador/internal/http/controllers/checkout"
	licensesctrl "github.com/mercadorhq/mercador/internal/http/controllers/licenses"
	mw "github.com/mercadorhq/mercador/internal/http/middlewares"
	"github.com/mercadorhq/mercador/internal/identity"
	"github.com/mercadorhq/mercador/internal/security/apikey"
	"github.com/mercadorhq/mercador/internal/sessions"
	"github.com/mercadorhq/mercador/internal/store"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Provider identity.Provider
	Sessions *sessions.SessionStore
	Profiles store.ProfileRepository
	AdminKey *apikey.Verifier

	Auth     *authctrl.Controller
	Catalog  *catalogctrl.Controller
	Checkout *checkoutctrl.Controller
	Licenses *licensesctrl.Controller
	Logs     *adminctrl.LogsController

	CookieName         string
	CORSAllowedOrigins []string
	MetricsHandler     http.Handler
	Healthz            http.HandlerFunc
}

// New arma el router completo con sus cadenas de middlewares.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middlewares globales, de afuera hacia adentro.
	r.Use(mw.WithRequestID())
	r.Use(mw.WithRecover())
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(mw.WithCORS(deps.CORSAllowedOrigins))
	}
	r.Use(mercadorhttp.WithMetrics)
	r.Use(mw.WithLogging())
	r.Use(mw.WithSessionCookie(deps.CookieName))

	requireAuth := mw.RequireAuth(deps.Provider, deps.Sessions, deps.Profiles)
	requireAdmin := mw.RequireAdmin(deps.AdminKey, deps.Provider, deps.Sessions, deps.Profiles)

	// ─── Infra ───
	if deps.Healthz != nil {
		r.Get("/healthz", deps.Healthz)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// ─── Auth (público) ───
	r.Post("/v1/auth/login", deps.Auth.Login)
	r.Post("/v1/auth/mfa/verify", deps.Auth.VerifyMFA)
	r.Post("/v1/auth/logout", deps.Auth.Logout)

	// ─── Catálogo (público) ───
	r.Get("/v1/products", deps.Catalog.List)
	r.Get("/v1/products/{idOrSlug}", deps.Catalog.Get)

	// ─── Webhook Wompi (público, protegido por firma) ───
	r.Post("/v1/webhooks/wompi", deps.Checkout.WompiWebhook)

	// ─── Rutas autenticadas ───
	r.Group(func(pr chi.Router) {
		pr.Use(requireAuth)

		pr.Get("/v1/auth/me", deps.Auth.Me)
		pr.Post("/v1/orders", deps.Checkout.CreateOrder)
		pr.Get("/v1/orders", deps.Checkout.ListOrders)
		pr.Get("/v1/orders/{id}", deps.Checkout.GetOrder)
		pr.Get("/v1/licenses", deps.Licenses.List)
	})

	// ─── Rutas admin ───
	r.Group(func(ar chi.Router) {
		ar.Use(requireAdmin)

		ar.Get("/v1/admin/products", deps.Catalog.AdminList)
		ar.Post("/v1/admin/products", deps.Catalog.Create)
		ar.Put("/v1/admin/products/{id}", deps.Catalog.Update)
		ar.Delete("/v1/admin/products/{id}", deps.Catalog.Delete)

		ar.Get("/v1/admin/logs", deps.Logs.List)
		ar.Get("/v1/admin/logs/{name}", deps.Logs.Tail)
	})

	return r
}
