// Package api exposes the host-management operations over HTTP for the admin
// front-end: service supervision, PKI lifecycle, bundle download, and
// configuration. Every operation is synchronous and returns either a typed
// payload or a structured error naming its taxonomy kind.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/rgoodwin/muxgate/bundle"
	"github.com/rgoodwin/muxgate/config"
	"github.com/rgoodwin/muxgate/pki"
	"github.com/rgoodwin/muxgate/supervise"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	authority *pki.Authority
	packager  *bundle.Packager
	sup       *supervise.Supervisor
	cfg       *config.Store
	installer *supervise.Installer
	logPath   string
	audit     *auditLogger
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// New creates a new API instance.
func New(authority *pki.Authority, packager *bundle.Packager, sup *supervise.Supervisor, cfg *config.Store, installer *supervise.Installer, logPath string, opts ...Option) *API {
	a := &API{
		authority: authority,
		packager:  packager,
		sup:       sup,
		cfg:       cfg,
		installer: installer,
		logPath:   logPath,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))
	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Route("/service", func(r chi.Router) {
		r.Post("/start", a.handleStart)
		r.Post("/stop", a.handleStop)
		r.Post("/restart", a.handleRestart)
		r.Get("/status", a.handleStatus)
		r.Put("/autostart", a.handleAutostart)
	})

	r.Route("/pki", func(r chi.Router) {
		r.Post("/init", a.handleInitCA)
		r.Get("/ca.crt", a.handleCACert)
		r.Route("/certificates", func(r chi.Router) {
			r.Get("/", a.handleListCerts)
			r.Post("/", a.handleIssueCert)
			r.Get("/{name}", a.handleCertDetail)
			r.Delete("/{name}", a.handleRevokeCert)
			r.Get("/{name}/bundle", a.handleBundle)
		})
	})

	r.Get("/config", a.handleGetConfig)
	r.Put("/config", a.handleSaveConfig)
	r.Post("/install", a.handleInstall)
	r.Get("/logs", a.handleLogs)

	return r
}
