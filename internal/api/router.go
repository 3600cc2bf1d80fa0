package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/leaselens/internal/api/middleware"
	"github.com/kiranshivaraju/leaselens/internal/api/response"
	"github.com/kiranshivaraju/leaselens/internal/metrics"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth    *mw.Auth
	Metrics *metrics.Metrics

	HealthHandler http.HandlerFunc

	CreateSession http.HandlerFunc
	GetSession    http.HandlerFunc
	ResetSession  http.HandlerFunc
	LoadLease     http.HandlerFunc

	Summary  http.HandlerFunc
	Issues   http.HandlerFunc
	Price    http.HandlerFunc
	Rewrites http.HandlerFunc
	Rights   http.HandlerFunc

	Analyze http.HandlerFunc
	GetJob  http.HandlerFunc
	Report  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(deps.Metrics.InstrumentHandler)

	// Public
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Post("/api/v1/sessions", orNotImplemented(deps.CreateSession))
		r.Route("/api/v1/sessions/{sessionID}", func(r chi.Router) {
			r.Use(mw.SessionContext)

			r.Get("/", orNotImplemented(deps.GetSession))
			r.Delete("/", orNotImplemented(deps.ResetSession))
			r.Post("/lease", orNotImplemented(deps.LoadLease))

			r.Post("/summary", orNotImplemented(deps.Summary))
			r.Post("/issues", orNotImplemented(deps.Issues))
			r.Post("/price", orNotImplemented(deps.Price))
			r.Post("/rewrites", orNotImplemented(deps.Rewrites))
			r.Post("/rights", orNotImplemented(deps.Rights))

			r.Post("/analysis", orNotImplemented(deps.Analyze))
			r.Get("/report", orNotImplemented(deps.Report))
		})
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
