// Package frontend serves the local JSON surface used by the finsight user
// interface. It drives the session store, the analysis store, the
// acquisition flows and the persistence reconciler of a single user.
package frontend

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/acquire"
	"github.com/ndewijer/Finance-Insights/internal/analysis"
	"github.com/ndewijer/Finance-Insights/internal/api/middleware"
	"github.com/ndewijer/Finance-Insights/internal/apiclient"
	"github.com/ndewijer/Finance-Insights/internal/reconcile"
	"github.com/ndewijer/Finance-Insights/internal/session"
)

// Server holds the components behind the JSON surface.
type Server struct {
	sessions   *session.Store
	store      *analysis.Store
	bankLink   *acquire.BankLink
	uploader   *acquire.Uploader
	reconciler *reconcile.Reconciler
	log        zerolog.Logger
}

// Components groups the long-lived objects created at startup.
type Components struct {
	Sessions   *session.Store
	Store      *analysis.Store
	BankLink   *acquire.BankLink
	Uploader   *acquire.Uploader
	Reconciler *reconcile.Reconciler
}

// NewServer creates a Server over c.
func NewServer(c Components, log zerolog.Logger) *Server {
	return &Server{
		sessions:   c.Sessions,
		store:      c.Store,
		bankLink:   c.BankLink,
		uploader:   c.Uploader,
		reconciler: c.Reconciler,
		log:        log.With().Str("component", "frontend").Logger(),
	}
}

// New builds the stores, the acquisition flows and the reconciler of one
// user over api and provider, and returns a Server for them. The returned
// function detaches the reconciler from the session store.
func New(api apiclient.Client, provider session.IdentityProvider, log zerolog.Logger) (*Server, func()) {
	sessions := session.NewStore(provider, log)
	store := analysis.NewStore(log)
	rec := reconcile.New(api, sessions, store, log)
	detach := rec.Attach()

	return NewServer(Components{
		Sessions:   sessions,
		Store:      store,
		BankLink:   acquire.NewBankLink(api, store, log),
		Uploader:   acquire.NewUploader(api, store, log),
		Reconciler: rec,
	}, log), detach
}

// Router returns the HTTP handler for the surface. allowedOrigins configures CORS.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORS(allowedOrigins).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Post("/signin", s.SignIn)
			r.Post("/signup", s.SignUp)
			r.Post("/signout", s.SignOut)
			r.Post("/refresh", s.Refresh)
			r.Post("/recover", s.Recover)
			r.Post("/password", s.UpdatePassword)
		})

		r.Route("/link", func(r chi.Router) {
			r.Get("/", s.LinkStatus)
			r.Post("/start", s.StartLink)
			r.Post("/complete", s.CompleteLink)
		})

		r.Post("/upload", s.Upload)
		r.Get("/analysis", s.CurrentAnalysis)
		r.Post("/analysis/rerun", s.Rerun)
		r.Get("/dashboard", s.Dashboard)

		r.Post("/statements", s.AddStatements)
		r.With(middleware.ValidateUUIDMiddleware).Delete("/statements/{uuid}", s.DeleteStatement)
	})

	return r
}
