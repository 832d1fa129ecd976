package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/api/handlers"
	custommiddleware "github.com/ndewijer/Finance-Insights/internal/api/middleware"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/config"
	"github.com/ndewijer/Finance-Insights/internal/service"
)

// Services holds the services the router exposes. Identity is optional:
// when nil the development identity provider is not mounted.
type Services struct {
	System     *service.SystemService
	Identity   *service.IdentityService
	Statements *service.StatementService
	Analyses   *service.AnalysisService
	Link       *service.LinkService
	Issuer     *auth.Issuer
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	requireAuth := custommiddleware.BearerAuth(svc.Issuer)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		bankHandler := handlers.NewBankLinkHandler(svc.Link)
		statementHandler := handlers.NewStatementHandler(svc.Statements)
		analysisHandler := handlers.NewAnalysisHandler(svc.Analyses)

		// Guest routes
		r.With(custommiddleware.OptionalBearerAuth(svc.Issuer)).Post("/create_link_token", bankHandler.CreateLinkToken)
		r.Post("/exchange_public_token", bankHandler.ExchangePublicToken)
		r.Post("/transactions", bankHandler.Transactions)
		r.Post("/upload_statement", statementHandler.UploadStatement)
		r.Post("/analyze_transactions", statementHandler.AnalyzeTransactions)

		// Account routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/save_statements", statementHandler.SaveStatements)
			r.Post("/save_analysis", analysisHandler.SaveAnalysis)
			r.Get("/latest_analysis", analysisHandler.LatestAnalysis)
			r.Get("/user_data", statementHandler.UserData)
			r.Post("/rerun_analysis", statementHandler.RerunAnalysis)
			r.Post("/linked_transactions", bankHandler.LinkedTransactions)
			r.With(custommiddleware.ValidateUUIDMiddleware).Delete("/statements/{uuid}", statementHandler.DeleteStatement)
		})
	})

	if svc.Identity != nil {
		r.Route("/auth/v1", func(r chi.Router) {
			r.Use(custommiddleware.APIKeyMiddleware(cfg.Auth.APIKey))

			identityHandler := handlers.NewIdentityHandler(svc.Identity)
			r.Post("/signup", identityHandler.SignUp)
			r.Post("/token", identityHandler.Token)
			r.Post("/recover", identityHandler.Recover)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", identityHandler.Logout)
				r.Get("/user", identityHandler.GetUser)
				r.Put("/user", identityHandler.UpdateUser)
			})
		})
	}

	return r
}
