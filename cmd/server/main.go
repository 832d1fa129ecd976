package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/aggregator"
	"github.com/ndewijer/Finance-Insights/internal/api"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/config"
	"github.com/ndewijer/Finance-Insights/internal/database"
	"github.com/ndewijer/Finance-Insights/internal/logger"
	"github.com/ndewijer/Finance-Insights/internal/repository"
	"github.com/ndewijer/Finance-Insights/internal/scheduler"
	"github.com/ndewijer/Finance-Insights/internal/secrets"
	"github.com/ndewijer/Finance-Insights/internal/service"
	"github.com/ndewijer/Finance-Insights/internal/statement"
	"github.com/ndewijer/Finance-Insights/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.Logging)
	log.Info().Str("version", version.Version).Str("commit", version.Commit()).Msg("starting analysis backend")

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	applied, err := database.Migrate(context.Background(), db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	log.Info().Str("path", cfg.Database.Path).Int("migrations_applied", applied).Msg("connected to database")

	var box *secrets.Box
	if cfg.Crypto.EncryptionKey != "" {
		if box, err = secrets.NewBox(cfg.Crypto.EncryptionKey); err != nil {
			log.Fatal().Err(err).Msg("invalid ENCRYPTION_KEY")
		}
	} else {
		log.Warn().Msg("ENCRYPTION_KEY not set; bank connections will not be saved")
	}

	var bank aggregator.Client
	if cfg.Plaid.Configured() {
		bank = aggregator.NewHTTPClient(aggregator.Options{
			BaseURL:      cfg.Plaid.BaseURL,
			ClientID:     cfg.Plaid.ClientID,
			Secret:       cfg.Plaid.Secret,
			ClientName:   cfg.Plaid.ClientName,
			CountryCodes: cfg.Plaid.CountryCodes,
		}, nil)
	} else {
		log.Warn().Msg("PLAID_CLIENT_ID or PLAID_SECRET not set; bank linking disabled")
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn().Msg("JWT_SECRET not set; using a random secret, sessions end on restart")
	}
	issuer := auth.NewIssuer(secret, cfg.Auth.TokenTTL)

	// Create repositories
	userRepo := repository.NewUserRepository(db)
	statementRepo := repository.NewStatementRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)

	// Create services
	analysisService := service.NewAnalysisService(analysisRepo, statementRepo, box, log)
	svc := api.Services{
		System:     service.NewSystemService(db, bank != nil, box != nil),
		Statements: service.NewStatementService(statementRepo, statement.NewParser(statement.PDFExtractor{}, log), log),
		Analyses:   analysisService,
		Link:       service.NewLinkService(bank, analysisService, cfg.Plaid.HistoryDays, log),
		Issuer:     issuer,
	}
	if cfg.Auth.DevIdentity {
		svc.Identity = service.NewIdentityService(userRepo, issuer, log)
		log.Info().Msg("development identity provider enabled under /auth/v1")
	}

	// Background jobs
	jobs := scheduler.New(log)
	if err := jobs.Add(scheduler.SnapshotJobName, cfg.Scheduler.SnapshotSchedule, scheduler.SnapshotJob(analysisService)); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule snapshot job")
	}
	go func() {
		if err := jobs.Trigger(scheduler.SnapshotJobName); err != nil {
			log.Error().Err(err).Msg("startup snapshot reconciliation failed")
		}
	}()
	jobs.Start()

	// Create router
	router := api.NewRouter(svc, cfg, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := jobs.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("background jobs did not stop in time")
	}

	log.Info().Msg("server exited")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	if cfg.JSON {
		return logger.NewJSON(os.Stdout, cfg.Level)
	}
	return logger.New(cfg.Level)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
