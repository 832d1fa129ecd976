package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndewijer/Finance-Insights/internal/apiclient"
	"github.com/ndewijer/Finance-Insights/internal/config"
	"github.com/ndewijer/Finance-Insights/internal/frontend"
	"github.com/ndewijer/Finance-Insights/internal/identity"
	"github.com/ndewijer/Finance-Insights/internal/version"
)

func newServeCommand() *cobra.Command {
	var addr string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the finsight JSON surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if addr != "" {
				cfg.App.Addr = addr
			}
			if apiURL != "" {
				cfg.App.APIURL = apiURL
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default APP_HOST:APP_PORT)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "analysis backend base URL (default API_URL)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg.Logging, os.Stdout)
	log.Info().
		Str("version", version.Version).
		Str("api_url", cfg.App.APIURL).
		Str("identity_url", cfg.App.IdentityURL).
		Msg("starting finsight")

	api := apiclient.NewHTTPClient(cfg.App.APIURL, nil, log)
	idp := identity.NewClient(cfg.App.IdentityURL, cfg.App.IdentityKey, nil, log)

	srv, detach := frontend.New(api, idp, log)
	defer detach()

	server := &http.Server{
		Addr:         cfg.App.Addr,
		Handler:      srv.Router(cfg.CORS.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("finsight listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", server.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down finsight")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
