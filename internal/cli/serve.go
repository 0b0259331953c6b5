package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/bookshare-be/internal/api"
	"github.com/isdelr/bookshare-be/internal/auth"
	"github.com/isdelr/bookshare-be/internal/config"
	"github.com/isdelr/bookshare-be/internal/database"
	"github.com/isdelr/bookshare-be/internal/monitoring"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/isdelr/bookshare-be/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, hub)
	accountService := services.NewAccountService(db, cfg.BcryptCost)
	catalogService := services.NewCatalogService(db, eventService)
	lendingService := services.NewLendingService(db, eventService)

	scheduler, err := monitoring.NewScheduler(cfg.ReminderCron, lendingService, eventService)
	if err != nil {
		return err
	}
	go scheduler.Run()

	router := api.NewRouter(api.Deps{
		Hub:            hub,
		Tokens:         auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Accounts:       accountService,
		Catalog:        catalogService,
		Lending:        lendingService,
		Events:         eventService,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.Environment).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		scheduler.Stop()
		hub.Stop()
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	hub.Stop()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
