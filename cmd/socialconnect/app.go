package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"socialconnect/src/api"
	"socialconnect/src/lib"
	"socialconnect/src/models"
	"socialconnect/src/services"
	"socialconnect/src/storage"
)

// app is what every command works against: config, the API client and the
// restored session.
type app struct {
	cfg     lib.Config
	logger  *slog.Logger
	metrics *lib.Metrics
	client  *api.Client
	store   storage.SessionStore
	shell   *services.Shell
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := lib.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := lib.NewLogger(cfg.LogLevel)
	metrics := lib.NewMetrics()
	client := api.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, logger, metrics)

	store, err := storage.OpenSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	shell := services.NewShell(services.NewBackendAuthProvider(client), store, logger)
	if _, _, err := shell.Restore(ctx); err != nil {
		logger.Warn("restore session failed", "error", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		client:  client,
		store:   store,
		shell:   shell,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close session store failed", "error", err)
	}
}

// loggedIn wraps a command body with app setup and the login gate.
func loggedIn(run func(cmd *cobra.Command, a *app, user models.User, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.shell.Require()
		if errors.Is(err, services.ErrNotLoggedIn) {
			return fmt.Errorf("not logged in: run `socialconnect login <username>` first")
		}
		if err != nil {
			return err
		}
		return run(cmd, a, user, args)
	}
}

func parseRequestID(raw string) (models.ID, error) {
	return parseID("request", raw)
}

func parseID(what, raw string) (models.ID, error) {
	var id models.ID
	if err := id.UnmarshalJSON([]byte(raw)); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}
