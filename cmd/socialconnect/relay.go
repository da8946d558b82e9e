package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"socialconnect/src/api"
	"socialconnect/src/lib"
	"socialconnect/src/relay"
	"socialconnect/src/services"
)

func pushRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push-relay",
		Short: "Run the push relay, optionally bridging backend state for groups",
		Long: `Run the push relay that fans out signed group deltas to clients.

With --group the relay also polls the backend for each named group and
publishes every change, which needs PUSH_PUBLISHER_SECRET.`,
		Args: cobra.NoArgs,
		RunE: runPushRelay,
	}

	cmd.Flags().StringSliceP("group", "g", nil, "Group to bridge from the backend (repeatable)")
	return cmd
}

func runPushRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := lib.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	groups, _ := cmd.Flags().GetStringSlice("group")
	if len(groups) > 0 && cfg.PushPublisherSecret == "" {
		return fmt.Errorf("PUSH_PUBLISHER_SECRET is required to bridge groups")
	}

	logger := lib.NewLogger(cfg.LogLevel)
	metrics := lib.NewMetrics()

	server, err := relay.NewServer(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("bootstrap relay: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start()
	}()

	if len(groups) > 0 {
		client := api.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, logger, metrics)
		bridge := &relay.Bridge{
			Source: &services.PollingSource{
				Fetcher:         client,
				ChatInterval:    cfg.ChatPollInterval,
				RequestInterval: cfg.RequestPollInterval,
				MemberInterval:  cfg.RequestPollInterval,
				Logger:          logger,
				Metrics:         metrics,
			},
			RelayURL: localRelayURL(cfg.PushRelayAddr),
			Secret:   cfg.PushPublisherSecret,
			Logger:   logger,
			Metrics:  metrics,
		}
		go func() {
			// Give the listener a moment before the bridge dials it.
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			if err := bridge.Run(ctx, groups); err != nil {
				errCh <- fmt.Errorf("bridge: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("push relay stopping")
	case runErr = <-errCh:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return runErr
}

// localRelayURL turns a listen address into a websocket URL on this host.
func localRelayURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "ws://" + host
}
