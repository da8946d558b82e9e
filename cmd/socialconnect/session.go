package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"socialconnect/src/lib"
	"socialconnect/src/models"
	"socialconnect/src/services"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Log in as an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.shell.Login(cmd.Context(), args[0])
			if errors.Is(err, services.ErrUnknownUser) {
				return fmt.Errorf("user %q not found", strings.TrimSpace(args[0]))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", session.User.Username)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.shell.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			session, ok := a.shell.Current()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (since %s)\n", session.User.Username, session.IssuedAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := lib.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var out any = cfg
			if withMetrics, _ := cmd.Flags().GetBool("metrics"); withMetrics {
				metrics, err := fetchRelayMetrics(cmd, cfg)
				if err != nil {
					return err
				}
				out = metrics
			}

			data, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().Bool("metrics", false, "Show the push relay counters instead")
	return cmd
}

// fetchRelayMetrics reads /metrics from the relay behind PUSH_RELAY_URL.
func fetchRelayMetrics(cmd *cobra.Command, cfg lib.Config) (map[string]uint64, error) {
	if cfg.PushRelayURL == "" {
		return nil, fmt.Errorf("PUSH_RELAY_URL is required for --metrics")
	}
	base := strings.TrimRight(cfg.PushRelayURL, "/")
	base = strings.Replace(base, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/metrics", nil)
	if err != nil {
		return nil, fmt.Errorf("build metrics request: %w", err)
	}
	resp, err := (&http.Client{Timeout: cfg.HTTPTimeout}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch relay metrics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch relay metrics: status %d", resp.StatusCode)
	}

	metrics := make(map[string]uint64)
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return nil, fmt.Errorf("decode relay metrics: %w", err)
	}
	return metrics, nil
}

func feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Show your feed",
		Args:  cobra.NoArgs,
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, _ []string) error {
			tweets, err := a.client.FetchFeed(cmd.Context(), user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tweets) == 0 {
				fmt.Fprintln(out, "Your feed is empty")
				return nil
			}
			for _, tweet := range tweets {
				renderTweet(out, tweet)
			}
			return nil
		}),
	}
}
