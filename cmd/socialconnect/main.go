package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "socialconnect",
		Short:         "SocialConnect client: groups, chat, follows, tweets, polls and the push relay",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(feedCmd())
	rootCmd.AddCommand(groupCmd())
	rootCmd.AddCommand(followCmd())
	rootCmd.AddCommand(tweetCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(pollCmd())
	rootCmd.AddCommand(dmCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(pushRelayCmd())

	return rootCmd
}
