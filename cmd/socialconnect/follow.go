package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"socialconnect/src/models"
	"socialconnect/src/services"
)

func followCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow users and answer follow requests",
	}

	cmd.AddCommand(followRequestCmd())
	cmd.AddCommand(followRequestsCmd())
	cmd.AddCommand(followDecisionCmd("approve", models.Approve))
	cmd.AddCommand(followDecisionCmd("reject", models.Reject))
	cmd.AddCommand(followToggleCmd("add", true))
	cmd.AddCommand(followToggleCmd("remove", false))
	cmd.AddCommand(followCheckCmd())
	cmd.AddCommand(followersCmd())
	cmd.AddCommand(followingCmd())
	cmd.AddCommand(dropFollowerCmd())
	return cmd
}

// followToggleCmd follows or unfollows directly, without a request.
func followToggleCmd(name string, follow bool) *cobra.Command {
	short := "Follow a user directly"
	if !follow {
		short = "Stop following a user"
	}
	return &cobra.Command{
		Use:   name + " <user>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			target := models.Username(strings.TrimSpace(args[0]))
			call, done := a.client.FollowUser, "Now following"
			if !follow {
				call, done = a.client.UnfollowUser, "No longer following"
			}
			resp, err := call(cmd.Context(), user, target)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), resp, done+" "+string(target))
			return nil
		}),
	}
}

func followCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <user>",
		Short: "Tell whether you follow a user",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			following, err := a.client.IsFollowing(cmd.Context(), user, models.Username(args[0]))
			if err != nil {
				return err
			}
			if following {
				fmt.Fprintf(cmd.OutOrStdout(), "You follow %s
", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "You do not follow %s
", args[0])
			}
			return nil
		}),
	}
}

func followersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "followers [user]",
		Short: "List followers, yours by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			followers, err := a.client.FetchFollowers(cmd.Context(), targetOrSelf(user, args))
			if err != nil {
				return err
			}
			names := make([]string, 0, len(followers))
			for _, f := range followers {
				name := f.Follower
				if name == "" {
					name = f.Username
				}
				names = append(names, name)
			}
			printNames(cmd.OutOrStdout(), names, "No followers")
			return nil
		}),
	}
}

func followingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "following [user]",
		Short: "List followed users, yours by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			following, err := a.client.FetchFollowing(cmd.Context(), targetOrSelf(user, args))
			if err != nil {
				return err
			}
			names := make([]string, 0, len(following))
			for _, f := range following {
				names = append(names, f.Following)
			}
			printNames(cmd.OutOrStdout(), names, "Not following anyone")
			return nil
		}),
	}
}

func dropFollowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <follower>",
		Short: "Remove one of your followers",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			if err := a.client.RemoveFollower(cmd.Context(), user, models.Username(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s no longer follows you\n", args[0])
			return nil
		}),
	}
}

func printNames(out io.Writer, names []string, empty string) {
	if len(names) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
}

func followRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <user>",
		Short: "Ask a user to accept you as a follower",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			ctrl := services.NewFollowRequestsController(user, a.client, a.logger)
			if err := ctrl.Request(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Follow request sent to %s\n", args[0])
			return nil
		}),
	}
}

func followRequestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "List incoming and outgoing follow requests",
		Args:  cobra.NoArgs,
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, _ []string) error {
			ctrl := services.NewFollowRequestsController(user, a.client, a.logger)
			if err := ctrl.Load(cmd.Context()); err != nil {
				return err
			}
			renderFollowRequests(cmd.OutOrStdout(), ctrl.Snapshot())
			return nil
		}),
	}
}

func followDecisionCmd(name string, decision models.Decision) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <request-id>",
		Short: strings.ToUpper(name[:1]) + name[1:] + " an incoming follow request",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			id, err := parseRequestID(args[0])
			if err != nil {
				return err
			}
			ctrl := services.NewFollowRequestsController(user, a.client, a.logger)
			if err := ctrl.Load(cmd.Context()); err != nil {
				return err
			}
			procErr := ctrl.Process(cmd.Context(), id, decision)
			renderFollowRequests(cmd.OutOrStdout(), ctrl.Snapshot())
			return procErr
		}),
	}
}

func renderFollowRequests(out io.Writer, view services.FollowRequestsView) {
	sections := []struct {
		title string
		items []services.RequestView
	}{
		{"Pending", view.Pending},
		{"Processed", view.Processed},
		{"Sent", view.Outgoing},
	}
	for _, section := range sections {
		fmt.Fprintf(out, "-- %s --\n", section.title)
		if len(section.items) == 0 {
			fmt.Fprintln(out, "none")
		}
		for _, item := range section.items {
			_ = services.RenderRequestView(out, item)
		}
	}
}
