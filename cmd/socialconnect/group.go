package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"socialconnect/src/models"
	"socialconnect/src/services"
)

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Browse and manage groups",
	}

	cmd.AddCommand(groupListCmd())
	cmd.AddCommand(groupCreateCmd())
	cmd.AddCommand(groupShowCmd())
	cmd.AddCommand(groupJoinCmd())
	cmd.AddCommand(groupLeaveCmd())
	cmd.AddCommand(groupPostCmd())
	cmd.AddCommand(groupChatCmd())
	cmd.AddCommand(groupRemoveCmd())
	cmd.AddCommand(groupDecisionCmd("approve", models.Approve))
	cmd.AddCommand(groupDecisionCmd("reject", models.Reject))
	return cmd
}

// withGroup loads the group page for the logged-in user and closes it when
// run returns.
func withGroup(run func(cmd *cobra.Command, a *app, ctrl *services.GroupDetailController, args []string) error) func(*cobra.Command, []string) error {
	return loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
		ctrl := services.NewGroupDetailController(args[0], user, a.client, a.logger, a.metrics)
		defer ctrl.Close()

		if err := ctrl.Load(cmd.Context()); err != nil {
			return err
		}
		return run(cmd, a, ctrl, args)
	})
}

func groupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all groups",
		Args:  cobra.NoArgs,
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, _ []string) error {
			groups, err := a.client.FetchAllGroups(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No groups yet")
				return nil
			}
			for _, group := range groups {
				fmt.Fprintf(out, "%s (admin %s)", group.Name, group.Admin)
				if about := group.About(); about != "" {
					fmt.Fprintf(out, ": %s", about)
				}
				fmt.Fprintln(out)
			}
			return nil
		}),
	}
}

func groupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group with you as admin",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			resp, err := a.client.CreateGroup(cmd.Context(), args[0], user, description)
			if err != nil {
				return err
			}
			msg := resp.Message
			if msg == "" {
				msg = "Group created"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		}),
	}

	cmd.Flags().StringP("description", "d", "", "Group description")
	return cmd
}

func groupShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a group page",
		Args:  cobra.ExactArgs(1),
		RunE: withGroup(func(cmd *cobra.Command, a *app, ctrl *services.GroupDetailController, _ []string) error {
			rawTab, _ := cmd.Flags().GetString("tab")
			tab, err := services.ParseTab(rawTab)
			if err != nil {
				return err
			}
			if err := ctrl.SelectTab(tab); err != nil {
				return fmt.Errorf("open %s tab: %w", tab, err)
			}

			out := cmd.OutOrStdout()
			last := renderGroup(ctrl.Snapshot())
			fmt.Fprint(out, last)

			if watch, _ := cmd.Flags().GetBool("watch"); !watch {
				return nil
			}
			if err := startWatch(cmd.Context(), a, ctrl); err != nil {
				return err
			}
			return watchGroup(cmd.Context(), out, ctrl, last)
		}),
	}

	cmd.Flags().StringP("tab", "t", string(services.TabPosts), "Tab to show (posts, chat, members, requests)")
	cmd.Flags().BoolP("watch", "w", false, "Keep refreshing until interrupted")
	return cmd
}

// startWatch polls the backend and, when a push relay is configured, also
// listens for pushed deltas. An unreachable relay falls back to polling.
func startWatch(ctx context.Context, a *app, ctrl *services.GroupDetailController) error {
	poll := ctrl.PollingSource(a.client, a.cfg.ChatPollInterval, a.cfg.RequestPollInterval)
	if a.cfg.PushRelayURL == "" {
		return ctrl.Start(ctx, poll)
	}

	push := &services.NostrSource{
		RelayURL: a.cfg.PushRelayURL,
		Verifier: services.NewDeltaVerifier(a.cfg.PushPublisherPubKey, a.cfg.PushMaxSkew),
		Logger:   a.logger,
		Metrics:  a.metrics,
	}
	err := ctrl.Start(ctx, services.MultiSource{poll, push})
	if err == nil || errors.Is(err, services.ErrClosed) {
		return err
	}
	a.logger.Warn("push relay unavailable, polling only", "relay", a.cfg.PushRelayURL, "error", err)
	return ctrl.Start(ctx, poll)
}

func watchGroup(ctx context.Context, out io.Writer, ctrl *services.GroupDetailController, last string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if page := renderGroup(ctrl.Snapshot()); page != last {
			fmt.Fprint(out, "\n"+page)
			last = page
		}
	}
}

func groupJoinCmd() *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "join <name>",
		Short: "Ask to join a group",
		Args:  cobra.ExactArgs(1),
		RunE: withGroup(func(cmd *cobra.Command, a *app, ctrl *services.GroupDetailController, args []string) error {
			if direct {
				if ctrl.IsMember() {
					return fmt.Errorf("you are already a member of %s", args[0])
				}
				resp, err := a.client.JoinGroup(cmd.Context(), args[0], models.Username(ctrl.Snapshot().Viewer))
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), resp, "Joined "+args[0])
				return nil
			}
			err := ctrl.RequestJoin(cmd.Context())
			if errors.Is(err, services.ErrJoinRejected) {
				return fmt.Errorf("%s", ctrl.Snapshot().JoinError)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Join request sent to %s\n", args[0])
			return nil
		}),
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "join an open group without an approval request")
	return cmd
}

func groupLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <name>",
		Short: "Leave a group you are a member of",
		Args:  cobra.ExactArgs(1),
		RunE: withGroup(func(cmd *cobra.Command, a *app, ctrl *services.GroupDetailController, args []string) error {
			switch {
			case ctrl.IsAdmin():
				return fmt.Errorf("the admin cannot leave %s", args[0])
			case !ctrl.IsMember():
				return fmt.Errorf("you are not a member of %s", args[0])
			}
			resp, err := a.client.LeaveGroup(cmd.Context(), args[0], models.Username(ctrl.Snapshot().Viewer))
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), resp, "Left "+args[0])
			return nil
		}),
	}
}

func groupPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <name> <text>",
		Short: "Post to a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: withGroup(func(cmd *cobra.Command, _ *app, ctrl *services.GroupDetailController, args []string) error {
			if err := ctrl.SubmitPost(cmd.Context(), strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderGroup(ctrl.Snapshot()))
			return nil
		}),
	}
}

func groupChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <name> <text>",
		Short: "Send a group chat message",
		Args:  cobra.MinimumNArgs(2),
		RunE: withGroup(func(cmd *cobra.Command, _ *app, ctrl *services.GroupDetailController, args []string) error {
			if err := ctrl.SendMessage(cmd.Context(), strings.Join(args[1:], " ")); err != nil {
				return err
			}
			if err := ctrl.SelectTab(services.TabChat); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderGroup(ctrl.Snapshot()))
			return nil
		}),
	}
}

func groupRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name> <user>",
		Short: "Remove a member (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: withGroup(func(cmd *cobra.Command, _ *app, ctrl *services.GroupDetailController, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			confirm := services.ConfirmFunc(func(prompt string) bool {
				if yes {
					return true
				}
				return promptYes(cmd.InOrStdin(), cmd.OutOrStdout(), prompt)
			})

			removed, err := ctrl.RemoveMember(cmd.Context(), args[1], confirm)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[1], args[0])
			return nil
		}),
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func promptYes(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func groupDecisionCmd(name string, decision models.Decision) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <name> <request-id>",
		Short: strings.ToUpper(name[:1]) + name[1:] + " a join request (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: withGroup(func(cmd *cobra.Command, _ *app, ctrl *services.GroupDetailController, args []string) error {
			id, err := parseRequestID(args[1])
			if err != nil {
				return err
			}
			procErr := ctrl.ProcessRequest(cmd.Context(), id, decision)
			if ctrl.IsAdmin() {
				if err := ctrl.SelectTab(services.TabRequests); err == nil {
					fmt.Fprint(cmd.OutOrStdout(), renderGroup(ctrl.Snapshot()))
				}
			}
			return procErr
		}),
	}
}

func renderGroup(view services.GroupDetailView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", view.Group.Name)
	if about := view.Group.About(); about != "" {
		fmt.Fprintf(&b, "%s\n", about)
	}
	fmt.Fprintf(&b, "admin: %s | you: %s", view.Group.Admin, view.Status)
	if view.IsAdmin {
		b.WriteString(" (admin)")
	}
	b.WriteString("\n")
	if view.JoinError != "" {
		fmt.Fprintf(&b, "join: %s\n", view.JoinError)
	}
	if view.ActionError != "" {
		fmt.Fprintf(&b, "error: %s\n", view.ActionError)
	}
	fmt.Fprintf(&b, "-- %s --\n", view.Tab)

	switch view.Tab {
	case services.TabPosts:
		if view.Status != services.StatusMember {
			b.WriteString("Join the group to see posts\n")
			break
		}
		if len(view.Posts) == 0 {
			b.WriteString("No posts yet\n")
		}
		for _, post := range view.Posts {
			fmt.Fprintf(&b, "%s: %s [%s]\n", post.Username, post.Content, post.CreatedAt)
		}
	case services.TabChat:
		if len(view.Chat) == 0 {
			b.WriteString("No messages yet\n")
		}
		for _, msg := range view.Chat {
			fmt.Fprintf(&b, "[%s] %s: %s\n", msg.Time, msg.Sender, msg.Message)
		}
	case services.TabMembers:
		for _, member := range view.Members {
			b.WriteString(member.Username)
			if member.IsAdmin {
				b.WriteString(" (admin)")
			}
			if member.IsViewer {
				b.WriteString(" (you)")
			}
			if member.CanRemove {
				b.WriteString(" -> remove")
			}
			b.WriteString("\n")
		}
	case services.TabRequests:
		if len(view.PendingRequests) == 0 {
			b.WriteString("No pending requests\n")
		}
		for _, req := range view.PendingRequests {
			_ = services.RenderRequestView(&b, req)
		}
		if len(view.ProcessedRequests) > 0 {
			b.WriteString("-- processed --\n")
			for _, req := range view.ProcessedRequests {
				_ = services.RenderRequestView(&b, req)
			}
		}
	}
	return b.String()
}
