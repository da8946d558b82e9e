package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"socialconnect/src/models"
)

func tweetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tweet",
		Short: "Post, read, like and comment on tweets",
	}

	cmd.AddCommand(tweetPostCmd())
	cmd.AddCommand(tweetShowCmd())
	cmd.AddCommand(tweetDeleteCmd())
	cmd.AddCommand(tweetLikeCmd("like", true))
	cmd.AddCommand(tweetLikeCmd("unlike", false))
	cmd.AddCommand(tweetCommentCmd())
	cmd.AddCommand(tweetUncommentCmd())
	return cmd
}

func tweetPostCmd() *cobra.Command {
	var photo string
	cmd := &cobra.Command{
		Use:   "post <text>",
		Short: "Publish a tweet",
		Args:  cobra.MinimumNArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			resp, err := a.client.CreateTweet(cmd.Context(), user, strings.Join(args, " "), photo)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), resp, "Tweet posted")
			return nil
		}),
	}
	cmd.Flags().StringVar(&photo, "photo", "", "photo URL to attach")
	return cmd
}

func tweetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tweet-id>",
		Short: "Show a tweet with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, args []string) error {
			id, err := parseID("tweet", args[0])
			if err != nil {
				return err
			}
			tweet, err := a.client.FetchTweet(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderTweet(out, tweet)
			for _, comment := range tweet.Comments {
				fmt.Fprintf(out, "  #%s %s: %s [%s]\n", comment.ID, comment.Username, comment.Content, comment.Time)
			}
			return nil
		}),
	}
}

func tweetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tweet-id>",
		Short: "Delete a tweet",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, args []string) error {
			id, err := parseID("tweet", args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteTweet(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tweet %s deleted\n", id)
			return nil
		}),
	}
}

func tweetLikeCmd(name string, like bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <tweet-id>",
		Short: strings.ToUpper(name[:1]) + name[1:] + " a tweet",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			id, err := parseID("tweet", args[0])
			if err != nil {
				return err
			}
			if like {
				err = a.client.LikeTweet(cmd.Context(), id, user)
			} else {
				err = a.client.UnlikeTweet(cmd.Context(), id, user)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: tweet %s\n", strings.ToUpper(name[:1])+name[1:]+"d", id)
			return nil
		}),
	}
}

func tweetCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <tweet-id> <text>",
		Short: "Comment on a tweet",
		Args:  cobra.MinimumNArgs(2),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			id, err := parseID("tweet", args[0])
			if err != nil {
				return err
			}
			if err := a.client.AddComment(cmd.Context(), id, user, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment added to tweet %s\n", id)
			return nil
		}),
	}
}

func tweetUncommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uncomment <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, args []string) error {
			id, err := parseID("comment", args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteComment(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment %s deleted\n", id)
			return nil
		}),
	}
}

func postsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "posts [user]",
		Short: "List a user's tweets, yours by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			target := targetOrSelf(user, args)
			tweets, err := a.client.FetchUserPosts(cmd.Context(), target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tweets) == 0 {
				fmt.Fprintf(out, "%s has not posted yet\n", target.Handle())
				return nil
			}
			for _, tweet := range tweets {
				renderTweet(out, tweet)
			}
			return nil
		}),
	}
}

func renderTweet(out io.Writer, tweet models.Tweet) {
	fmt.Fprintf(out, "#%s %s: %s [%s]", tweet.ID, tweet.Author, tweet.Content, tweet.Time)
	if tweet.Likes > 0 {
		fmt.Fprintf(out, " (%d likes)", tweet.Likes)
	}
	fmt.Fprintln(out)
}

func pollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Create polls and vote",
	}

	cmd.AddCommand(pollCreateCmd())
	cmd.AddCommand(pollShowCmd())
	cmd.AddCommand(pollListCmd())
	cmd.AddCommand(pollVoteCmd())
	cmd.AddCommand(pollDeleteCmd())
	return cmd
}

func pollCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <question> <option> <option> [option...]",
		Short: "Create a poll with at least two options",
		Args:  cobra.MinimumNArgs(3),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			for _, opt := range args[1:] {
				if strings.Contains(opt, ",") {
					return fmt.Errorf("poll option %q must not contain a comma", opt)
				}
			}
			resp, err := a.client.CreatePoll(cmd.Context(), user, args[0], args[1:])
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), resp, "Poll created")
			return nil
		}),
	}
}

func pollShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <poll-id>",
		Short: "Show a poll and its votes",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, args []string) error {
			id, err := parseID("poll", args[0])
			if err != nil {
				return err
			}
			poll, err := a.client.FetchPoll(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderPoll(cmd.OutOrStdout(), poll)
			return nil
		}),
	}
}

func pollListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent polls",
		Args:  cobra.NoArgs,
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, _ []string) error {
			polls, err := a.client.FetchPollFeed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(polls) == 0 {
				fmt.Fprintln(out, "No polls yet")
			}
			for _, poll := range polls {
				renderPoll(out, poll)
			}
			return nil
		}),
	}
}

func pollVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <poll-id> <option>",
		Short: "Vote for one option of a poll",
		Args:  cobra.MinimumNArgs(2),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			id, err := parseID("poll", args[0])
			if err != nil {
				return err
			}
			option := strings.Join(args[1:], " ")
			if err := a.client.CastVote(cmd.Context(), user, id, option); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Voted %q on poll %s\n", option, id)
			return nil
		}),
	}
}

func pollDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <poll-id>",
		Short: "Delete a poll",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, args []string) error {
			id, err := parseID("poll", args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeletePoll(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Poll %s deleted\n", id)
			return nil
		}),
	}
}

func renderPoll(out io.Writer, poll models.Poll) {
	fmt.Fprintf(out, "#%s %s asks: %s\n", poll.ID, poll.PollBy, poll.Content)
	for _, opt := range poll.Options {
		fmt.Fprintf(out, "  - %s (%d)\n", opt.Option, opt.Votes)
	}
}

func dmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dm",
		Short: "Direct messages",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user>",
		Short: "Show your conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			msgs, err := a.client.FetchChat(cmd.Context(), user, models.Username(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintf(out, "No messages with %s\n", args[0])
			}
			for _, msg := range msgs {
				fmt.Fprintf(out, "[%s] %s: %s\n", msg.Time, msg.Sender, msg.Message)
			}
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "send <user> <text>",
		Short: "Send a direct message",
		Args:  cobra.MinimumNArgs(2),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, user models.User, args []string) error {
			if err := a.client.SendMessage(cmd.Context(), user, models.Username(args[0]), strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message sent to %s\n", args[0])
			return nil
		}),
	})
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Browse and register user profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user>",
		Short: "Show a user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, args []string) error {
			profile, err := a.client.FetchUserProfile(cmd.Context(), models.Username(args[0]))
			if err != nil {
				return err
			}
			renderProfile(cmd.OutOrStdout(), profile)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every user",
		Args:  cobra.NoArgs,
		RunE: loggedIn(func(cmd *cobra.Command, a *app, _ models.User, _ []string) error {
			users, err := a.client.FetchAllUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, profile := range users {
				fmt.Fprintln(cmd.OutOrStdout(), profile.Username)
			}
			return nil
		}),
	})
	cmd.AddCommand(userCreateCmd())
	return cmd
}

// userCreateCmd registers an account; it needs no login.
func userCreateCmd() *cobra.Command {
	var profile models.Profile
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Register a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			profile.Username = strings.TrimSpace(args[0])
			resp, err := a.client.CreateUser(cmd.Context(), profile)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), resp, "Registered "+profile.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&profile.MailID, "email", "", "email address (required)")
	cmd.Flags().StringVar(&profile.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&profile.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&profile.Bio, "bio", "", "short bio")
	cmd.Flags().StringVar(&profile.Location, "location", "", "location")
	cmd.Flags().StringVar(&profile.Website, "website", "", "website")
	cmd.Flags().StringVar(&profile.DateOfBirth, "dob", "", "date of birth")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func renderProfile(out io.Writer, profile models.Profile) {
	fmt.Fprintln(out, profile.Username)
	if name := strings.TrimSpace(profile.FirstName + " " + profile.LastName); name != "" {
		fmt.Fprintf(out, "Name: %s\n", name)
	}
	fields := []struct{ label, value string }{
		{"Bio", profile.Bio},
		{"Location", profile.Location},
		{"Website", profile.Website},
		{"Joined", profile.JoinedFrom},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(out, "%s: %s\n", f.label, f.value)
		}
	}
}

func targetOrSelf(user models.User, args []string) models.Identity {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return models.Username(strings.TrimSpace(args[0]))
	}
	return user
}

// printStatus prints the backend's message when it sent one, fallback otherwise.
func printStatus(out io.Writer, resp models.StatusResponse, fallback string) {
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
		return
	}
	fmt.Fprintln(out, fallback)
}
