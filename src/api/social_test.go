package api

import (
	"context"
	"net/http"
	"testing"

	"socialconnect/src/models"
	"socialconnect/src/testutil"
)

func TestSocialEndpointsWireFormat(t *testing.T) {
	alice := models.User{Username: "alice"}
	bob := models.Username("bob")

	tests := []struct {
		name   string
		call   func(ctx context.Context, c *Client, tweet, poll models.ID) error
		method string
		path   string
		query  map[string]string
		form   map[string]string
	}{
		{
			name: "create tweet",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.CreateTweet(ctx, alice, "hello", "")
				return err
			},
			method: http.MethodPost,
			path:   "/new_tweet",
			form:   map[string]string{"username": "alice", "content": "hello"},
		},
		{
			name: "fetch tweet",
			call: func(ctx context.Context, c *Client, tweet, _ models.ID) error {
				_, err := c.FetchTweet(ctx, tweet)
				return err
			},
			method: http.MethodGet,
			path:   "/full_tweet/101",
		},
		{
			name: "like tweet",
			call: func(ctx context.Context, c *Client, tweet, _ models.ID) error {
				return c.LikeTweet(ctx, tweet, bob)
			},
			method: http.MethodPost,
			path:   "/new_like",
			form:   map[string]string{"tweet_id": "101", "user_id": "bob"},
		},
		{
			name: "unlike tweet",
			call: func(ctx context.Context, c *Client, tweet, _ models.ID) error {
				return c.UnlikeTweet(ctx, tweet, bob)
			},
			method: http.MethodPost,
			path:   "/new_unlike",
			form:   map[string]string{"tweet_id": "101", "user_id": "bob"},
		},
		{
			name: "add comment",
			call: func(ctx context.Context, c *Client, tweet, _ models.ID) error {
				return c.AddComment(ctx, tweet, bob, "nice")
			},
			method: http.MethodPost,
			path:   "/new_comment",
			form:   map[string]string{"tweet_id": "101", "username": "bob", "content": "nice"},
		},
		{
			name: "create poll",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.CreatePoll(ctx, alice, "tea?", []string{"yes", "no"})
				return err
			},
			method: http.MethodPost,
			path:   "/new_poll",
			form:   map[string]string{"username": "alice", "content": "tea?", "options": "yes,no"},
		},
		{
			name: "fetch poll",
			call: func(ctx context.Context, c *Client, _, poll models.ID) error {
				_, err := c.FetchPoll(ctx, poll)
				return err
			},
			method: http.MethodGet,
			path:   "/poll/102",
		},
		{
			name: "cast vote",
			call: func(ctx context.Context, c *Client, _, poll models.ID) error {
				return c.CastVote(ctx, bob, poll, "yes")
			},
			method: http.MethodPost,
			path:   "/cast_vote",
			form:   map[string]string{"username": "bob", "poll_id": "102", "option": "yes"},
		},
		{
			name: "poll feed",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.FetchPollFeed(ctx)
				return err
			},
			method: http.MethodGet,
			path:   "/poll_feed",
		},
		{
			name: "follow",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.FollowUser(ctx, bob, alice)
				return err
			},
			method: http.MethodGet,
			path:   "/new_follow",
			query:  map[string]string{"curuser": "bob", "user": "alice"},
		},
		{
			name: "is following",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.IsFollowing(ctx, bob, alice)
				return err
			},
			method: http.MethodGet,
			path:   "/is_following",
			query:  map[string]string{"curuser": "bob", "user": "alice"},
		},
		{
			name: "unfollow",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.UnfollowUser(ctx, bob, alice)
				return err
			},
			method: http.MethodGet,
			path:   "/new_unfollow",
			query:  map[string]string{"curuser": "bob", "user": "alice"},
		},
		{
			name: "followers",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.FetchFollowers(ctx, alice)
				return err
			},
			method: http.MethodGet,
			path:   "/all_followers/alice",
		},
		{
			name: "remove follower",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				return c.RemoveFollower(ctx, alice, bob)
			},
			method: http.MethodPost,
			path:   "/remove_follower",
			form:   map[string]string{"user": "alice", "follower": "bob"},
		},
		{
			name: "join group",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.JoinGroup(ctx, "G", bob)
				return err
			},
			method: http.MethodPost,
			path:   "/join_group",
			form:   map[string]string{"grpname": "G", "username": "bob"},
		},
		{
			name: "leave group",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.LeaveGroup(ctx, "G", bob)
				return err
			},
			method: http.MethodPost,
			path:   "/leave_group",
			form:   map[string]string{"grpname": "G", "username": "bob"},
		},
		{
			name: "send direct message",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				return c.SendMessage(ctx, alice, bob, "hey")
			},
			method: http.MethodPost,
			path:   "/new_chat_msg",
			form:   map[string]string{"sender": "alice", "receiver": "bob", "msg": "hey"},
		},
		{
			name: "fetch direct messages",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.FetchChat(ctx, alice, bob)
				return err
			},
			method: http.MethodGet,
			path:   "/get_chat/alice/bob",
		},
		{
			name: "profile",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.FetchUserProfile(ctx, alice)
				return err
			},
			method: http.MethodGet,
			path:   "/user/alice",
		},
		{
			name: "all users",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.FetchAllUsers(ctx)
				return err
			},
			method: http.MethodGet,
			path:   "/all_users",
		},
		{
			name: "create user",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.CreateUser(ctx, models.Profile{Username: "carol", MailID: "carol@example.com", Bio: "hi"})
				return err
			},
			method: http.MethodPost,
			path:   "/new_user",
			form:   map[string]string{"username": "carol", "mailid": "carol@example.com", "bio": "hi"},
		},
		{
			name: "user posts",
			call: func(ctx context.Context, c *Client, _, _ models.ID) error {
				_, err := c.FetchUserPosts(ctx, alice)
				return err
			},
			method: http.MethodGet,
			path:   "/user_posts/alice",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := testutil.NewBackend()
			backend.AddGroup("G", "", "alice", "bob")
			tweet := backend.AddTweet("alice", "first")
			poll := backend.AddPoll("alice", "coffee?", "yes", "no")
			if tweet != 101 || poll != 102 {
				t.Fatalf("seeded ids = %s/%s, want 101/102", tweet, poll)
			}
			client := NewClient(backend.Start(t), nil, nil, nil)

			if err := tc.call(context.Background(), client, tweet, poll); err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			calls := backend.CallsTo(tc.path)
			if len(calls) != 1 {
				t.Fatalf("calls to %s = %d, want 1 (all calls: %+v)", tc.path, len(calls), backend.Calls())
			}
			if calls[0].Method != tc.method {
				t.Fatalf("method = %s, want %s", calls[0].Method, tc.method)
			}
			for key, want := range tc.form {
				if got := calls[0].Form.Get(key); got != want {
					t.Fatalf("form %s = %q, want %q (form %v)", key, got, want, calls[0].Form)
				}
			}
			if len(tc.form) > 0 && len(calls[0].Form) != len(tc.form) {
				t.Fatalf("form = %v, want exactly %v", calls[0].Form, tc.form)
			}
			for key, want := range tc.query {
				if got := calls[0].Query.Get(key); got != want {
					t.Fatalf("query %s = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestDeleteEndpointsUseGet(t *testing.T) {
	backend := testutil.NewBackend()
	tweet := backend.AddTweet("alice", "first")
	poll := backend.AddPoll("alice", "coffee?", "yes", "no")
	client := NewClient(backend.Start(t), nil, nil, nil)
	ctx := context.Background()

	if err := client.AddComment(ctx, tweet, models.Username("bob"), "nice"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	full, err := client.FetchTweet(ctx, tweet)
	if err != nil || len(full.Comments) != 1 {
		t.Fatalf("FetchTweet = (%+v, %v), want one comment", full, err)
	}

	if err := client.DeleteComment(ctx, full.Comments[0].ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if err := client.DeleteTweet(ctx, tweet); err != nil {
		t.Fatalf("DeleteTweet: %v", err)
	}
	if err := client.DeletePoll(ctx, poll); err != nil {
		t.Fatalf("DeletePoll: %v", err)
	}
	for _, path := range []string{"/delete_comment/" + full.Comments[0].ID.String(), "/delete_tweet/101", "/delete_poll/102"} {
		calls := backend.CallsTo(path)
		if len(calls) != 1 || calls[0].Method != http.MethodGet {
			t.Fatalf("calls to %s = %+v, want one GET", path, calls)
		}
	}

	if _, err := client.FetchTweet(ctx, tweet); !IsNotFound(err) {
		t.Fatalf("FetchTweet after delete err = %v, want not found", err)
	}
	if _, err := client.FetchPoll(ctx, poll); !IsNotFound(err) {
		t.Fatalf("FetchPoll after delete err = %v, want not found", err)
	}
}

func TestSocialResponsesDecode(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("bob")
	tweet := backend.AddTweet("alice", "first")
	poll := backend.AddPoll("alice", "coffee?", "yes", "no")
	client := NewClient(backend.Start(t), nil, nil, nil)
	ctx := context.Background()
	bob := models.Username("bob")

	if err := client.LikeTweet(ctx, tweet, bob); err != nil {
		t.Fatalf("LikeTweet: %v", err)
	}
	if got, err := client.FetchTweet(ctx, tweet); err != nil || got.Likes != 1 || got.Author != "alice" {
		t.Fatalf("FetchTweet = (%+v, %v), want one like on alice's tweet", got, err)
	}

	if err := client.CastVote(ctx, bob, poll, "no"); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	got, err := client.FetchPoll(ctx, poll)
	if err != nil || len(got.Options) != 2 || got.Options[1].Votes != 1 || got.PollBy != "alice" {
		t.Fatalf("FetchPoll = (%+v, %v)", got, err)
	}

	if ok, err := client.IsFollowing(ctx, bob, models.Username("alice")); err != nil || ok {
		t.Fatalf("IsFollowing before follow = (%v, %v)", ok, err)
	}
	if _, err := client.FollowUser(ctx, bob, models.Username("alice")); err != nil {
		t.Fatalf("FollowUser: %v", err)
	}
	if ok, err := client.IsFollowing(ctx, bob, models.Username("alice")); err != nil || !ok {
		t.Fatalf("IsFollowing after follow = (%v, %v)", ok, err)
	}
	feed, err := client.FetchFeed(ctx, bob)
	if err != nil || len(feed) != 1 || feed[0].ID != tweet {
		t.Fatalf("FetchFeed = (%+v, %v), want alice's tweet", feed, err)
	}

	if err := client.SendMessage(ctx, bob, models.Username("alice"), "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	msgs, err := client.FetchChat(ctx, models.Username("alice"), bob)
	if err != nil || len(msgs) != 1 || msgs[0].Message != "hi" || msgs[0].Sender != "bob" {
		t.Fatalf("FetchChat = (%+v, %v)", msgs, err)
	}
}

func TestCreateUserValidatesEmail(t *testing.T) {
	backend := testutil.NewBackend()
	client := NewClient(backend.Start(t), nil, nil, nil)

	if _, err := client.CreateUser(context.Background(), models.Profile{Username: "carol", MailID: "not-an-email"}); err == nil {
		t.Fatalf("expected an invalid email to be rejected")
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("no request may be sent for an invalid profile, got %d", len(backend.Calls()))
	}
}
