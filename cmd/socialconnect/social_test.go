package main

import (
	"strings"
	"testing"

	"socialconnect/src/testutil"
)

func TestTweetCommands(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice", "bob")
	setCLIEnv(t, backend.Start(t))
	mustRun(t, "login", "alice")

	if out := mustRun(t, "tweet", "post", "hello", "world"); !strings.Contains(out, "Tweet 101 created") {
		t.Fatalf("post output = %q", out)
	}
	if out := mustRun(t, "tweet", "like", "101"); !strings.Contains(out, "Liked: tweet 101") {
		t.Fatalf("like output = %q", out)
	}
	mustRun(t, "tweet", "comment", "101", "nice", "one")

	out := mustRun(t, "tweet", "show", "101")
	if !strings.Contains(out, "#101 alice: hello world") || !strings.Contains(out, "(1 likes)") {
		t.Fatalf("show output = %q", out)
	}
	if !strings.Contains(out, "#102 alice: nice one") {
		t.Fatalf("show output lacks the comment: %q", out)
	}

	if out := mustRun(t, "feed"); !strings.Contains(out, "#101 alice: hello world") {
		t.Fatalf("feed output = %q", out)
	}
	if out := mustRun(t, "posts"); !strings.Contains(out, "#101 alice") {
		t.Fatalf("posts output = %q", out)
	}
	if out := mustRun(t, "posts", "bob"); !strings.Contains(out, "bob has not posted yet") {
		t.Fatalf("posts bob output = %q", out)
	}

	mustRun(t, "tweet", "unlike", "101")
	mustRun(t, "tweet", "uncomment", "102")
	if out := mustRun(t, "tweet", "show", "101"); strings.Contains(out, "likes") || strings.Contains(out, "nice one") {
		t.Fatalf("show after unlike/uncomment = %q", out)
	}

	mustRun(t, "tweet", "delete", "101")
	if _, err := runCLI(t, "", "tweet", "show", "101"); err == nil {
		t.Fatalf("expected a deleted tweet to be gone")
	}
	if _, err := runCLI(t, "", "tweet", "like", "abc"); err == nil || !strings.Contains(err.Error(), "invalid tweet id") {
		t.Fatalf("like with bad id err = %v", err)
	}
}

func TestPollCommands(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice")
	setCLIEnv(t, backend.Start(t))
	mustRun(t, "login", "alice")

	if out := mustRun(t, "poll", "list"); !strings.Contains(out, "No polls yet") {
		t.Fatalf("empty list = %q", out)
	}
	if _, err := runCLI(t, "", "poll", "create", "pick", "a,b", "c"); err == nil {
		t.Fatalf("expected an option with a comma to be refused")
	}
	if out := mustRun(t, "poll", "create", "tea or coffee", "tea", "coffee"); !strings.Contains(out, "Poll 101 created") {
		t.Fatalf("create output = %q", out)
	}
	if out := mustRun(t, "poll", "vote", "101", "coffee"); !strings.Contains(out, `Voted "coffee" on poll 101`) {
		t.Fatalf("vote output = %q", out)
	}
	out := mustRun(t, "poll", "show", "101")
	if !strings.Contains(out, "alice asks: tea or coffee") || !strings.Contains(out, "- coffee (1)") || !strings.Contains(out, "- tea (0)") {
		t.Fatalf("show output = %q", out)
	}
	if _, err := runCLI(t, "", "poll", "vote", "101", "water"); err == nil {
		t.Fatalf("expected an unknown option to fail")
	}

	mustRun(t, "poll", "delete", "101")
	if out := mustRun(t, "poll", "list"); !strings.Contains(out, "No polls yet") {
		t.Fatalf("list after delete = %q", out)
	}
}

func TestDirectMessageCommands(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice", "bob")
	setCLIEnv(t, backend.Start(t))
	mustRun(t, "login", "alice")

	if out := mustRun(t, "dm", "show", "bob"); !strings.Contains(out, "No messages with bob") {
		t.Fatalf("empty conversation = %q", out)
	}
	if out := mustRun(t, "dm", "send", "bob", "hi", "there"); !strings.Contains(out, "Message sent to bob") {
		t.Fatalf("send output = %q", out)
	}
	if out := mustRun(t, "dm", "show", "bob"); !strings.Contains(out, "alice: hi there") {
		t.Fatalf("conversation = %q", out)
	}
}

func TestUserCommands(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice", "bob")
	setCLIEnv(t, backend.Start(t))

	if _, err := runCLI(t, "", "user", "create", "carol"); err == nil {
		t.Fatalf("expected --email to be required")
	}
	if out := mustRun(t, "user", "create", "carol", "--email", "carol@example.com", "--first-name", "Carol", "--bio", "hi"); !strings.Contains(out, "Registered carol") {
		t.Fatalf("create output = %q", out)
	}

	mustRun(t, "login", "carol")
	out := mustRun(t, "user", "show", "carol")
	if !strings.Contains(out, "Name: Carol") || !strings.Contains(out, "Bio: hi") {
		t.Fatalf("show output = %q", out)
	}
	out = mustRun(t, "user", "list")
	for _, name := range []string{"alice", "bob", "carol"} {
		if !strings.Contains(out, name) {
			t.Fatalf("list output %q lacks %s", out, name)
		}
	}
	if _, err := runCLI(t, "", "user", "show", "mallory"); err == nil {
		t.Fatalf("expected unknown user to fail")
	}
}

func TestDirectFollowCommands(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice", "bob", "carol")
	backend.Follow("carol", "alice")
	setCLIEnv(t, backend.Start(t))
	mustRun(t, "login", "alice")

	if out := mustRun(t, "follow", "add", "bob"); !strings.Contains(out, "Now following bob") {
		t.Fatalf("add output = %q", out)
	}
	if out := mustRun(t, "follow", "check", "bob"); !strings.Contains(out, "You follow bob") {
		t.Fatalf("check output = %q", out)
	}
	if out := mustRun(t, "follow", "following"); !strings.Contains(out, "bob") {
		t.Fatalf("following output = %q", out)
	}
	if out := mustRun(t, "follow", "followers", "bob"); !strings.Contains(out, "alice") {
		t.Fatalf("followers of bob = %q", out)
	}
	if out := mustRun(t, "follow", "remove", "bob"); !strings.Contains(out, "No longer following bob") {
		t.Fatalf("remove output = %q", out)
	}
	if out := mustRun(t, "follow", "check", "bob"); !strings.Contains(out, "You do not follow bob") {
		t.Fatalf("check after remove = %q", out)
	}

	if out := mustRun(t, "follow", "followers"); !strings.Contains(out, "carol") {
		t.Fatalf("own followers = %q", out)
	}
	if out := mustRun(t, "follow", "drop", "carol"); !strings.Contains(out, "carol no longer follows you") {
		t.Fatalf("drop output = %q", out)
	}
	if out := mustRun(t, "follow", "followers"); !strings.Contains(out, "No followers") {
		t.Fatalf("followers after drop = %q", out)
	}
	if got := backend.Followers("alice"); len(got) != 0 {
		t.Fatalf("backend followers of alice = %v", got)
	}
}

func TestGroupDirectJoinAndLeave(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddGroup("open", "", "carol")
	backend.AddGroup("mine", "", "alice")
	setCLIEnv(t, backend.Start(t))
	mustRun(t, "login", "alice")

	if out := mustRun(t, "group", "join", "open", "--direct"); !strings.Contains(out, "Joined open") {
		t.Fatalf("join output = %q", out)
	}
	if len(backend.JoinRequests()) != 0 {
		t.Fatalf("a direct join must not file a request: %+v", backend.JoinRequests())
	}
	if _, err := runCLI(t, "", "group", "join", "open", "--direct"); err == nil || !strings.Contains(err.Error(), "already a member") {
		t.Fatalf("second join err = %v", err)
	}

	if out := mustRun(t, "group", "leave", "open"); !strings.Contains(out, "Left open") {
		t.Fatalf("leave output = %q", out)
	}
	if members := backend.Members("open"); len(members) != 1 || members[0] != "carol" {
		t.Fatalf("members after leave = %v", members)
	}
	if _, err := runCLI(t, "", "group", "leave", "open"); err == nil || !strings.Contains(err.Error(), "not a member") {
		t.Fatalf("leave as non-member err = %v", err)
	}
	if _, err := runCLI(t, "", "group", "leave", "mine"); err == nil || !strings.Contains(err.Error(), "admin cannot leave") {
		t.Fatalf("leave as admin err = %v", err)
	}
}
