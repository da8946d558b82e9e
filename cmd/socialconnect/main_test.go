package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"socialconnect/src/models"
	"socialconnect/src/testutil"
)

func setCLIEnv(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv("SOCIALCONNECT_API_URL", apiURL)
	t.Setenv("SOCIALCONNECT_CONFIG", "")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("SESSION_BACKEND", "file")
	t.Setenv("SESSION_PATH", filepath.Join(t.TempDir(), "session.json"))
	for _, key := range []string{
		"HTTP_TIMEOUT_SECONDS", "CHAT_POLL_SECONDS", "REQUEST_POLL_SECONDS",
		"DATABASE_URL", "REDIS_URL", "PUSH_RELAY_URL", "PUSH_PUBLISHER_PUBKEY",
		"PUSH_PUBLISHER_SECRET", "PUSH_RELAY_ADDR", "PUSH_RATE_BURST",
		"PUSH_RATE_PER_MINUTE", "PUSH_MAX_SKEW_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, "", args...)
	if err != nil {
		t.Fatalf("%s: %v\noutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestLoginGate(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice")
	setCLIEnv(t, backend.Start(t))

	if _, err := runCLI(t, "", "feed"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("feed before login err = %v, want not logged in", err)
	}
	if _, err := runCLI(t, "", "login", "mallory"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("login unknown err = %v, want not found", err)
	}

	if out := mustRun(t, "login", "alice"); !strings.Contains(out, "Logged in as alice") {
		t.Fatalf("login output = %q", out)
	}
	if out := mustRun(t, "whoami"); !strings.HasPrefix(out, "alice") {
		t.Fatalf("whoami output = %q", out)
	}
	if out := mustRun(t, "feed"); !strings.Contains(out, "Your feed is empty") {
		t.Fatalf("feed output = %q", out)
	}

	mustRun(t, "logout")
	if out := mustRun(t, "whoami"); !strings.Contains(out, "Not logged in") {
		t.Fatalf("whoami after logout = %q", out)
	}
}

func TestLoginOverCorruptSessionFile(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice")
	setCLIEnv(t, backend.Start(t))
	path := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("SESSION_PATH", path)
	if err := os.WriteFile(path, []byte("{truncated"), 0o600); err != nil {
		t.Fatalf("write corrupt session file: %v", err)
	}

	if out := mustRun(t, "whoami"); !strings.Contains(out, "Not logged in") {
		t.Fatalf("whoami over corrupt file = %q", out)
	}
	if out := mustRun(t, "login", "alice"); !strings.Contains(out, "Logged in as alice") {
		t.Fatalf("login output = %q", out)
	}
	if out := mustRun(t, "whoami"); !strings.HasPrefix(out, "alice") {
		t.Fatalf("whoami after login = %q", out)
	}
}

func TestGroupCommands(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddGroup("gophers", "All about Go", "alice", "carol")
	backend.AddUser("bob")
	setCLIEnv(t, backend.Start(t))

	mustRun(t, "login", "bob")
	out := mustRun(t, "group", "show", "gophers")
	if !strings.Contains(out, "you: not-member") || !strings.Contains(out, "Join the group to see posts") {
		t.Fatalf("non-member page = %q", out)
	}
	if _, err := runCLI(t, "", "group", "show", "gophers", "--tab", "chat"); err == nil {
		t.Fatalf("expected chat tab to be refused for a non-member")
	}
	if out := mustRun(t, "group", "join", "gophers"); !strings.Contains(out, "Join request sent") {
		t.Fatalf("join output = %q", out)
	}
	if out := mustRun(t, "group", "show", "gophers"); !strings.Contains(out, "you: pending") {
		t.Fatalf("pending page = %q", out)
	}

	reqs := backend.JoinRequests()
	if len(reqs) != 1 {
		t.Fatalf("join requests = %+v", reqs)
	}

	mustRun(t, "login", "alice")
	out = mustRun(t, "group", "show", "gophers", "--tab", "requests")
	if !strings.Contains(out, "bob: Wants to join gophers") || !strings.Contains(out, "-> approve | reject") {
		t.Fatalf("requests tab = %q", out)
	}
	out = mustRun(t, "group", "approve", "gophers", reqs[0].ID.String())
	if !strings.Contains(out, "-> Approved") {
		t.Fatalf("approve output = %q", out)
	}
	if members := backend.Members("gophers"); len(members) != 3 {
		t.Fatalf("members after approval = %v", members)
	}

	out = mustRun(t, "group", "show", "gophers", "--tab", "members")
	if !strings.Contains(out, "alice (admin) (you)") || !strings.Contains(out, "bob -> remove") {
		t.Fatalf("members tab = %q", out)
	}

	out, err := runCLI(t, "n\n", "group", "remove", "gophers", "bob")
	if err != nil || !strings.Contains(out, "Cancelled") {
		t.Fatalf("declined remove = %q, %v", out, err)
	}
	if len(backend.CallsTo("/remove_group_member")) != 0 {
		t.Fatalf("declined remove must not reach the backend")
	}
	if out := mustRun(t, "group", "remove", "gophers", "bob", "--yes"); !strings.Contains(out, "Removed bob") {
		t.Fatalf("remove output = %q", out)
	}
	if _, err := runCLI(t, "", "group", "remove", "gophers", "alice", "--yes"); err == nil {
		t.Fatalf("expected removing the admin to fail")
	}

	out = mustRun(t, "group", "chat", "gophers", "hello", "team")
	if !strings.Contains(out, "alice: hello team") {
		t.Fatalf("chat output = %q", out)
	}
	out = mustRun(t, "group", "post", "gophers", "first post")
	if !strings.Contains(out, "alice: first post") {
		t.Fatalf("post output = %q", out)
	}
}

func TestGroupListAndCreate(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice")
	setCLIEnv(t, backend.Start(t))

	mustRun(t, "login", "alice")
	if out := mustRun(t, "group", "list"); !strings.Contains(out, "No groups yet") {
		t.Fatalf("empty list = %q", out)
	}
	mustRun(t, "group", "create", "rustaceans", "--description", "crabs")
	if out := mustRun(t, "group", "list"); !strings.Contains(out, "rustaceans (admin alice): crabs") {
		t.Fatalf("list = %q", out)
	}
}

func TestFollowCommands(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddUser("alice", "bob")
	backend.AddFollowRequest(7, "bob", "alice", models.RequestPending)
	setCLIEnv(t, backend.Start(t))

	mustRun(t, "login", "alice")
	out := mustRun(t, "follow", "requests")
	if !strings.Contains(out, "#7 (B) bob: Wants to follow you") {
		t.Fatalf("requests output = %q", out)
	}

	out = mustRun(t, "follow", "reject", "7")
	if !strings.Contains(out, "-- Processed --") || !strings.Contains(out, "-> Rejected") {
		t.Fatalf("reject output = %q", out)
	}
	if _, err := runCLI(t, "", "follow", "approve", "nope"); err == nil {
		t.Fatalf("expected invalid request id to fail")
	}

	if out := mustRun(t, "follow", "request", "bob"); !strings.Contains(out, "Follow request sent to bob") {
		t.Fatalf("request output = %q", out)
	}
	if _, err := runCLI(t, "", "follow", "request", "alice"); err == nil {
		t.Fatalf("expected self-follow to fail")
	}
}

func TestConfigCommand(t *testing.T) {
	setCLIEnv(t, "http://backend.test")

	out := mustRun(t, "config")
	if !strings.Contains(out, "api_url: http://backend.test") || !strings.Contains(out, "session_backend: file") {
		t.Fatalf("config output = %q", out)
	}
	if _, err := runCLI(t, "", "config", "--metrics"); err == nil || !strings.Contains(err.Error(), "PUSH_RELAY_URL") {
		t.Fatalf("config --metrics err = %v", err)
	}
}

func TestLocalRelayURL(t *testing.T) {
	tests := map[string]string{
		":7447":          "ws://127.0.0.1:7447",
		"0.0.0.0:9000":   "ws://0.0.0.0:9000",
		"relay.local:80": "ws://relay.local:80",
	}
	for addr, want := range tests {
		if got := localRelayURL(addr); got != want {
			t.Fatalf("localRelayURL(%q) = %q, want %q", addr, got, want)
		}
	}
}
