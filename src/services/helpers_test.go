package services

import (
	"testing"
	"time"

	"socialconnect/src/api"
	"socialconnect/src/testutil"
)

func newTestClient(t *testing.T, backend *testutil.Backend) *api.Client {
	t.Helper()
	return api.NewClient(backend.Start(t), nil, nil, nil)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
