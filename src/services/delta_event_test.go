package services

import (
	"strings"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"socialconnect/src/models"
)

func newPublisherKey(t *testing.T) (string, string) {
	t.Helper()
	secret := nostr.GeneratePrivateKey()
	pub, err := nostr.GetPublicKey(secret)
	if err != nil {
		t.Fatalf("derive publisher pubkey: %v", err)
	}
	return secret, pub
}

func TestDeltaEventRoundTrip(t *testing.T) {
	secret, pub := newPublisherKey(t)
	now := time.Now()

	delta := Delta{
		Kind:         DeltaJoinRequests,
		Group:        "G",
		JoinRequests: []models.JoinRequest{{ID: 7, GroupName: "G", Username: "bob", Status: models.RequestPending}},
	}
	event, err := EncodeDeltaEvent(delta, secret, now)
	if err != nil {
		t.Fatalf("EncodeDeltaEvent: %v", err)
	}
	if event.Kind != KindJoinRequestsDelta || event.PubKey != pub || GroupTag(event.Tags) != "G" {
		t.Fatalf("unexpected event envelope: kind=%d pub=%s tags=%v", event.Kind, event.PubKey, event.Tags)
	}

	got, err := NewDeltaVerifier(pub, time.Minute).Decode(&event, "G", now)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != DeltaJoinRequests || len(got.JoinRequests) != 1 || got.JoinRequests[0].Username != "bob" {
		t.Fatalf("unexpected decoded delta: %+v", got)
	}
}

func TestDeltaEventEncodesEmptyListAsArray(t *testing.T) {
	secret, _ := newPublisherKey(t)
	event, err := EncodeDeltaEvent(Delta{Kind: DeltaChat, Group: "G"}, secret, time.Now())
	if err != nil {
		t.Fatalf("EncodeDeltaEvent: %v", err)
	}
	if event.Content != "[]" {
		t.Fatalf("Content = %q, want []", event.Content)
	}
}

func TestEncodeDeltaEventRejectsBadInput(t *testing.T) {
	secret, _ := newPublisherKey(t)
	if _, err := EncodeDeltaEvent(Delta{Kind: "bogus", Group: "G"}, secret, time.Now()); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := EncodeDeltaEvent(Delta{Kind: DeltaChat}, secret, time.Now()); err == nil {
		t.Fatalf("expected missing group error")
	}
}

func TestDeltaVerifierRejects(t *testing.T) {
	secret, pub := newPublisherKey(t)
	otherSecret, _ := newPublisherKey(t)
	now := time.Now()

	sign := func(t *testing.T, secret string, at time.Time) nostr.Event {
		t.Helper()
		event, err := EncodeDeltaEvent(Delta{Kind: DeltaChat, Group: "G"}, secret, at)
		if err != nil {
			t.Fatalf("EncodeDeltaEvent: %v", err)
		}
		return event
	}

	tests := []struct {
		name    string
		event   func(t *testing.T) nostr.Event
		group   string
		wantErr string
	}{
		{
			name:    "foreign author",
			event:   func(t *testing.T) nostr.Event { return sign(t, otherSecret, now) },
			group:   "G",
			wantErr: "is not the publisher",
		},
		{
			name:    "stale event",
			event:   func(t *testing.T) nostr.Event { return sign(t, secret, now.Add(-time.Hour)) },
			group:   "G",
			wantErr: "skew",
		},
		{
			name: "tampered content",
			event: func(t *testing.T) nostr.Event {
				event := sign(t, secret, now)
				event.Content = `[{"message":"forged"}]`
				return event
			},
			group:   "G",
			wantErr: "invalid signature",
		},
		{
			name:    "other group",
			event:   func(t *testing.T) nostr.Event { return sign(t, secret, now) },
			group:   "H",
			wantErr: "is for group",
		},
		{
			name: "wrong kind",
			event: func(t *testing.T) nostr.Event {
				event := nostr.Event{PubKey: pub, CreatedAt: nostr.Timestamp(now.Unix()), Kind: 1, Content: "hi"}
				if err := event.Sign(secret); err != nil {
					t.Fatalf("sign: %v", err)
				}
				return event
			},
			group:   "G",
			wantErr: "not a delta kind",
		},
	}

	verifier := NewDeltaVerifier(pub, time.Minute)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event := tc.event(t)
			_, err := verifier.Decode(&event, tc.group, now)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Decode error = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}
