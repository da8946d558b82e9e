package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"socialconnect/src/models"
	"socialconnect/src/testutil"
)

func TestRequestItemViewFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		kind      RequestKind
		ref       RequestRef
		viewer    string
		wantName  string
		wantLabel string
		wantDesc  string
		wantAct   bool
	}{
		{
			name:     "pending for admin",
			kind:     GroupRequestKind,
			ref:      RequestRef{ID: 7, Requester: "bob", GroupName: "G", Approver: "alice", Status: models.RequestPending},
			viewer:   "alice",
			wantName: "bob",
			wantDesc: "Wants to join G",
			wantAct:  true,
		},
		{
			name:      "pending seen by someone else",
			kind:      GroupRequestKind,
			ref:       RequestRef{ID: 7, Requester: "bob", Approver: "alice", Status: models.RequestPending},
			viewer:    "carol",
			wantName:  "bob",
			wantLabel: "Pending",
			wantDesc:  "Wants to join group",
		},
		{
			name:      "missing requester and status",
			kind:      GroupRequestKind,
			ref:       RequestRef{ID: 8, GroupName: "G", Approver: "alice"},
			viewer:    "alice",
			wantName:  "Unknown User",
			wantLabel: "Unknown Status",
			wantDesc:  "Wants to join G",
		},
		{
			name:      "unrecognized status",
			kind:      FollowRequestKind,
			ref:       RequestRef{ID: 9, Requester: "bob", Approver: "dave", Status: "archived"},
			viewer:    "dave",
			wantName:  "bob",
			wantLabel: "Unknown Status",
			wantDesc:  "Wants to follow you",
		},
		{
			name:      "approved follow",
			kind:      FollowRequestKind,
			ref:       RequestRef{ID: 10, Requester: "bob", Approver: "dave", Status: models.RequestApproved},
			viewer:    "bob",
			wantName:  "bob",
			wantLabel: "Approved",
			wantDesc:  "Wants to follow dave",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view := NewRequestItem(tc.kind, tc.ref, models.Username(tc.viewer), nil, nil, nil).View()
			if view.DisplayName != tc.wantName {
				t.Fatalf("DisplayName = %q, want %q", view.DisplayName, tc.wantName)
			}
			if view.Initial != strings.ToUpper(tc.wantName[:1]) {
				t.Fatalf("Initial = %q", view.Initial)
			}
			if view.StatusLabel != tc.wantLabel {
				t.Fatalf("StatusLabel = %q, want %q", view.StatusLabel, tc.wantLabel)
			}
			if view.Description != tc.wantDesc {
				t.Fatalf("Description = %q, want %q", view.Description, tc.wantDesc)
			}
			if view.CanAct != tc.wantAct {
				t.Fatalf("CanAct = %v, want %v", view.CanAct, tc.wantAct)
			}
		})
	}
}

func TestRequestItemActApprovesThenRefreshes(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddGroup("G", "", "alice")
	backend.AddJoinRequest(7, "G", "bob", models.RequestPending)
	client := newTestClient(t, backend)

	refreshed := 0
	ref := RequestRef{ID: 7, Requester: "bob", GroupName: "G", Approver: "alice", Status: models.RequestPending}
	item := NewRequestItem(GroupRequestKind, ref, models.Username("alice"), client, func(context.Context) error {
		refreshed++
		return nil
	}, nil)

	if err := item.Act(context.Background(), models.Approve); err != nil {
		t.Fatalf("Act: %v", err)
	}
	if refreshed != 1 {
		t.Fatalf("refresh called %d times, want 1", refreshed)
	}
	form := backend.CallsTo("/approve_group_request")[0].Form
	if form.Get("request_id") != "7" || form.Get("action") != "approved" {
		t.Fatalf("unexpected approval form: %v", form)
	}
	if item.View().Error != "" {
		t.Fatalf("unexpected inline error %q", item.View().Error)
	}
}

func TestRequestItemActRefusesUnauthorizedWithoutCalling(t *testing.T) {
	backend := testutil.NewBackend()
	client := newTestClient(t, backend)

	refs := []RequestRef{
		{ID: 7, Requester: "bob", Approver: "alice", Status: models.RequestPending},
		{ID: 8, Requester: "bob", Approver: "carol", Status: models.RequestApproved},
	}
	for _, ref := range refs {
		item := NewRequestItem(GroupRequestKind, ref, models.Username("carol"), client, nil, nil)
		if err := item.Act(context.Background(), models.Reject); !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("Act error = %v, want ErrNotAuthorized", err)
		}
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("unauthorized actions must not reach the backend, got %d calls", len(backend.Calls()))
	}
}

func TestRequestItemActFailureKeepsStateAndShowsError(t *testing.T) {
	backend := testutil.NewBackend()
	backend.AddJoinRequest(7, "G", "bob", models.RequestPending)
	backend.Fail("/approve_group_request", http.StatusInternalServerError, "database unavailable")
	client := newTestClient(t, backend)

	refreshed := false
	ref := RequestRef{ID: 7, Requester: "bob", GroupName: "G", Approver: "alice", Status: models.RequestPending}
	item := NewRequestItem(GroupRequestKind, ref, models.Username("alice"), client, func(context.Context) error {
		refreshed = true
		return nil
	}, nil)

	if err := item.Act(context.Background(), models.Reject); err == nil {
		t.Fatalf("expected action error")
	}
	if refreshed {
		t.Fatalf("refresh must not run after a failed action")
	}
	view := item.View()
	if !view.CanAct {
		t.Fatalf("failed action must leave the item actionable")
	}
	if !strings.Contains(view.Error, "Failed to reject request") {
		t.Fatalf("inline error = %q", view.Error)
	}
}

func TestRequestItemRender(t *testing.T) {
	ref := RequestRef{ID: 7, Requester: "bob", GroupName: "G", Approver: "alice", Status: models.RequestPending, RequestedAt: "2024-05-01 10:00:00"}

	var buf bytes.Buffer
	if err := NewRequestItem(GroupRequestKind, ref, models.Username("alice"), nil, nil, nil).Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "#7 (B) bob: Wants to join G [2024-05-01 10:00] -> approve | reject\n"
	if buf.String() != want {
		t.Fatalf("Render = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	ref.Status = models.RequestRejected
	if err := NewRequestItem(GroupRequestKind, ref, models.Username("alice"), nil, nil, nil).Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "-> Rejected\n") {
		t.Fatalf("Render processed = %q", buf.String())
	}
}

func TestRequestItemRejectsInvalidDecision(t *testing.T) {
	ref := RequestRef{ID: 7, Requester: "bob", Approver: "alice", Status: models.RequestPending}
	item := NewRequestItem(GroupRequestKind, ref, models.Username("alice"), nil, nil, nil)
	if err := item.Act(context.Background(), models.Decision("maybe")); err == nil {
		t.Fatalf("expected invalid decision error")
	}
}
