package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"socialconnect/src/models"
)

const (
	unknownUserLabel   = "Unknown User"
	unknownStatusLabel = "Unknown Status"
)

// RequestBackend is the approval surface of the API client.
type RequestBackend interface {
	ApproveGroupRequest(ctx context.Context, id models.ID, action models.Decision) (models.StatusResponse, error)
	ApproveFollowRequest(ctx context.Context, id models.ID, action models.Decision) (models.StatusResponse, error)
}

// RefreshFunc reloads whatever list the item was rendered from.
type RefreshFunc func(ctx context.Context) error

// RequestView is the rendered state of one request.
type RequestView struct {
	ID          models.ID
	Kind        RequestKind
	DisplayName string
	Initial     string
	Description string
	RequestedAt string
	StatusLabel string
	CanAct      bool
	Error       string
}

// RequestItem renders one request and carries out approve/reject for it.
type RequestItem struct {
	kind    RequestKind
	ref     RequestRef
	viewer  models.Identity
	backend RequestBackend
	refresh RefreshFunc
	logger  *slog.Logger

	mu      sync.Mutex
	lastErr string
}

func NewRequestItem(kind RequestKind, ref RequestRef, viewer models.Identity, backend RequestBackend, refresh RefreshFunc, logger *slog.Logger) *RequestItem {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &RequestItem{
		kind:    kind,
		ref:     ref,
		viewer:  viewer,
		backend: backend,
		refresh: refresh,
		logger:  logger,
	}
}

func (i *RequestItem) Ref() RequestRef {
	return i.ref
}

func (i *RequestItem) View() RequestView {
	i.mu.Lock()
	lastErr := i.lastErr
	i.mu.Unlock()

	name := i.ref.Requester
	if name == "" {
		name = unknownUserLabel
	}
	first, _ := utf8.DecodeRuneInString(name)

	view := RequestView{
		ID:          i.ref.ID,
		Kind:        i.kind,
		DisplayName: name,
		Initial:     string(unicode.ToUpper(first)),
		Description: i.description(),
		RequestedAt: formatRequestTime(i.ref.RequestedAt),
		CanAct:      CanActOnRequest(i.viewer, i.ref, i.kind),
		Error:       lastErr,
	}
	if !view.CanAct {
		view.StatusLabel = statusLabel(i.ref.Status)
	}
	return view
}

// Act submits decision and then runs the refresh callback. There is no
// optimistic update: on failure the item keeps its displayed state and
// records the error inline.
func (i *RequestItem) Act(ctx context.Context, decision models.Decision) error {
	if !decision.Valid() {
		return fmt.Errorf("invalid decision %q", decision)
	}
	if !CanActOnRequest(i.viewer, i.ref, i.kind) {
		return ErrNotAuthorized
	}

	var err error
	switch i.kind {
	case GroupRequestKind:
		_, err = i.backend.ApproveGroupRequest(ctx, i.ref.ID, decision)
	case FollowRequestKind:
		_, err = i.backend.ApproveFollowRequest(ctx, i.ref.ID, decision)
	default:
		err = fmt.Errorf("unknown request kind %q", i.kind)
	}
	if err != nil {
		i.logger.Error("request action failed", "kind", i.kind, "request_id", i.ref.ID, "action", decision, "error", err)
		i.setError(fmt.Sprintf("Failed to %s request: %v", verb(decision), err))
		return fmt.Errorf("%s request %s: %w", verb(decision), i.ref.ID, err)
	}

	i.setError("")
	if i.refresh != nil {
		if err := i.refresh(ctx); err != nil {
			i.logger.Warn("refresh after request action failed", "kind", i.kind, "request_id", i.ref.ID, "error", err)
			return fmt.Errorf("refresh after %s: %w", verb(decision), err)
		}
	}
	return nil
}

// Render writes the item as one line of text.
func (i *RequestItem) Render(w io.Writer) error {
	return RenderRequestView(w, i.View())
}

// RenderRequestView writes view in the same one-line form as RequestItem.Render.
func RenderRequestView(w io.Writer, view RequestView) error {
	var b strings.Builder
	fmt.Fprintf(&b, "#%s (%s) %s: %s", view.ID, view.Initial, view.DisplayName, view.Description)
	if view.RequestedAt != "" {
		fmt.Fprintf(&b, " [%s]", view.RequestedAt)
	}
	if view.CanAct {
		b.WriteString(" -> approve | reject")
	} else {
		fmt.Fprintf(&b, " -> %s", view.StatusLabel)
	}
	if view.Error != "" {
		fmt.Fprintf(&b, " !! %s", view.Error)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (i *RequestItem) setError(msg string) {
	i.mu.Lock()
	i.lastErr = msg
	i.mu.Unlock()
}

func (i *RequestItem) description() string {
	if i.kind == GroupRequestKind {
		group := i.ref.GroupName
		if group == "" {
			group = "group"
		}
		return "Wants to join " + group
	}
	if models.HandleOf(i.viewer) == i.ref.Approver {
		return "Wants to follow you"
	}
	return "Wants to follow " + i.ref.Approver
}

func statusLabel(status models.RequestStatus) string {
	switch status {
	case models.RequestPending, models.RequestApproved, models.RequestRejected:
		return status.Label()
	default:
		return unknownStatusLabel
	}
}

func formatRequestTime(raw string) string {
	if raw == "" {
		return ""
	}
	ts, ok := models.ParseTimestamp(raw)
	if !ok {
		return raw
	}
	return ts.Format("2006-01-02 15:04")
}

func verb(d models.Decision) string {
	if d == models.Approve {
		return "approve"
	}
	return "reject"
}
