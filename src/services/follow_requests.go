package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"socialconnect/src/models"
)

// FollowBackend is the API surface for follow requests.
type FollowBackend interface {
	RequestBackend
	RequestFollow(ctx context.Context, requester, target models.Identity) (models.StatusResponse, error)
	FetchFollowRequests(ctx context.Context, user models.Identity) ([]models.FollowRequest, error)
}

// FollowRequestsView splits the viewer's follow requests. Incoming requests
// target the viewer; outgoing ones were sent by the viewer.
type FollowRequestsView struct {
	Pending   []RequestView
	Processed []RequestView
	Outgoing  []RequestView
}

type FollowRequestsController struct {
	viewer  models.User
	backend FollowBackend
	logger  *slog.Logger

	mu       sync.Mutex
	requests []models.FollowRequest
	errs     map[models.ID]string
}

func NewFollowRequestsController(viewer models.User, backend FollowBackend, logger *slog.Logger) *FollowRequestsController {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &FollowRequestsController{
		viewer:  viewer,
		backend: backend,
		logger:  logger.With("viewer", viewer.Username),
		errs:    make(map[models.ID]string),
	}
}

func (c *FollowRequestsController) Load(ctx context.Context) error {
	reqs, err := c.backend.FetchFollowRequests(ctx, c.viewer)
	if err != nil {
		c.logger.Error("fetch follow requests failed", "error", err)
		return fmt.Errorf("load follow requests: %w", err)
	}
	c.mu.Lock()
	c.requests = reqs
	c.mu.Unlock()
	return nil
}

// Request asks target to accept the viewer as a follower.
func (c *FollowRequestsController) Request(ctx context.Context, target string) error {
	if target == "" || target == c.viewer.Username {
		return fmt.Errorf("cannot request to follow %q", target)
	}
	if _, err := c.backend.RequestFollow(ctx, c.viewer, models.Username(target)); err != nil {
		c.logger.Error("send follow request failed", "target", target, "error", err)
		return fmt.Errorf("request to follow %s: %w", target, err)
	}
	return c.Load(ctx)
}

// Process approves or rejects an incoming request, then reloads the list.
func (c *FollowRequestsController) Process(ctx context.Context, id models.ID, decision models.Decision) error {
	c.mu.Lock()
	var (
		req   models.FollowRequest
		found bool
	)
	for _, r := range c.requests {
		if r.ID == id {
			req, found = r, true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return fmt.Errorf("follow request %s not found", id)
	}

	item := NewRequestItem(FollowRequestKind, FollowRequestRef(req), c.viewer, c.backend, c.Load, c.logger)
	err := item.Act(ctx, decision)

	c.mu.Lock()
	if msg := item.View().Error; msg != "" {
		c.errs[id] = msg
	} else {
		delete(c.errs, id)
	}
	c.mu.Unlock()
	return err
}

func (c *FollowRequestsController) Snapshot() FollowRequestsView {
	c.mu.Lock()
	defer c.mu.Unlock()

	incoming := make([]RequestRef, 0, len(c.requests))
	outgoing := make([]RequestRef, 0)
	for _, req := range c.requests {
		ref := FollowRequestRef(req)
		if req.Target == c.viewer.Username {
			incoming = append(incoming, ref)
		} else if req.Requester == c.viewer.Username {
			outgoing = append(outgoing, ref)
		}
	}
	pending, processed := PartitionRequests(incoming)
	return FollowRequestsView{
		Pending:   c.views(pending),
		Processed: c.views(processed),
		Outgoing:  c.views(outgoing),
	}
}

// views must be called with mu held.
func (c *FollowRequestsController) views(refs []RequestRef) []RequestView {
	out := make([]RequestView, 0, len(refs))
	for _, ref := range refs {
		view := NewRequestItem(FollowRequestKind, ref, c.viewer, nil, nil, nil).View()
		if msg, ok := c.errs[ref.ID]; ok {
			view.Error = msg
		}
		out = append(out, view)
	}
	return out
}
