package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"socialconnect/src/lib"
	"socialconnect/src/models"
)

// MembershipStatus is the viewer's relation to the group.
type MembershipStatus string

const (
	StatusNotMember MembershipStatus = "not-member"
	StatusPending   MembershipStatus = "pending"
	StatusMember    MembershipStatus = "member"
)

// Tab selects one of the four group views.
type Tab string

const (
	TabPosts    Tab = "posts"
	TabChat     Tab = "chat"
	TabMembers  Tab = "members"
	TabRequests Tab = "requests"
)

func ParseTab(raw string) (Tab, error) {
	switch tab := Tab(strings.ToLower(strings.TrimSpace(raw))); tab {
	case TabPosts, TabChat, TabMembers, TabRequests:
		return tab, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownTab, raw)
	}
}

// GroupBackend is the API surface the group detail controller uses.
type GroupBackend interface {
	GroupFetcher
	RequestBackend
	FetchGroupDetails(ctx context.Context, group string, viewer models.Identity) (models.Group, error)
	FetchGroupPosts(ctx context.Context, group string) ([]models.Post, error)
	CreatePost(ctx context.Context, author models.Identity, content, group string) error
	SendGroupMessage(ctx context.Context, group string, sender models.Identity, message string) error
	RequestJoinGroup(ctx context.Context, group string, user models.Identity) (models.JoinResponse, error)
	RemoveGroupMember(ctx context.Context, group string, admin, member models.Identity) (models.StatusResponse, error)
}

// Confirmer asks the user to acknowledge a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// MemberView is one member row.
type MemberView struct {
	Username  string
	IsAdmin   bool
	IsViewer  bool
	CanRemove bool
}

// GroupDetailView is an immutable snapshot of the controller.
type GroupDetailView struct {
	Group             models.Group
	Viewer            string
	Loaded            bool
	Closed            bool
	IsAdmin           bool
	Status            MembershipStatus
	Tab               Tab
	Members           []MemberView
	Posts             []models.Post
	Chat              []models.ChatMessage
	PendingRequests   []RequestView
	ProcessedRequests []RequestView
	JoinError         string
	ActionError       string
}

// GroupDetailController owns the state of one group page for one viewer.
// Every fetch replaces its list wholesale. Nothing is applied after Close.
type GroupDetailController struct {
	group   string
	viewer  models.User
	backend GroupBackend
	logger  *slog.Logger
	metrics *lib.Metrics

	life context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu            sync.Mutex
	closed        bool
	started       bool
	loaded        bool
	details       models.Group
	isAdmin       bool
	status        MembershipStatus
	tab           Tab
	members       []models.Member
	posts         []models.Post
	chat          []models.ChatMessage
	requests      []models.JoinRequest
	joinErr       string
	actionErr     string
	requestErrors map[models.ID]string
}

func NewGroupDetailController(group string, viewer models.User, backend GroupBackend, logger *slog.Logger, metrics *lib.Metrics) *GroupDetailController {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	life, stop := context.WithCancel(context.Background())
	return &GroupDetailController{
		group:         group,
		viewer:        viewer,
		backend:       backend,
		logger:        logger.With("group", group, "viewer", viewer.Username),
		metrics:       metrics,
		life:          life,
		stop:          stop,
		status:        StatusNotMember,
		tab:           TabPosts,
		requestErrors: make(map[models.ID]string),
	}
}

// bind ties ctx to the controller lifetime so Close aborts in-flight calls.
func (c *GroupDetailController) bind(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		release()
		cancel()
	}, nil
}

// update runs fn under the lock unless the controller is closed.
func (c *GroupDetailController) update(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	fn()
	return nil
}

// Load runs the initial load sequence: details, admin flag, members, then
// posts and chat for members or the viewer's own request for non-members,
// and the full request list for the admin.
func (c *GroupDetailController) Load(ctx context.Context) error {
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	details, err := c.backend.FetchGroupDetails(ctx, c.group, c.viewer)
	if err != nil {
		c.logger.Error("load group details failed", "error", err)
		return fmt.Errorf("load group %s: %w", c.group, err)
	}
	isAdmin := details.Admin == c.viewer.Username
	if err := c.update(func() {
		c.details = details
		c.isAdmin = isAdmin
	}); err != nil {
		return err
	}

	members, err := c.backend.FetchGroupMembers(ctx, c.group)
	if err != nil {
		c.logger.Error("load group members failed", "error", err)
		return fmt.Errorf("load members of %s: %w", c.group, err)
	}
	isMember := models.HasMember(members, c.viewer.Username)
	if err := c.update(func() { c.members = members }); err != nil {
		return err
	}

	if isMember {
		posts, err := c.backend.FetchGroupPosts(ctx, c.group)
		if err != nil {
			c.logger.Error("load group posts failed", "error", err)
			return fmt.Errorf("load posts of %s: %w", c.group, err)
		}
		chat, err := c.backend.FetchGroupChat(ctx, c.group)
		if err != nil {
			c.logger.Error("load group chat failed", "error", err)
			return fmt.Errorf("load chat of %s: %w", c.group, err)
		}
		if err := c.update(func() {
			c.status = StatusMember
			c.posts = posts
			c.chat = chat
		}); err != nil {
			return err
		}
	} else {
		status := StatusNotMember
		reqs, err := c.backend.FetchGroupJoinRequests(ctx, c.group)
		if err != nil {
			c.logger.Warn("fetch join requests failed", "error", err)
		} else if models.HasPendingRequest(reqs, c.viewer.Username) {
			status = StatusPending
		}
		if err := c.update(func() {
			c.status = status
			if isAdmin && reqs != nil {
				c.requests = reqs
			}
		}); err != nil {
			return err
		}
	}

	if isAdmin {
		reqs, err := c.backend.FetchGroupJoinRequests(ctx, c.group)
		if err != nil {
			c.logger.Warn("admin fetch join requests failed", "error", err)
		} else if err := c.update(func() { c.requests = reqs }); err != nil {
			return err
		}
	}

	return c.update(func() { c.loaded = true })
}

// PollingSource returns a polling source gated on the controller's current
// state: chat while the viewer is a member, join requests while the viewer
// is the admin or waiting on a request.
func (c *GroupDetailController) PollingSource(fetcher GroupFetcher, chatEvery, requestEvery time.Duration) *PollingSource {
	return &PollingSource{
		Fetcher:         fetcher,
		ChatInterval:    chatEvery,
		RequestInterval: requestEvery,
		ChatGate:        c.IsMember,
		RequestGate: func() bool {
			return c.IsAdmin() || c.Status() == StatusPending
		},
		Logger:  c.logger,
		Metrics: c.metrics,
	}
}

// Start applies deltas from source in the background until Close.
func (c *GroupDetailController) Start(ctx context.Context, source DeltaSource) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("controller for %s already started", c.group)
	}
	c.started = true
	c.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(c.life, cancel)
	deltas, err := source.Subscribe(subCtx, c.group)
	if err != nil {
		release()
		cancel()
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("subscribe to %s: %w", c.group, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer release()
		for delta := range deltas {
			if c.applyDelta(delta) {
				_ = c.loadMemberContent(subCtx)
			}
		}
	}()
	return nil
}

// Close stops background refresh, aborts in-flight calls and waits for the
// delta consumer to exit. It is safe to call more than once.
func (c *GroupDetailController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// applyDelta reports whether the delta turned the viewer into a member.
func (c *GroupDetailController) applyDelta(delta Delta) bool {
	if delta.Group != c.group {
		return false
	}
	applied, promoted := false, false
	_ = c.update(func() {
		switch delta.Kind {
		case DeltaChat:
			if c.status != StatusMember {
				return
			}
			c.chat = delta.Chat
		case DeltaJoinRequests:
			if c.isAdmin {
				c.requests = delta.JoinRequests
			}
			if c.status == StatusPending {
				promoted = c.setStatus(outcomeOf(delta.JoinRequests, c.viewer.Username, c.status))
			}
		case DeltaMembers:
			c.members = delta.Members
			if models.HasMember(delta.Members, c.viewer.Username) {
				promoted = c.setStatus(StatusMember)
			} else if c.status == StatusMember {
				c.setStatus(StatusNotMember)
			}
		default:
			return
		}
		applied = true
	})
	if applied {
		c.metrics.Inc("deltas_applied_total")
		c.logger.Debug("delta applied", "kind", delta.Kind)
	}
	return promoted
}

// setStatus must be called with mu held. Leaving membership drops posts and
// chat and moves off the Chat tab. It reports whether the viewer just became
// a member.
func (c *GroupDetailController) setStatus(next MembershipStatus) bool {
	prev := c.status
	c.status = next
	if prev == StatusMember && next != StatusMember {
		c.posts = nil
		c.chat = nil
		if c.tab == TabChat {
			c.tab = TabPosts
		}
	}
	return prev != StatusMember && next == StatusMember
}

// loadMemberContent fetches posts and chat after the viewer became a member
// without a full reload.
func (c *GroupDetailController) loadMemberContent(ctx context.Context) error {
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	posts, err := c.backend.FetchGroupPosts(ctx, c.group)
	if err != nil {
		c.logger.Warn("load posts for new member failed", "error", err)
		return fmt.Errorf("load posts of %s: %w", c.group, err)
	}
	chat, err := c.backend.FetchGroupChat(ctx, c.group)
	if err != nil {
		c.logger.Warn("load chat for new member failed", "error", err)
		return fmt.Errorf("load chat of %s: %w", c.group, err)
	}
	return c.update(func() {
		if c.status != StatusMember {
			return
		}
		c.posts = posts
		c.chat = chat
	})
}

// outcomeOf maps the viewer's latest request to a membership status.
func outcomeOf(reqs []models.JoinRequest, username string, current MembershipStatus) MembershipStatus {
	status := current
	found := false
	for _, req := range reqs {
		if req.Username != username {
			continue
		}
		found = true
		switch req.Status {
		case models.RequestPending:
			status = StatusPending
		case models.RequestApproved:
			status = StatusMember
		case models.RequestRejected:
			status = StatusNotMember
		}
	}
	if !found {
		return current
	}
	return status
}

// RequestJoin submits a join request. Only an explicit success moves the
// viewer to pending; anything else leaves the status untouched and records
// the server's message.
func (c *GroupDetailController) RequestJoin(ctx context.Context) error {
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	if status := c.Status(); status != StatusNotMember {
		return fmt.Errorf("request to join %s: viewer is already %s", c.group, status)
	}
	_ = c.update(func() { c.joinErr = "" })

	resp, err := c.backend.RequestJoinGroup(ctx, c.group, c.viewer)
	if err != nil {
		c.logger.Error("send join request failed", "error", err)
		_ = c.update(func() { c.joinErr = "Failed to send join request" })
		return fmt.Errorf("request to join %s: %w", c.group, err)
	}
	if !resp.Succeeded() {
		msg := resp.Message
		if msg == "" {
			msg = "Request failed"
		}
		_ = c.update(func() { c.joinErr = msg })
		return fmt.Errorf("%w: %s", ErrJoinRejected, msg)
	}
	return c.update(func() { c.status = StatusPending })
}

// SubmitPost creates a post and then reloads the full post list.
func (c *GroupDetailController) SubmitPost(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyInput
	}
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer done()
	if !c.IsMember() {
		return ErrNotMember
	}

	if err := c.backend.CreatePost(ctx, c.viewer, content, c.group); err != nil {
		return c.actionFailed("create post", err)
	}
	posts, err := c.backend.FetchGroupPosts(ctx, c.group)
	if err != nil {
		return c.actionFailed("refresh posts", err)
	}
	return c.update(func() {
		c.posts = posts
		c.actionErr = ""
	})
}

// SendMessage posts a chat line and then reloads the full chat history.
func (c *GroupDetailController) SendMessage(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyInput
	}
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer done()
	if !c.IsMember() {
		return ErrNotMember
	}

	if err := c.backend.SendGroupMessage(ctx, c.group, c.viewer, message); err != nil {
		return c.actionFailed("send message", err)
	}
	chat, err := c.backend.FetchGroupChat(ctx, c.group)
	if err != nil {
		return c.actionFailed("refresh chat", err)
	}
	return c.update(func() {
		c.chat = chat
		c.actionErr = ""
	})
}

// RemoveMember removes username after confirm agrees. A declined or missing
// confirmation returns false without contacting the backend.
func (c *GroupDetailController) RemoveMember(ctx context.Context, username string, confirm Confirmer) (bool, error) {
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	c.mu.Lock()
	isAdmin, admin := c.isAdmin, c.details.Admin
	c.mu.Unlock()
	if !isAdmin {
		return false, ErrNotAdmin
	}
	if username == c.viewer.Username || username == admin {
		return false, ErrProtected
	}
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Are you sure you want to remove %s from the group?", username)) {
		return false, nil
	}

	if _, err := c.backend.RemoveGroupMember(ctx, c.group, c.viewer, models.Username(username)); err != nil {
		return false, c.actionFailed("remove member", err)
	}
	members, err := c.backend.FetchGroupMembers(ctx, c.group)
	if err != nil {
		return true, c.actionFailed("refresh members", err)
	}
	return true, c.update(func() {
		c.members = members
		c.actionErr = ""
	})
}

// ProcessRequest approves or rejects a join request through the shared
// request item protocol, then refreshes requests and members.
func (c *GroupDetailController) ProcessRequest(ctx context.Context, id models.ID, decision models.Decision) error {
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	c.mu.Lock()
	isAdmin, details := c.isAdmin, c.details
	var (
		req   models.JoinRequest
		found bool
	)
	for _, r := range c.requests {
		if r.ID == id {
			req, found = r, true
			break
		}
	}
	c.mu.Unlock()

	if !isAdmin {
		return ErrNotAdmin
	}
	if !found {
		return fmt.Errorf("join request %s not found in %s", id, c.group)
	}

	item := NewRequestItem(GroupRequestKind, JoinRequestRef(req, details), c.viewer, c.backend, c.RefreshRequests, c.logger)
	actErr := item.Act(ctx, decision)
	inline := item.View().Error
	_ = c.update(func() {
		if inline != "" {
			c.requestErrors[id] = inline
			return
		}
		delete(c.requestErrors, id)
	})
	return actErr
}

// RefreshRequests reloads requests and members and recomputes the viewer's
// status from the fresh data. A viewer who just became a member also gets
// posts and chat.
func (c *GroupDetailController) RefreshRequests(ctx context.Context) error {
	ctx, done, err := c.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	reqs, err := c.backend.FetchGroupJoinRequests(ctx, c.group)
	if err != nil {
		c.logger.Error("refresh join requests failed", "error", err)
		return fmt.Errorf("refresh requests of %s: %w", c.group, err)
	}
	members, err := c.backend.FetchGroupMembers(ctx, c.group)
	if err != nil {
		c.logger.Error("refresh members failed", "error", err)
		return fmt.Errorf("refresh members of %s: %w", c.group, err)
	}

	promoted := false
	if err := c.update(func() {
		c.requests = reqs
		c.members = members
		switch {
		case models.HasMember(members, c.viewer.Username):
			promoted = c.setStatus(StatusMember)
		case models.HasPendingRequest(reqs, c.viewer.Username):
			c.setStatus(StatusPending)
		default:
			c.setStatus(StatusNotMember)
		}
	}); err != nil {
		return err
	}
	if promoted {
		return c.loadMemberContent(ctx)
	}
	return nil
}

// SelectTab switches the active view. Chat needs membership and Requests
// needs the admin.
func (c *GroupDetailController) SelectTab(tab Tab) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	switch tab {
	case TabPosts, TabMembers:
	case TabChat:
		if c.status != StatusMember {
			return ErrNotMember
		}
	case TabRequests:
		if !c.isAdmin {
			return ErrNotAdmin
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownTab, tab)
	}
	c.tab = tab
	return nil
}

func (c *GroupDetailController) Status() MembershipStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *GroupDetailController) IsMember() bool {
	return c.Status() == StatusMember
}

func (c *GroupDetailController) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAdmin
}

func (c *GroupDetailController) Snapshot() GroupDetailView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := GroupDetailView{
		Group:       c.details,
		Viewer:      c.viewer.Username,
		Loaded:      c.loaded,
		Closed:      c.closed,
		IsAdmin:     c.isAdmin,
		Status:      c.status,
		Tab:         c.tab,
		Members:     make([]MemberView, 0, len(c.members)),
		Posts:       append([]models.Post(nil), c.posts...),
		Chat:        append([]models.ChatMessage(nil), c.chat...),
		JoinError:   c.joinErr,
		ActionError: c.actionErr,
	}
	for _, m := range c.members {
		view.Members = append(view.Members, MemberView{
			Username:  m.Username,
			IsAdmin:   m.Username == c.details.Admin,
			IsViewer:  m.Username == c.viewer.Username,
			CanRemove: c.isAdmin && m.Username != c.viewer.Username && m.Username != c.details.Admin,
		})
	}

	refs := make([]RequestRef, 0, len(c.requests))
	for _, req := range c.requests {
		refs = append(refs, JoinRequestRef(req, c.details))
	}
	pending, processed := PartitionRequests(refs)
	view.PendingRequests = c.requestViews(pending)
	view.ProcessedRequests = c.requestViews(processed)
	return view
}

// requestViews must be called with mu held.
func (c *GroupDetailController) requestViews(refs []RequestRef) []RequestView {
	out := make([]RequestView, 0, len(refs))
	for _, ref := range refs {
		view := NewRequestItem(GroupRequestKind, ref, c.viewer, nil, nil, nil).View()
		if msg, ok := c.requestErrors[ref.ID]; ok {
			view.Error = msg
		}
		out = append(out, view)
	}
	return out
}

func (c *GroupDetailController) actionFailed(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.logger.Error(op+" failed", "error", err)
	_ = c.update(func() { c.actionErr = fmt.Sprintf("Failed to %s", op) })
	return fmt.Errorf("%s in %s: %w", op, c.group, err)
}
