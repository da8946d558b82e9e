// Package testutil provides an in-memory SocialConnect backend for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"socialconnect/src/models"
)

const requestTime = "2024-05-01 10:00:00"

// Call is one request observed by the backend.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
}

type failure struct {
	status int
	body   string
}

type groupState struct {
	group   models.Group
	members []string
	posts   []models.Post
	chat    []models.ChatMessage
}

// Backend is a fake SocialConnect REST server. All state is guarded by mu and
// every handler replies with the same JSON shapes the real backend uses.
type Backend struct {
	mu         sync.Mutex
	users      map[string]bool
	groups     map[string]*groupState
	joinReqs   []models.JoinRequest
	followReqs []models.FollowRequest
	followers  map[string][]string
	nextID     int64
	social     socialState
	calls      []Call
	failures   map[string]failure

	// JoinStatus overrides the status field of a join response when set.
	JoinStatus string
}

func NewBackend() *Backend {
	return &Backend{
		users:     make(map[string]bool),
		groups:    make(map[string]*groupState),
		followers: make(map[string][]string),
		social:    newSocialState(),
		failures:  make(map[string]failure),
		nextID:    100,
	}
}

// Start serves the backend until the test ends and returns its base URL.
func (b *Backend) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(b.Router())
	t.Cleanup(srv.Close)
	return srv.URL
}

func (b *Backend) AddUser(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range names {
		b.users[name] = true
	}
}

// AddGroup creates a group whose admin is also its first member.
func (b *Backend) AddGroup(name, description, admin string, members ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[admin] = true
	state := &groupState{
		group:   models.Group{Name: name, Description: description, Admin: admin},
		members: []string{admin},
	}
	for _, m := range members {
		b.users[m] = true
		state.members = append(state.members, m)
	}
	b.groups[name] = state
}

// AddJoinRequest inserts a request with an explicit id and status.
func (b *Backend) AddJoinRequest(id int64, group, username string, status models.RequestStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[username] = true
	b.joinReqs = append(b.joinReqs, models.JoinRequest{
		ID:          models.ID(id),
		GroupName:   group,
		Username:    username,
		Status:      status,
		RequestTime: requestTime,
	})
}

func (b *Backend) AddFollowRequest(id int64, requester, target string, status models.RequestStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[requester] = true
	b.users[target] = true
	b.followReqs = append(b.followReqs, models.FollowRequest{
		ID:          models.ID(id),
		Requester:   requester,
		Target:      target,
		Status:      status,
		RequestTime: requestTime,
	})
}

func (b *Backend) AddPost(group, username, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.groups[group]
	if !ok {
		return
	}
	b.nextID++
	state.posts = append([]models.Post{{
		ID:        models.ID(b.nextID),
		Username:  username,
		Content:   content,
		GroupName: group,
		CreatedAt: requestTime,
	}}, state.posts...)
}

func (b *Backend) AddChat(group, sender, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.groups[group]
	if !ok {
		return
	}
	b.nextID++
	state.chat = append(state.chat, models.ChatMessage{
		ID:        models.ID(b.nextID),
		GroupName: group,
		Sender:    sender,
		Message:   message,
		Time:      requestTime,
	})
}

// Fail makes every request to path answer with status and body until ClearFailures.
func (b *Backend) Fail(path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = failure{status: status, body: body}
}

func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

// Calls returns a copy of every request seen so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo returns the requests whose path equals path.
func (b *Backend) CallsTo(path string) []Call {
	out := make([]Call, 0)
	for _, call := range b.Calls() {
		if call.Path == path {
			out = append(out, call)
		}
	}
	return out
}

func (b *Backend) Members(group string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.groups[group]
	if !ok {
		return nil
	}
	return append([]string(nil), state.members...)
}

func (b *Backend) JoinRequests() []models.JoinRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.JoinRequest(nil), b.joinReqs...)
}

func (b *Backend) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(b.record)

	r.HandleFunc("/auth/{username}", b.handleAuth).Methods(http.MethodGet)
	r.HandleFunc("/all_groups", b.handleAllGroups).Methods(http.MethodGet)
	r.HandleFunc("/new_group", b.handleNewGroup).Methods(http.MethodPost)
	r.HandleFunc("/group_detail/{group}/{username}", b.handleGroupDetail).Methods(http.MethodGet)
	r.HandleFunc("/group_members/{group}", b.handleGroupMembers).Methods(http.MethodGet)
	r.HandleFunc("/group_posts/{group}", b.handleGroupPosts).Methods(http.MethodGet)
	r.HandleFunc("/new_post", b.handleNewPost).Methods(http.MethodPost)
	r.HandleFunc("/group_chat/{group}", b.handleGroupChat).Methods(http.MethodGet)
	r.HandleFunc("/send_group_message", b.handleSendGroupMessage).Methods(http.MethodPost)
	r.HandleFunc("/request_join_group", b.handleRequestJoin).Methods(http.MethodPost)
	r.HandleFunc("/group_join_requests/{group}", b.handleJoinRequests).Methods(http.MethodGet)
	r.HandleFunc("/approve_group_request", b.handleApproveGroupRequest).Methods(http.MethodPost)
	r.HandleFunc("/remove_group_member", b.handleRemoveMember).Methods(http.MethodPost)
	r.HandleFunc("/request_follow/{requester}/{target}", b.handleRequestFollow).Methods(http.MethodPost)
	r.HandleFunc("/follow_requests/{username}", b.handleFollowRequests).Methods(http.MethodGet)
	r.HandleFunc("/approve_follow_request", b.handleApproveFollowRequest).Methods(http.MethodPost)
	r.HandleFunc("/feed/{username}", b.handleFeed).Methods(http.MethodGet)
	b.socialRoutes(r)
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form := formValues(r)
		b.mu.Lock()
		b.calls = append(b.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Form: form})
		f, failing := b.failures[r.URL.Path]
		b.mu.Unlock()

		if failing {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func formValues(r *http.Request) url.Values {
	if r.Method != http.MethodPost {
		return url.Values{}
	}
	if err := r.ParseMultipartForm(1 << 20); err == nil && r.MultipartForm != nil {
		return url.Values(r.MultipartForm.Value)
	}
	_ = r.ParseForm()
	return r.PostForm
}

func (b *Backend) handleAuth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	b.mu.Lock()
	ok := b.users[name]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": name})
}

func (b *Backend) handleAllGroups(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Group, 0, len(b.groups))
	for _, state := range b.groups {
		out = append(out, state.group)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleNewGroup(w http.ResponseWriter, r *http.Request) {
	name, admin := r.FormValue("grpname"), r.FormValue("admin")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.groups[name]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Group already exists"})
		return
	}
	b.groups[name] = &groupState{
		group:   models.Group{Name: name, Description: r.FormValue("bio"), Admin: admin},
		members: []string{admin},
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) group(w http.ResponseWriter, name string) (*groupState, bool) {
	state, ok := b.groups[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Group not found"})
	}
	return state, ok
}

func (b *Backend) handleGroupDetail(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, mux.Vars(r)["group"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, state.group)
}

func (b *Backend) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, mux.Vars(r)["group"])
	if !ok {
		return
	}
	out := make([]models.Member, 0, len(state.members))
	for _, m := range state.members {
		out = append(out, models.Member{Username: m})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleGroupPosts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, mux.Vars(r)["group"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, append([]models.Post{}, state.posts...))
}

func (b *Backend) handleNewPost(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	post := models.Post{
		ID:        models.ID(b.nextID),
		Username:  r.FormValue("username"),
		Content:   r.FormValue("content"),
		GroupName: r.FormValue("group_name"),
		CreatedAt: requestTime,
	}
	if state, ok := b.groups[post.GroupName]; ok {
		state.posts = append([]models.Post{post}, state.posts...)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleGroupChat(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, mux.Vars(r)["group"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, append([]models.ChatMessage{}, state.chat...))
}

func (b *Backend) handleSendGroupMessage(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, r.FormValue("grp_name"))
	if !ok {
		return
	}
	b.nextID++
	state.chat = append(state.chat, models.ChatMessage{
		ID:        models.ID(b.nextID),
		GroupName: state.group.Name,
		Sender:    r.FormValue("sender"),
		Message:   r.FormValue("message"),
		Time:      requestTime,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleRequestJoin(w http.ResponseWriter, r *http.Request) {
	name, user := r.FormValue("grpname"), r.FormValue("username")
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, name)
	if !ok {
		return
	}
	if b.JoinStatus != "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": b.JoinStatus, "message": "Join request not accepted"})
		return
	}
	if models.HasMember(toMembers(state.members), user) || models.HasPendingRequest(b.requestsFor(name), user) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "Request already exists"})
		return
	}
	b.nextID++
	b.joinReqs = append(b.joinReqs, models.JoinRequest{
		ID:          models.ID(b.nextID),
		GroupName:   name,
		Username:    user,
		Status:      models.RequestPending,
		RequestTime: requestTime,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Join request sent"})
}

func (b *Backend) handleJoinRequests(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.requestsFor(mux.Vars(r)["group"]))
}

// requestsFor must be called with mu held.
func (b *Backend) requestsFor(group string) []models.JoinRequest {
	out := make([]models.JoinRequest, 0)
	for _, req := range b.joinReqs {
		if req.GroupName == group {
			out = append(out, req)
		}
	}
	return out
}

func (b *Backend) handleApproveGroupRequest(w http.ResponseWriter, r *http.Request) {
	id, action, ok := decisionForm(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.joinReqs {
		req := &b.joinReqs[i]
		if int64(req.ID) != id {
			continue
		}
		if !req.Status.IsPending() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Request already processed"})
			return
		}
		req.Status = models.RequestStatus(action)
		if req.Status == models.RequestApproved {
			if state, ok := b.groups[req.GroupName]; ok {
				state.members = append(state.members, req.Username)
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Request not found"})
}

func (b *Backend) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, r.FormValue("grp_name"))
	if !ok {
		return
	}
	if state.group.Admin != r.FormValue("admin") {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Only the admin can remove members"})
		return
	}
	target := r.FormValue("username")
	kept := state.members[:0]
	for _, m := range state.members {
		if m != target {
			kept = append(kept, m)
		}
	}
	state.members = kept
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleRequestFollow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.followReqs = append(b.followReqs, models.FollowRequest{
		ID:          models.ID(b.nextID),
		Requester:   vars["requester"],
		Target:      vars["target"],
		Status:      models.RequestPending,
		RequestTime: requestTime,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleFollowRequests(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.FollowRequest, 0)
	for _, req := range b.followReqs {
		if req.Target == name || req.Requester == name {
			out = append(out, req)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleApproveFollowRequest(w http.ResponseWriter, r *http.Request) {
	id, action, ok := decisionForm(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.followReqs {
		req := &b.followReqs[i]
		if int64(req.ID) != id {
			continue
		}
		req.Status = models.RequestStatus(action)
		if req.Status == models.RequestApproved {
			b.followers[req.Target] = append(b.followers[req.Target], req.Requester)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Request not found"})
}

func decisionForm(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	id, err := strconv.ParseInt(r.FormValue("request_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request_id"})
		return 0, "", false
	}
	action := r.FormValue("action")
	if action != string(models.Approve) && action != string(models.Reject) {
		http.Error(w, "invalid action", http.StatusBadRequest)
		return 0, "", false
	}
	return id, action, true
}

func toMembers(names []string) []models.Member {
	out := make([]models.Member, 0, len(names))
	for _, n := range names {
		out = append(out, models.Member{Username: n})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
