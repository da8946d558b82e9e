package testutil

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"

	"socialconnect/src/models"
)

// socialState holds the profile, tweet, poll and direct-message surfaces.
type socialState struct {
	profiles map[string]models.Profile
	tweets   []*tweetState
	polls    []*pollState
	dms      []models.DirectMessage
}

type tweetState struct {
	tweet  models.Tweet
	likers []string
}

type pollState struct {
	poll   models.Poll
	voters map[string]string
}

func newSocialState() socialState {
	return socialState{profiles: make(map[string]models.Profile)}
}

// AddTweet stores a tweet by author and returns its id.
func (b *Backend) AddTweet(author, content string) models.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[author] = true
	return b.addTweetLocked(author, content, "")
}

func (b *Backend) addTweetLocked(author, content, photo string) models.ID {
	b.nextID++
	id := models.ID(b.nextID)
	b.social.tweets = append(b.social.tweets, &tweetState{tweet: models.Tweet{
		ID:      id,
		Content: content,
		Photo:   photo,
		Time:    requestTime,
		Author:  author,
	}})
	return id
}

// AddPoll stores a poll by author and returns its id.
func (b *Backend) AddPoll(author, question string, options ...string) models.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[author] = true
	return b.addPollLocked(author, question, options)
}

func (b *Backend) addPollLocked(author, question string, options []string) models.ID {
	b.nextID++
	id := models.ID(b.nextID)
	poll := models.Poll{ID: id, Content: question, PollBy: author, Time: requestTime}
	for _, opt := range options {
		poll.Options = append(poll.Options, models.PollOption{Option: opt})
	}
	b.social.polls = append(b.social.polls, &pollState{poll: poll, voters: make(map[string]string)})
	return id
}

// Follow records follower as following target.
func (b *Backend) Follow(follower, target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.followLocked(follower, target)
}

func (b *Backend) followLocked(follower, target string) {
	if !slices.Contains(b.followers[target], follower) {
		b.followers[target] = append(b.followers[target], follower)
	}
}

func (b *Backend) unfollowLocked(follower, target string) {
	b.followers[target] = slices.DeleteFunc(b.followers[target], func(name string) bool { return name == follower })
}

// Followers returns who follows target.
func (b *Backend) Followers(target string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.followers[target]...)
}

func (b *Backend) Tweet(id models.ID) (models.Tweet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.tweetLocked(id)
	if state == nil {
		return models.Tweet{}, false
	}
	return state.tweet, true
}

func (b *Backend) Poll(id models.ID) (models.Poll, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.pollLocked(id)
	if state == nil {
		return models.Poll{}, false
	}
	return state.poll, true
}

func (b *Backend) socialRoutes(r *mux.Router) {
	r.HandleFunc("/user/{username}", b.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/all_users", b.handleAllUsers).Methods(http.MethodGet)
	r.HandleFunc("/new_user", b.handleNewUser).Methods(http.MethodPost)
	r.HandleFunc("/user_posts/{username}", b.handleUserPosts).Methods(http.MethodGet)

	r.HandleFunc("/new_tweet", b.handleNewTweet).Methods(http.MethodPost)
	r.HandleFunc("/full_tweet/{id}", b.handleFullTweet).Methods(http.MethodGet)
	r.HandleFunc("/delete_tweet/{id}", b.handleDeleteTweet).Methods(http.MethodGet)
	r.HandleFunc("/new_like", b.handleLike(true)).Methods(http.MethodPost)
	r.HandleFunc("/new_unlike", b.handleLike(false)).Methods(http.MethodPost)
	r.HandleFunc("/new_comment", b.handleNewComment).Methods(http.MethodPost)
	r.HandleFunc("/delete_comment/{id}", b.handleDeleteComment).Methods(http.MethodGet)

	r.HandleFunc("/new_poll", b.handleNewPoll).Methods(http.MethodPost)
	r.HandleFunc("/poll/{id}", b.handlePoll).Methods(http.MethodGet)
	r.HandleFunc("/poll_feed", b.handlePollFeed).Methods(http.MethodGet)
	r.HandleFunc("/delete_poll/{id}", b.handleDeletePoll).Methods(http.MethodGet)
	r.HandleFunc("/cast_vote", b.handleCastVote).Methods(http.MethodPost)

	r.HandleFunc("/new_follow", b.handleFollow(true)).Methods(http.MethodGet)
	r.HandleFunc("/new_unfollow", b.handleFollow(false)).Methods(http.MethodGet)
	r.HandleFunc("/is_following", b.handleIsFollowing).Methods(http.MethodGet)
	r.HandleFunc("/all_followers/{username}", b.handleAllFollowers).Methods(http.MethodGet)
	r.HandleFunc("/user_following/{username}", b.handleUserFollowing).Methods(http.MethodGet)
	r.HandleFunc("/remove_follower", b.handleRemoveFollower).Methods(http.MethodPost)

	r.HandleFunc("/join_group", b.handleJoinGroup).Methods(http.MethodPost)
	r.HandleFunc("/leave_group", b.handleLeaveGroup).Methods(http.MethodPost)

	r.HandleFunc("/get_chat/{user}/{other}", b.handleGetChat).Methods(http.MethodGet)
	r.HandleFunc("/new_chat_msg", b.handleNewChatMsg).Methods(http.MethodPost)
}

func (b *Backend) profileLocked(name string) models.Profile {
	if profile, ok := b.social.profiles[name]; ok {
		return profile
	}
	return models.Profile{Username: name, JoinedFrom: requestTime}
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.users[name] {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, b.profileLocked(name))
}

func (b *Backend) handleAllUsers(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.users))
	for name := range b.users {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]models.Profile, 0, len(names))
	for _, name := range names {
		out = append(out, b.profileLocked(name))
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleNewUser(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("username")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.users[name] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Username already taken"})
		return
	}
	b.users[name] = true
	b.social.profiles[name] = models.Profile{
		Username:    name,
		MailID:      r.FormValue("mailid"),
		FirstName:   r.FormValue("fname"),
		LastName:    r.FormValue("lname"),
		Bio:         r.FormValue("bio"),
		Location:    r.FormValue("location"),
		Website:     r.FormValue("website"),
		Photo:       r.FormValue("photo"),
		DateOfBirth: r.FormValue("dateofbirth"),
		JoinedFrom:  requestTime,
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// tweetsLocked returns tweets whose author satisfies keep, newest first.
func (b *Backend) tweetsLocked(keep func(author string) bool) []models.Tweet {
	out := make([]models.Tweet, 0)
	for i := len(b.social.tweets) - 1; i >= 0; i-- {
		if state := b.social.tweets[i]; keep(state.tweet.Author) {
			out = append(out, state.tweet)
		}
	}
	return out
}

func (b *Backend) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.tweetsLocked(func(author string) bool { return author == name }))
}

func (b *Backend) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.tweetsLocked(func(author string) bool {
		return author == name || slices.Contains(b.followers[author], name)
	}))
}

func (b *Backend) handleNewTweet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.addTweetLocked(r.FormValue("username"), r.FormValue("content"), r.FormValue("photo"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Tweet " + id.String() + " created"})
}

func (b *Backend) tweetLocked(id models.ID) *tweetState {
	for _, state := range b.social.tweets {
		if state.tweet.ID == id {
			return state
		}
	}
	return nil
}

// tweetFromPath resolves the {id} path variable. It must be called with mu held.
func (b *Backend) tweetFromPath(w http.ResponseWriter, r *http.Request) (*tweetState, bool) {
	id, err := models.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return nil, false
	}
	state := b.tweetLocked(id)
	if state == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Tweet not found"})
		return nil, false
	}
	return state, true
}

func (b *Backend) handleFullTweet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.tweetFromPath(w, r); ok {
		writeJSON(w, http.StatusOK, state.tweet)
	}
}

func (b *Backend) handleDeleteTweet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.tweetFromPath(w, r)
	if !ok {
		return
	}
	b.social.tweets = slices.DeleteFunc(b.social.tweets, func(t *tweetState) bool { return t == state })
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleLike(like bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := models.ParseID(r.FormValue("tweet_id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid tweet_id"})
			return
		}
		user := r.FormValue("user_id")
		b.mu.Lock()
		defer b.mu.Unlock()
		state := b.tweetLocked(id)
		if state == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Tweet not found"})
			return
		}
		liked := slices.Contains(state.likers, user)
		switch {
		case like && !liked:
			state.likers = append(state.likers, user)
		case !like && liked:
			state.likers = slices.DeleteFunc(state.likers, func(name string) bool { return name == user })
		}
		state.tweet.Likes = len(state.likers)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

func (b *Backend) handleNewComment(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseID(r.FormValue("tweet_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid tweet_id"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.tweetLocked(id)
	if state == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Tweet not found"})
		return
	}
	b.nextID++
	state.tweet.Comments = append(state.tweet.Comments, models.Comment{
		ID:       models.ID(b.nextID),
		TweetID:  id,
		Username: r.FormValue("username"),
		Content:  r.FormValue("content"),
		Time:     requestTime,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, state := range b.social.tweets {
		before := len(state.tweet.Comments)
		state.tweet.Comments = slices.DeleteFunc(state.tweet.Comments, func(c models.Comment) bool { return c.ID == id })
		if len(state.tweet.Comments) != before {
			writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Comment not found"})
}

func (b *Backend) handleNewPoll(w http.ResponseWriter, r *http.Request) {
	options := make([]string, 0)
	for _, opt := range strings.Split(r.FormValue("options"), ",") {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "A poll needs at least two options"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.addPollLocked(r.FormValue("username"), r.FormValue("content"), options)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Poll " + id.String() + " created"})
}

func (b *Backend) pollLocked(id models.ID) *pollState {
	for _, state := range b.social.polls {
		if state.poll.ID == id {
			return state
		}
	}
	return nil
}

func (b *Backend) pollFromPath(w http.ResponseWriter, r *http.Request) (*pollState, bool) {
	id, err := models.ParseID(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return nil, false
	}
	state := b.pollLocked(id)
	if state == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Poll not found"})
		return nil, false
	}
	return state, true
}

func (b *Backend) handlePoll(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.pollFromPath(w, r); ok {
		writeJSON(w, http.StatusOK, state.poll)
	}
}

func (b *Backend) handlePollFeed(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Poll, 0, len(b.social.polls))
	for i := len(b.social.polls) - 1; i >= 0; i-- {
		out = append(out, b.social.polls[i].poll)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleDeletePoll(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.pollFromPath(w, r)
	if !ok {
		return
	}
	b.social.polls = slices.DeleteFunc(b.social.polls, func(p *pollState) bool { return p == state })
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleCastVote counts one vote per user; voting again moves the vote.
func (b *Backend) handleCastVote(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseID(r.FormValue("poll_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid poll_id"})
		return
	}
	user, option := r.FormValue("username"), r.FormValue("option")
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.pollLocked(id)
	if state == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Poll not found"})
		return
	}
	idx := slices.IndexFunc(state.poll.Options, func(o models.PollOption) bool { return o.Option == option })
	if idx < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Unknown option"})
		return
	}
	if prev, voted := state.voters[user]; voted {
		if p := slices.IndexFunc(state.poll.Options, func(o models.PollOption) bool { return o.Option == prev }); p >= 0 {
			state.poll.Options[p].Votes--
		}
	}
	state.voters[user] = option
	state.poll.Options[idx].Votes++
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleFollow(follow bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		current, target := q.Get("curuser"), q.Get("user")
		if current == "" || target == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "curuser and user are required"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if follow {
			b.followLocked(current, target)
		} else {
			b.unfollowLocked(current, target)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

func (b *Backend) handleIsFollowing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{
		"is_following": slices.Contains(b.followers[q.Get("user")], q.Get("curuser")),
	})
}

func (b *Backend) handleAllFollowers(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Follower, 0, len(b.followers[name]))
	for _, follower := range b.followers[name] {
		out = append(out, models.Follower{Follower: follower})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleUserFollowing(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Following, 0)
	for target, followers := range b.followers {
		if slices.Contains(followers, name) {
			out = append(out, models.Following{Following: target})
		}
	}
	slices.SortFunc(out, func(a, c models.Following) int { return strings.Compare(a.Following, c.Following) })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleRemoveFollower(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unfollowLocked(r.FormValue("follower"), r.FormValue("user"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, r.FormValue("grpname"))
	if !ok {
		return
	}
	name := r.FormValue("username")
	if !slices.Contains(state.members, name) {
		state.members = append(state.members, name)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.group(w, r.FormValue("grpname"))
	if !ok {
		return
	}
	name := r.FormValue("username")
	if name == state.group.Admin {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "The admin cannot leave the group"})
		return
	}
	if !slices.Contains(state.members, name) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Not a member"})
		return
	}
	state.members = slices.DeleteFunc(state.members, func(m string) bool { return m == name })
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleGetChat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, other := vars["user"], vars["other"]
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.DirectMessage, 0)
	for _, msg := range b.social.dms {
		if (msg.Sender == user && msg.Receiver == other) || (msg.Sender == other && msg.Receiver == user) {
			out = append(out, msg)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleNewChatMsg(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.social.dms = append(b.social.dms, models.DirectMessage{
		ID:       models.ID(b.nextID),
		Sender:   r.FormValue("sender"),
		Receiver: r.FormValue("receiver"),
		Message:  r.FormValue("msg"),
		Time:     requestTime,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
