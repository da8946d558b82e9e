package models

// Group is the group metadata served by /group_detail.
type Group struct {
	Name        string `json:"grpname"`
	Description string `json:"description,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Photo       string `json:"photo,omitempty"`
	Admin       string `json:"admin"`
}

// About prefers the description and falls back to the stored bio.
func (g Group) About() string {
	if g.Description != "" {
		return g.Description
	}
	return g.Bio
}

// Member is one row of a group member list.
type Member struct {
	Username string `json:"username"`
}

// Post is a group post.
type Post struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	GroupName string `json:"group_name,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ChatMessage is one group chat line.
type ChatMessage struct {
	ID        ID     `json:"id"`
	GroupName string `json:"grp_name,omitempty"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Time      string `json:"time"`
}

// DirectMessage is one line of a two-party chat.
type DirectMessage struct {
	ID       ID     `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"msg"`
	Time     string `json:"time_"`
}

// HasMember reports whether username appears in members. Comparison is exact.
func HasMember(members []Member, username string) bool {
	for _, member := range members {
		if member.Username == username {
			return true
		}
	}
	return false
}
