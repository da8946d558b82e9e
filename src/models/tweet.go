package models

// Tweet is a feed item.
type Tweet struct {
	ID       ID        `json:"tweetid"`
	Content  string    `json:"content_"`
	Photo    string    `json:"photo,omitempty"`
	Time     string    `json:"time_"`
	Author   string    `json:"author"`
	Likes    int       `json:"likes,omitempty"`
	Comments []Comment `json:"comments,omitempty"`
}

type Comment struct {
	ID       ID     `json:"_id"`
	TweetID  ID     `json:"tweetid"`
	Username string `json:"username"`
	Content  string `json:"content_"`
	Time     string `json:"time_"`
}

// Poll is a multiple-choice question with per-option votes.
type Poll struct {
	ID      ID           `json:"id_"`
	Content string       `json:"content_"`
	PollBy  string       `json:"poll_by"`
	Time    string       `json:"time_"`
	Options []PollOption `json:"options,omitempty"`
}

type PollOption struct {
	Option string `json:"option_"`
	Votes  int    `json:"votes"`
}
