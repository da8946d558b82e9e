package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Identity names a user. API calls accept either a bare Username or a full User.
type Identity interface {
	Handle() string
}

// Username is a bare user identifier.
type Username string

func (u Username) Handle() string { return string(u) }

// User is the logged-in principal. Identity is asserted, never verified.
type User struct {
	Username string `json:"username"`
}

func (u User) Handle() string { return u.Username }

// UnmarshalJSON accepts both {"username": "..."} and a bare JSON string.
func (u *User) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		u.Username = name
		return nil
	}

	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode user: %w", err)
	}
	*u = User(p)
	return nil
}

// HandleOf returns the username carried by id, or "" for a nil identity.
func HandleOf(id Identity) string {
	if id == nil {
		return ""
	}
	return id.Handle()
}

// Profile is the public profile served by /user/{username}.
type Profile struct {
	Username    string `json:"username"`
	FirstName   string `json:"fname,omitempty"`
	LastName    string `json:"lname,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Location    string `json:"location,omitempty"`
	Website     string `json:"website,omitempty"`
	MailID      string `json:"mailid,omitempty"`
	Photo       string `json:"photo,omitempty"`
	DateOfBirth string `json:"dateofbirth,omitempty"`
	JoinedFrom  string `json:"joined_from,omitempty"`
}

// Follower is one row of a followers list.
type Follower struct {
	Follower string `json:"follower,omitempty"`
	Username string `json:"username,omitempty"`
}

// Following is one row of a following list; Following is the followed user.
type Following struct {
	Following string `json:"following"`
}
