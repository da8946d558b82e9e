package api

import (
	"context"
	"net/url"

	"socialconnect/src/models"
)

// VerifyUser checks that username exists. A non-2xx response is returned as *APIError.
func (c *Client) VerifyUser(ctx context.Context, user models.Identity) error {
	return c.get(ctx, pathf("/auth/%s", models.HandleOf(user)), "verify user", nil)
}

func (c *Client) FetchUserProfile(ctx context.Context, user models.Identity) (models.Profile, error) {
	var profile models.Profile
	err := c.get(ctx, pathf("/user/%s", models.HandleOf(user)), "fetch user profile", &profile)
	return profile, err
}

func (c *Client) FetchAllUsers(ctx context.Context) ([]models.Profile, error) {
	users := make([]models.Profile, 0)
	err := c.get(ctx, "/all_users", "fetch users", &users)
	return users, err
}

type newUserForm struct {
	Username    string `form:"username" validate:"required"`
	MailID      string `form:"mailid" validate:"required,email"`
	FirstName   string `form:"fname,omitempty"`
	LastName    string `form:"lname,omitempty"`
	Bio         string `form:"bio,omitempty"`
	Location    string `form:"location,omitempty"`
	Website     string `form:"website,omitempty"`
	Photo       string `form:"photo,omitempty"`
	DateOfBirth string `form:"dateofbirth,omitempty"`
}

// CreateUser registers a profile. Empty optional fields are not sent.
func (c *Client) CreateUser(ctx context.Context, profile models.Profile) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/new_user", "create user", newUserForm{
		Username:    profile.Username,
		MailID:      profile.MailID,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		Bio:         profile.Bio,
		Location:    profile.Location,
		Website:     profile.Website,
		Photo:       profile.Photo,
		DateOfBirth: profile.DateOfBirth,
	}, &resp)
	return resp, err
}

func (c *Client) FetchFeed(ctx context.Context, user models.Identity) ([]models.Tweet, error) {
	feed := make([]models.Tweet, 0)
	err := c.get(ctx, pathf("/feed/%s", models.HandleOf(user)), "fetch feed", &feed)
	return feed, err
}

func (c *Client) FetchUserPosts(ctx context.Context, user models.Identity) ([]models.Tweet, error) {
	posts := make([]models.Tweet, 0)
	err := c.get(ctx, pathf("/user_posts/%s", models.HandleOf(user)), "fetch user posts", &posts)
	return posts, err
}

func followQuery(current, target models.Identity) string {
	q := url.Values{}
	q.Set("curuser", models.HandleOf(current))
	q.Set("user", models.HandleOf(target))
	return q.Encode()
}
