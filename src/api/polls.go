package api

import (
	"context"
	"strings"

	"socialconnect/src/models"
)

type newPollForm struct {
	Username string `form:"username" validate:"required"`
	Content  string `form:"content" validate:"required"`
	Options  string `form:"options" validate:"required"`
}

// CreatePoll submits a poll; options are sent comma-separated.
func (c *Client) CreatePoll(ctx context.Context, user models.Identity, content string, options []string) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/new_poll", "create poll", newPollForm{
		Username: models.HandleOf(user),
		Content:  content,
		Options:  strings.Join(options, ","),
	}, &resp)
	return resp, err
}

func (c *Client) FetchPoll(ctx context.Context, id models.ID) (models.Poll, error) {
	var poll models.Poll
	err := c.get(ctx, pathf("/poll/%s", id.String()), "fetch poll", &poll)
	return poll, err
}

func (c *Client) FetchPollFeed(ctx context.Context) ([]models.Poll, error) {
	polls := make([]models.Poll, 0)
	err := c.get(ctx, "/poll_feed", "fetch poll feed", &polls)
	return polls, err
}

func (c *Client) DeletePoll(ctx context.Context, id models.ID) error {
	return c.get(ctx, pathf("/delete_poll/%s", id.String()), "delete poll", nil)
}

type voteForm struct {
	Username string    `form:"username" validate:"required"`
	PollID   models.ID `form:"poll_id" validate:"required"`
	Option   string    `form:"option" validate:"required"`
}

func (c *Client) CastVote(ctx context.Context, user models.Identity, id models.ID, option string) error {
	return c.postForm(ctx, "/cast_vote", "cast vote", voteForm{
		Username: models.HandleOf(user),
		PollID:   id,
		Option:   option,
	}, nil)
}
