package api

import (
	"context"

	"socialconnect/src/models"
)

type newTweetForm struct {
	Username string `form:"username" validate:"required"`
	Content  string `form:"content" validate:"required"`
	Photo    string `form:"photo,omitempty"`
}

func (c *Client) CreateTweet(ctx context.Context, user models.Identity, content, photo string) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/new_tweet", "create tweet", newTweetForm{
		Username: models.HandleOf(user),
		Content:  content,
		Photo:    photo,
	}, &resp)
	return resp, err
}

func (c *Client) FetchTweet(ctx context.Context, id models.ID) (models.Tweet, error) {
	var tweet models.Tweet
	err := c.get(ctx, pathf("/full_tweet/%s", id.String()), "fetch tweet", &tweet)
	return tweet, err
}

func (c *Client) DeleteTweet(ctx context.Context, id models.ID) error {
	return c.get(ctx, pathf("/delete_tweet/%s", id.String()), "delete tweet", nil)
}

type likeForm struct {
	TweetID models.ID `form:"tweet_id" validate:"required"`
	UserID  string    `form:"user_id" validate:"required"`
}

func (c *Client) LikeTweet(ctx context.Context, id models.ID, user models.Identity) error {
	return c.postForm(ctx, "/new_like", "like tweet", likeForm{TweetID: id, UserID: models.HandleOf(user)}, nil)
}

func (c *Client) UnlikeTweet(ctx context.Context, id models.ID, user models.Identity) error {
	return c.postForm(ctx, "/new_unlike", "unlike tweet", likeForm{TweetID: id, UserID: models.HandleOf(user)}, nil)
}

type commentForm struct {
	TweetID  models.ID `form:"tweet_id" validate:"required"`
	Username string    `form:"username" validate:"required"`
	Content  string    `form:"content" validate:"required"`
}

func (c *Client) AddComment(ctx context.Context, id models.ID, user models.Identity, content string) error {
	return c.postForm(ctx, "/new_comment", "add comment", commentForm{
		TweetID:  id,
		Username: models.HandleOf(user),
		Content:  content,
	}, nil)
}

func (c *Client) DeleteComment(ctx context.Context, id models.ID) error {
	return c.get(ctx, pathf("/delete_comment/%s", id.String()), "delete comment", nil)
}
