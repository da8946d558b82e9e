package api

import (
	"context"

	"socialconnect/src/models"
)

func (c *Client) FetchGroupChat(ctx context.Context, group string) ([]models.ChatMessage, error) {
	msgs := make([]models.ChatMessage, 0)
	err := c.get(ctx, pathf("/group_chat/%s", group), "fetch group chat", &msgs)
	return msgs, err
}

type groupMessageForm struct {
	Group   string `form:"grp_name" validate:"required"`
	Sender  string `form:"sender" validate:"required"`
	Message string `form:"message" validate:"required"`
}

func (c *Client) SendGroupMessage(ctx context.Context, group string, sender models.Identity, message string) error {
	return c.postForm(ctx, "/send_group_message", "send group message", groupMessageForm{
		Group:   group,
		Sender:  models.HandleOf(sender),
		Message: message,
	}, nil)
}

func (c *Client) FetchChat(ctx context.Context, user, other models.Identity) ([]models.DirectMessage, error) {
	msgs := make([]models.DirectMessage, 0)
	err := c.get(ctx, pathf("/get_chat/%s/%s", models.HandleOf(user), models.HandleOf(other)), "fetch chat", &msgs)
	return msgs, err
}

type directMessageForm struct {
	Sender   string `form:"sender" validate:"required"`
	Receiver string `form:"receiver" validate:"required"`
	Message  string `form:"msg" validate:"required"`
}

func (c *Client) SendMessage(ctx context.Context, sender, receiver models.Identity, message string) error {
	return c.postForm(ctx, "/new_chat_msg", "send message", directMessageForm{
		Sender:   models.HandleOf(sender),
		Receiver: models.HandleOf(receiver),
		Message:  message,
	}, nil)
}
