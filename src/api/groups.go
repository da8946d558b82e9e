package api

import (
	"context"

	"socialconnect/src/models"
)

type newGroupForm struct {
	Name  string `form:"grpname" validate:"required"`
	Admin string `form:"admin" validate:"required"`
	Bio   string `form:"bio,omitempty"`
	Photo string `form:"photo,omitempty"`
}

func (c *Client) CreateGroup(ctx context.Context, name string, admin models.Identity, bio string) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/new_group", "create group", newGroupForm{
		Name:  name,
		Admin: models.HandleOf(admin),
		Bio:   bio,
	}, &resp)
	return resp, err
}

func (c *Client) FetchAllGroups(ctx context.Context) ([]models.Group, error) {
	groups := make([]models.Group, 0)
	err := c.get(ctx, "/all_groups", "fetch groups", &groups)
	return groups, err
}

func (c *Client) FetchGroupDetails(ctx context.Context, group string, viewer models.Identity) (models.Group, error) {
	var detail models.Group
	err := c.get(ctx, pathf("/group_detail/%s/%s", group, models.HandleOf(viewer)), "fetch group details", &detail)
	return detail, err
}

func (c *Client) FetchGroupMembers(ctx context.Context, group string) ([]models.Member, error) {
	members := make([]models.Member, 0)
	err := c.get(ctx, pathf("/group_members/%s", group), "fetch group members", &members)
	return members, err
}

func (c *Client) FetchGroupPosts(ctx context.Context, group string) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	err := c.get(ctx, pathf("/group_posts/%s", group), "fetch group posts", &posts)
	return posts, err
}

type newPostForm struct {
	Username  string `form:"username" validate:"required"`
	Content   string `form:"content" validate:"required"`
	GroupName string `form:"group_name,omitempty"`
}

// CreatePost publishes a post; group may be empty for a profile post.
func (c *Client) CreatePost(ctx context.Context, author models.Identity, content, group string) error {
	return c.postForm(ctx, "/new_post", "create post", newPostForm{
		Username:  models.HandleOf(author),
		Content:   content,
		GroupName: group,
	}, nil)
}

type groupMembershipForm struct {
	Group    string `form:"grpname" validate:"required"`
	Username string `form:"username" validate:"required"`
}

// JoinGroup adds the user directly, for groups that do not require approval.
func (c *Client) JoinGroup(ctx context.Context, group string, user models.Identity) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/join_group", "join group", groupMembershipForm{Group: group, Username: models.HandleOf(user)}, &resp)
	return resp, err
}

func (c *Client) LeaveGroup(ctx context.Context, group string, user models.Identity) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/leave_group", "leave group", groupMembershipForm{Group: group, Username: models.HandleOf(user)}, &resp)
	return resp, err
}

// RequestJoinGroup submits a join request. The body's status must still be
// checked: a 200 response can carry a non-success status.
func (c *Client) RequestJoinGroup(ctx context.Context, group string, user models.Identity) (models.JoinResponse, error) {
	var resp models.JoinResponse
	err := c.postForm(ctx, "/request_join_group", "send join request", groupMembershipForm{Group: group, Username: models.HandleOf(user)}, &resp)
	return resp, err
}

func (c *Client) FetchGroupJoinRequests(ctx context.Context, group string) ([]models.JoinRequest, error) {
	reqs := make([]models.JoinRequest, 0)
	err := c.get(ctx, pathf("/group_join_requests/%s", group), "fetch join requests", &reqs)
	return reqs, err
}

type approvalForm struct {
	RequestID models.ID       `form:"request_id" validate:"required"`
	Action    models.Decision `form:"action" validate:"required,oneof=approved rejected"`
}

func (c *Client) ApproveGroupRequest(ctx context.Context, id models.ID, action models.Decision) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/approve_group_request", "process join request", approvalForm{RequestID: id, Action: action}, &resp)
	return resp, err
}

type removeMemberForm struct {
	Group    string `form:"grp_name" validate:"required"`
	Admin    string `form:"admin" validate:"required"`
	Username string `form:"username" validate:"required"`
}

func (c *Client) RemoveGroupMember(ctx context.Context, group string, admin, member models.Identity) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/remove_group_member", "remove member", removeMemberForm{
		Group:    group,
		Admin:    models.HandleOf(admin),
		Username: models.HandleOf(member),
	}, &resp)
	return resp, err
}
