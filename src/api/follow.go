package api

import (
	"context"
	"encoding/json"
	"fmt"

	"socialconnect/src/models"
)

func (c *Client) FollowUser(ctx context.Context, current, target models.Identity) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.get(ctx, "/new_follow?"+followQuery(current, target), "follow user", &resp)
	return resp, err
}

func (c *Client) UnfollowUser(ctx context.Context, current, target models.Identity) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.get(ctx, "/new_unfollow?"+followQuery(current, target), "unfollow user", &resp)
	return resp, err
}

func (c *Client) IsFollowing(ctx context.Context, current, target models.Identity) (bool, error) {
	var resp struct {
		IsFollowing bool `json:"is_following"`
	}
	err := c.get(ctx, "/is_following?"+followQuery(current, target), "check follow status", &resp)
	return resp.IsFollowing, err
}

func (c *Client) FetchFollowers(ctx context.Context, user models.Identity) ([]models.Follower, error) {
	followers := make([]models.Follower, 0)
	err := c.get(ctx, pathf("/all_followers/%s", models.HandleOf(user)), "fetch followers", &followers)
	return followers, err
}

// FetchFollowing normalizes the three item shapes the backend has used:
// a bare username, {"username": ...} and {"following": ...}.
func (c *Client) FetchFollowing(ctx context.Context, user models.Identity) ([]models.Following, error) {
	var raw []json.RawMessage
	if err := c.get(ctx, pathf("/user_following/%s", models.HandleOf(user)), "fetch following", &raw); err != nil {
		return nil, err
	}

	out := make([]models.Following, 0, len(raw))
	for i, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, models.Following{Following: name})
			continue
		}
		var obj struct {
			Following string `json:"following"`
			Username  string `json:"username"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("fetch following: decode item %d: %w", i, err)
		}
		if obj.Following == "" {
			obj.Following = obj.Username
		}
		out = append(out, models.Following{Following: obj.Following})
	}
	return out, nil
}

// RequestFollow asks target to accept requester as a follower. Identifiers
// travel in the path; there is no body.
func (c *Client) RequestFollow(ctx context.Context, requester, target models.Identity) (models.StatusResponse, error) {
	var resp models.StatusResponse
	path := pathf("/request_follow/%s/%s", models.HandleOf(requester), models.HandleOf(target))
	err := c.postForm(ctx, path, "send follow request", nil, &resp)
	return resp, err
}

func (c *Client) FetchFollowRequests(ctx context.Context, user models.Identity) ([]models.FollowRequest, error) {
	reqs := make([]models.FollowRequest, 0)
	err := c.get(ctx, pathf("/follow_requests/%s", models.HandleOf(user)), "fetch follow requests", &reqs)
	return reqs, err
}

func (c *Client) ApproveFollowRequest(ctx context.Context, id models.ID, action models.Decision) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.postForm(ctx, "/approve_follow_request", "process follow request", approvalForm{RequestID: id, Action: action}, &resp)
	return resp, err
}

type removeFollowerForm struct {
	User     string `form:"user" validate:"required"`
	Follower string `form:"follower" validate:"required"`
}

func (c *Client) RemoveFollower(ctx context.Context, user, follower models.Identity) error {
	return c.postForm(ctx, "/remove_follower", "remove follower", removeFollowerForm{
		User:     models.HandleOf(user),
		Follower: models.HandleOf(follower),
	}, nil)
}
