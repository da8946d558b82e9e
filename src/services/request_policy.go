package services

import (
	"socialconnect/src/models"
)

// RequestKind distinguishes group join requests from follow requests.
type RequestKind string

const (
	GroupRequestKind  RequestKind = "group"
	FollowRequestKind RequestKind = "follow"
)

// RequestRef is the part of a request that authorization and rendering need.
// Approver is the only user allowed to decide: the group admin for a join
// request, the target for a follow request.
type RequestRef struct {
	ID          models.ID
	Requester   string
	GroupName   string
	Approver    string
	Status      models.RequestStatus
	RequestedAt string
}

func JoinRequestRef(req models.JoinRequest, group models.Group) RequestRef {
	return RequestRef{
		ID:          req.ID,
		Requester:   req.Username,
		GroupName:   req.GroupName,
		Approver:    group.Admin,
		Status:      req.Status,
		RequestedAt: req.RequestTime,
	}
}

func FollowRequestRef(req models.FollowRequest) RequestRef {
	return RequestRef{
		ID:          req.ID,
		Requester:   req.Requester,
		Approver:    req.Target,
		Status:      req.Status,
		RequestedAt: req.RequestTime,
	}
}

// CanActOnRequest is the single authorization rule for approve/reject.
// The viewer must be the request's approver and the request must still be
// pending. Names are compared exactly.
func CanActOnRequest(viewer models.Identity, req RequestRef, kind RequestKind) bool {
	name := models.HandleOf(viewer)
	if name == "" || !req.Status.IsPending() {
		return false
	}
	switch kind {
	case GroupRequestKind, FollowRequestKind:
		return name == req.Approver
	default:
		return false
	}
}

// PartitionRequests splits refs into pending and processed, preserving order.
// Every ref lands in exactly one of the two.
func PartitionRequests(refs []RequestRef) (pending, processed []RequestRef) {
	pending = make([]RequestRef, 0, len(refs))
	processed = make([]RequestRef, 0)
	for _, ref := range refs {
		if ref.Status == models.RequestPending {
			pending = append(pending, ref)
			continue
		}
		processed = append(processed, ref)
	}
	return pending, processed
}
