package models

import "strings"

// RequestStatus is the lifecycle state of a join or follow request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) IsPending() bool { return s == RequestPending }

func (s RequestStatus) IsTerminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// Label is the capitalized status for display; "" for an empty status.
func (s RequestStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Decision is the action an authorized actor takes on a pending request.
type Decision string

const (
	Approve Decision = "approved"
	Reject  Decision = "rejected"
)

func (d Decision) Valid() bool {
	return d == Approve || d == Reject
}

// JoinRequest is a request by a non-member to enter a group.
type JoinRequest struct {
	ID          ID            `json:"id"`
	GroupName   string        `json:"grp_name"`
	Username    string        `json:"username"`
	Status      RequestStatus `json:"status"`
	RequestTime string        `json:"request_time,omitempty"`
}

// JoinResponse is the body of a join submission. A 200 response may still
// carry a non-success status.
type JoinResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (r JoinResponse) Succeeded() bool {
	return r.Status == "success"
}

// HasPendingRequest reports whether username has a pending request in reqs.
func HasPendingRequest(reqs []JoinRequest, username string) bool {
	for _, req := range reqs {
		if req.Username == username && req.Status == RequestPending {
			return true
		}
	}
	return false
}
