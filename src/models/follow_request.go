package models

// FollowRequest is a request by Requester to follow Target.
type FollowRequest struct {
	ID          ID            `json:"id"`
	Requester   string        `json:"requester"`
	Target      string        `json:"target"`
	Status      RequestStatus `json:"status"`
	RequestTime string        `json:"request_time,omitempty"`
}

// StatusResponse is the generic {"status", "message"} body many mutations return.
type StatusResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}
