package services

import "errors"

var (
	ErrNotMember     = errors.New("viewer is not a member of the group")
	ErrNotAdmin      = errors.New("viewer is not the group admin")
	ErrNotAuthorized = errors.New("viewer may not act on this request")
	ErrClosed        = errors.New("controller is closed")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrUnknownUser   = errors.New("unknown user")
	ErrJoinRejected  = errors.New("join request was not accepted")
	ErrEmptyInput    = errors.New("input is empty")
	ErrProtected     = errors.New("the admin and the viewer cannot be removed")
	ErrUnknownTab    = errors.New("unknown tab")
)
