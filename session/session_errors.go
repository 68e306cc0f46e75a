package session

import "errors"

var (
	SessionActiveErr  = errors.New("a session is already active")
	NoSessionErr      = errors.New("no session")
	MissingDepsErr    = errors.New("missing controller dependency")
	SignInFailedErr   = errors.New("sign in failed")
	RestoreExpiredErr = errors.New("persisted session has expired")
)
