package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not
	// match a directory record. The message is shown to end users and must
	// not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrUsernameRequired         = errors.New("username required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	// ErrNoSession is returned when a lifecycle operation runs without an
	// active session.
	ErrNoSession = errors.New("no active session")

	// ErrRecordingNotFound is returned when a recording key cannot be
	// resolved for the session's user.
	ErrRecordingNotFound = errors.New("recording not found")
)
