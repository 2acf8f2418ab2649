// Package auth implements the mock login flow: the auth reducer, a store that
// persists the signed-in user, and a credential-free authenticator.
package auth

import (
	"github.com/go-faster/errors"
)

// ErrInvalidCredentials is returned when the username or password is empty.
var ErrInvalidCredentials = errors.New("username and password are required")

// User is the signed-in identity of a session.
type User struct {
	Username      string
	Token         string
	Authenticated bool
}

// State is the auth state of one session. User is nil when logged out.
type State struct {
	User    *User
	Loading bool
	Err     string
}

// Authenticated reports whether a signed-in user is present.
func (s State) Authenticated() bool {
	return s.User != nil && s.User.Authenticated
}

// Action is an auth transition accepted by Reduce.
type Action interface {
	isAction()
}

// LoginStart marks a login attempt as in progress.
type LoginStart struct{}

// LoginSuccess signs User in.
type LoginSuccess struct {
	User User
}

// LoginFailed ends a login attempt without signing in.
type LoginFailed struct {
	Message string
}

// Logout signs the current user out.
type Logout struct{}

// Restore reinstates a previously persisted user without persisting again.
type Restore struct {
	User User
}

func (LoginStart) isAction()   {}
func (LoginSuccess) isAction() {}
func (LoginFailed) isAction()  {}
func (Logout) isAction()       {}
func (Restore) isAction()      {}

// Reduce returns the state that results from applying a to s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case LoginStart:
		s.Loading = true
	case LoginSuccess:
		u := a.User
		s.Loading = false
		s.Err = ""
		s.User = &u
	case LoginFailed:
		s.Loading = false
		s.Err = a.Message
	case Logout:
		s.User = nil
	case Restore:
		u := a.User
		s.User = &u
	}
	return s
}
