package auth

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Repository persists the signed-in user of a session.
type Repository interface {
	// Load returns the persisted user, or nil when none is stored.
	Load(ctx context.Context, sessionID string) (*User, error)
	Save(ctx context.Context, sessionID string, u User) error
	Delete(ctx context.Context, sessionID string) error
}

// Store holds the auth state of one session. Persistence is best effort:
// failures are logged and never reported to the caller.
type Store struct {
	sessionID string
	repo      Repository

	mu    sync.Mutex
	state State
}

// NewStore returns a logged-out Store for the given session.
func NewStore(sessionID string, repo Repository) *Store {
	return &Store{sessionID: sessionID, repo: repo}
}

// Dispatch applies a and performs its persistence side effect.
func (s *Store) Dispatch(ctx context.Context, a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, a)

	switch a := a.(type) {
	case LoginSuccess:
		if err := s.repo.Save(ctx, s.sessionID, a.User); err != nil {
			zctx.From(ctx).Warn("Persist user failed",
				zap.String("session", s.sessionID),
				zap.Error(err),
			)
		}
	case Logout:
		if err := s.repo.Delete(ctx, s.sessionID); err != nil {
			zctx.From(ctx).Warn("Remove persisted user failed",
				zap.String("session", s.sessionID),
				zap.Error(err),
			)
		}
	}
	return s.state
}

// State returns the current auth state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Login runs a full login attempt through authn.
func (s *Store) Login(ctx context.Context, authn Authenticator, creds Credentials) (State, error) {
	s.Dispatch(ctx, LoginStart{})

	u, err := authn.Authenticate(ctx, creds)
	if err != nil {
		return s.Dispatch(ctx, LoginFailed{Message: err.Error()}), err
	}
	return s.Dispatch(ctx, LoginSuccess{User: *u}), nil
}

// Hydrate restores a persisted user into the store, if one exists.
func (s *Store) Hydrate(ctx context.Context) {
	u, err := s.repo.Load(ctx, s.sessionID)
	if err != nil {
		zctx.From(ctx).Warn("Load persisted user failed",
			zap.String("session", s.sessionID),
			zap.Error(err),
		)
		return
	}
	if u == nil {
		return
	}
	s.Dispatch(ctx, Restore{User: *u})
}
