package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials is the login form input.
type Credentials struct {
	Username string
	Password string
}

// Authenticator turns credentials into a signed-in user.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*User, error)
}

var _ Authenticator = (*MockAuthenticator)(nil)

// MockAuthenticator accepts any non-empty credentials after a fixed delay.
// There is no credential verification.
type MockAuthenticator struct {
	delay time.Duration
}

// NewMockAuthenticator returns a MockAuthenticator that answers after delay.
func NewMockAuthenticator(delay time.Duration) *MockAuthenticator {
	return &MockAuthenticator{delay: delay}
}

// Authenticate simulates a login round trip.
func (m *MockAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*User, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return &User{
		Username:      strings.TrimSpace(creds.Username),
		Token:         "mock-" + uuid.NewString(),
		Authenticated: true,
	}, nil
}
