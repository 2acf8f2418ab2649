package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/storage/memory"
)

type mockRepo struct {
	saved    map[string]User
	saveErr  error
	delErr   error
	loadErr  error
	deleted  []string
	saveHits int
}

func newMockRepo() *mockRepo {
	return &mockRepo{saved: make(map[string]User)}
}

func (m *mockRepo) Load(_ context.Context, sessionID string) (*User, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	u, ok := m.saved[sessionID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *mockRepo) Save(_ context.Context, sessionID string, u User) error {
	m.saveHits++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[sessionID] = u
	return nil
}

func (m *mockRepo) Delete(_ context.Context, sessionID string) error {
	m.deleted = append(m.deleted, sessionID)
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.saved, sessionID)
	return nil
}

var johndoe = User{Username: "johndoe", Token: "tok", Authenticated: true}

func TestReduce(t *testing.T) {
	s := Reduce(State{}, LoginStart{})
	assert.True(t, s.Loading)
	assert.Nil(t, s.User, "login start changes nothing else")

	s = Reduce(s, LoginSuccess{User: johndoe})
	assert.False(t, s.Loading)
	require.NotNil(t, s.User)
	assert.Equal(t, "johndoe", s.User.Username)
	assert.True(t, s.Authenticated())

	s = Reduce(s, Logout{})
	assert.Nil(t, s.User)
	assert.False(t, s.Authenticated())
}

func TestReduce_LoginFailed(t *testing.T) {
	s := Reduce(Reduce(State{}, LoginStart{}), LoginFailed{Message: "nope"})
	assert.False(t, s.Loading)
	assert.Equal(t, "nope", s.Err)
	assert.Nil(t, s.User)
}

func TestStore_PersistsOnLoginAndRemovesOnLogout(t *testing.T) {
	repo := newMockRepo()
	st := NewStore("s1", repo)
	ctx := context.Background()

	st.Dispatch(ctx, LoginSuccess{User: johndoe})
	assert.Equal(t, johndoe, repo.saved["s1"])

	st.Dispatch(ctx, Logout{})
	assert.NotContains(t, repo.saved, "s1")
	assert.Equal(t, []string{"s1"}, repo.deleted)
	assert.Nil(t, st.State().User)
}

func TestStore_PersistenceFailureIsNotSurfaced(t *testing.T) {
	repo := newMockRepo()
	repo.saveErr = errors.New("disk full")
	repo.delErr = errors.New("disk gone")
	st := NewStore("s1", repo)
	ctx := context.Background()

	s := st.Dispatch(ctx, LoginSuccess{User: johndoe})
	assert.True(t, s.Authenticated())
	assert.Equal(t, 1, repo.saveHits)

	s = st.Dispatch(ctx, Logout{})
	assert.False(t, s.Authenticated())
}

func TestStore_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := newMockRepo()
		st := NewStore("s1", repo)

		s, err := st.Login(ctx, NewMockAuthenticator(0), Credentials{Username: " johndoe ", Password: "pw"})
		require.NoError(t, err)
		assert.False(t, s.Loading)
		require.NotNil(t, s.User)
		assert.Equal(t, "johndoe", s.User.Username)
		assert.NotEmpty(t, s.User.Token)
		assert.Contains(t, repo.saved, "s1")
	})

	t.Run("empty credentials", func(t *testing.T) {
		repo := newMockRepo()
		st := NewStore("s1", repo)

		s, err := st.Login(ctx, NewMockAuthenticator(0), Credentials{Username: "", Password: "pw"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.False(t, s.Loading)
		assert.Nil(t, s.User)
		assert.Zero(t, repo.saveHits)
	})
}

func TestMockAuthenticator_Delay(t *testing.T) {
	m := NewMockAuthenticator(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Authenticate(ctx, Credentials{Username: "a", Password: "b"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_Hydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("restores persisted user", func(t *testing.T) {
		repo := newMockRepo()
		repo.saved["s1"] = johndoe
		st := NewStore("s1", repo)

		st.Hydrate(ctx)
		assert.True(t, st.State().Authenticated())
		assert.Equal(t, 0, repo.saveHits, "restore does not write back")
	})

	t.Run("absent record stays logged out", func(t *testing.T) {
		st := NewStore("s2", newMockRepo())
		st.Hydrate(ctx)
		assert.Nil(t, st.State().User)
	})

	t.Run("load error stays logged out", func(t *testing.T) {
		repo := newMockRepo()
		repo.loadErr = errors.New("boom")
		st := NewStore("s3", repo)
		st.Hydrate(ctx)
		assert.Nil(t, st.State().User)
	})
}

func TestKVRepository(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	repo := NewKVRepository(kv)

	u, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, u, "absence is the logged-out state")

	require.NoError(t, repo.Save(ctx, "s1", johndoe))

	raw, err := kv.Get(ctx, "s1/user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"johndoe","token":"tok","isAuthenticated":true}`, string(raw))

	u, err = repo.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, johndoe, *u)

	require.NoError(t, repo.Delete(ctx, "s1"))
	u, err = repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestDecodeUser(t *testing.T) {
	u, err := DecodeUser([]byte(`{"username":"a","extra":[1,2],"isAuthenticated":true}`))
	require.NoError(t, err)
	assert.Equal(t, "a", u.Username)
	assert.True(t, u.Authenticated)

	_, err = DecodeUser([]byte(`{"token":"x"}`))
	require.Error(t, err)

	_, err = DecodeUser([]byte(`not json`))
	require.Error(t, err)
}
