package auth

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/storage"
)

// recordKey is the single key under which a session's user is stored.
const recordKey = "user"

var _ Repository = (*KVRepository)(nil)

// KVRepository stores users as JSON records in a storage.KV, one record per
// session under "<session>/user".
type KVRepository struct {
	kv storage.KV
}

// NewKVRepository returns a KVRepository backed by kv.
func NewKVRepository(kv storage.KV) *KVRepository {
	return &KVRepository{kv: kv}
}

func recordKeyFor(sessionID string) string {
	return sessionID + "/" + recordKey
}

// Load returns the stored user, or nil if the session has none.
func (r *KVRepository) Load(ctx context.Context, sessionID string) (*User, error) {
	raw, err := r.kv.Get(ctx, recordKeyFor(sessionID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading user record: %w", err)
	}

	u, err := DecodeUser(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding user record: %w", err)
	}
	return u, nil
}

// Save writes u as the session's user record.
func (r *KVRepository) Save(ctx context.Context, sessionID string, u User) error {
	if err := r.kv.Set(ctx, recordKeyFor(sessionID), EncodeUser(u)); err != nil {
		return fmt.Errorf("saving user record: %w", err)
	}
	return nil
}

// Delete removes the session's user record.
func (r *KVRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.kv.Delete(ctx, recordKeyFor(sessionID)); err != nil {
		return fmt.Errorf("deleting user record: %w", err)
	}
	return nil
}

// EncodeUser serializes u as a JSON object.
func EncodeUser(u User) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("username", func(e *jx.Encoder) { e.Str(u.Username) })
		e.Field("token", func(e *jx.Encoder) { e.Str(u.Token) })
		e.Field("isAuthenticated", func(e *jx.Encoder) { e.Bool(u.Authenticated) })
	})
	return e.Bytes()
}

// DecodeUser parses a record produced by EncodeUser. Unknown fields are
// skipped.
func DecodeUser(raw []byte) (*User, error) {
	var u User
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			u.Username, err = d.Str()
		case "token":
			u.Token, err = d.Str()
		case "isAuthenticated":
			u.Authenticated, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if u.Username == "" {
		return nil, errors.New("record has no username")
	}
	return &u, nil
}
