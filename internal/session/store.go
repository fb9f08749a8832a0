package session

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/storage"
)

// Keys under which the session is persisted.
const (
	TokenKey    = "access_token"
	IdentityKey = "me"
)

// Store persists the token and the cached identity across runs.
type Store interface {
	// Load returns the persisted token and identity. Absent values are
	// returned as "" and nil. An identity that cannot be decoded is
	// reported as absent.
	Load(ctx context.Context) (string, *Identity, error)
	SaveToken(ctx context.Context, token string) error
	// SaveIdentity stores id, or removes the stored identity when id is nil.
	SaveIdentity(ctx context.Context, id *Identity) error
	Clear(ctx context.Context) error
}

type kvStore struct {
	kv storage.KV
}

// NewStore returns a Store on top of a key/value backend.
func NewStore(kv storage.KV) Store {
	return &kvStore{kv: kv}
}

func (s *kvStore) Load(ctx context.Context) (string, *Identity, error) {
	token, _, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		return "", nil, err
	}
	raw, ok, err := s.kv.Get(ctx, IdentityKey)
	if err != nil {
		return "", nil, err
	}
	if !ok || raw == "" {
		return token, nil, nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("ignoring unreadable cached identity")
		return token, nil, nil
	}
	return token, &id, nil
}

func (s *kvStore) SaveToken(ctx context.Context, token string) error {
	return s.kv.Set(ctx, TokenKey, token)
}

func (s *kvStore) SaveIdentity(ctx context.Context, id *Identity) error {
	if id == nil {
		return s.kv.Delete(ctx, IdentityKey)
	}
	b, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, IdentityKey, string(b))
}

func (s *kvStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, TokenKey, IdentityKey)
}
