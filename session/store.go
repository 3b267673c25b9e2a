package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/storage"
)

// Store persists the OAuth session as JSON under storage.KeyOAuthSession
type Store struct {
	store storage.Store
}

func NewStore(store storage.Store) *Store {
	return &Store{store: store}
}

// Load returns the saved session or storage.ErrNotFound
func (s *Store) Load(ctx context.Context) (Session, error) {
	raw, err := s.store.Get(ctx, storage.KeyOAuthSession)
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, errors.Wrapf(errors.ErrStorageUnavailable, "[session Load] decode: %v", err)
	}
	return sess, nil
}

func (s *Store) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("[session Save] encode: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyOAuthSession, string(data)); err != nil {
		return fmt.Errorf("[session Save] %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, storage.KeyOAuthSession); err != nil {
		return fmt.Errorf("[session Clear] %w", err)
	}
	return nil
}
