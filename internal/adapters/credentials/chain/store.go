// Package chain consults a primary credential store and falls back to a
// second one when the key is unknown or the primary is unavailable.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/ports"
)

type Store struct {
	primary  ports.CredentialStore
	fallback ports.CredentialStore
}

var _ ports.CredentialStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credential store is nil")
	errNilFallbackStore = errors.New("fallback credential store is nil")
)

func NewStore(primary ports.CredentialStore, fallback ports.CredentialStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.CredentialStore, fallback ports.CredentialStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func (s *Store) Lookup(ctx context.Context, key string) (domain.Credential, error) {
	cred, err := s.primary.Lookup(ctx, key)
	if err == nil {
		return cred, nil
	}
	if shouldSkipFallback(err) {
		return domain.Credential{}, err
	}

	fallbackCred, fallbackErr := s.fallback.Lookup(ctx, key)
	if fallbackErr == nil {
		return fallbackCred, nil
	}
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return domain.Credential{}, fallbackErr
	}

	return domain.Credential{}, fmt.Errorf("primary backend lookup failed: %w; fallback backend lookup failed: %w", err, fallbackErr)
}

// List merges both stores. A name present in both is reported once, from the
// primary.
func (s *Store) List(ctx context.Context) ([]domain.Credential, error) {
	primary, err := s.primary.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("primary backend list failed: %w", err)
	}
	fallback, err := s.fallback.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fallback backend list failed: %w", err)
	}

	seen := make(map[string]struct{}, len(primary))
	out := make([]domain.Credential, 0, len(primary)+len(fallback))
	for _, cred := range primary {
		seen[cred.Name] = struct{}{}
		out = append(out, cred)
	}
	for _, cred := range fallback {
		if _, ok := seen[cred.Name]; ok {
			continue
		}
		out = append(out, cred)
	}

	return out, nil
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
