// Package static serves credentials taken from the loaded configuration.
package static

import (
	"context"
	"sort"

	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/ports"
)

type Store struct {
	creds []domain.Credential
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore builds a store from a name -> key table. Entries with an empty
// name or key are ignored.
func NewStore(keys map[string]string) *Store {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	creds := make([]domain.Credential, 0, len(names))
	for _, name := range names {
		cred := domain.Credential{Name: name, Key: keys[name]}
		if cred.Validate() != nil {
			continue
		}
		creds = append(creds, cred)
	}

	return &Store{creds: creds}
}

func (s *Store) Lookup(ctx context.Context, key string) (domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, err
	}

	cred, ok := domain.MatchCredential(s.creds, key)
	if !ok {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}

	return cred, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Credential, len(s.creds))
	copy(out, s.creds)
	return out, nil
}
