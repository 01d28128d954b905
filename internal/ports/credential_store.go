package ports

import (
	"context"

	"github.com/bnema/seedpool/internal/domain"
)

type CredentialStore interface {
	Lookup(ctx context.Context, key string) (domain.Credential, error)
	List(ctx context.Context) ([]domain.Credential, error)
}
