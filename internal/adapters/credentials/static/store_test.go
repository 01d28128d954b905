package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/seedpool/internal/domain"
)

func TestStoreLookup(t *testing.T) {
	store := NewStore(map[string]string{
		"silent_client_dev": "development-only-key",
		"ci":                "ci-key",
		"blank":             "",
	})

	cred, err := store.Lookup(context.Background(), "development-only-key")
	require.NoError(t, err)
	assert.Equal(t, "silent_client_dev", cred.Name)

	_, err = store.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)

	_, err = store.Lookup(context.Background(), "wrong")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStoreListIsSortedCopy(t *testing.T) {
	store := NewStore(map[string]string{"b": "kb", "a": "ka", "blank": " "})

	creds, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "a", creds[0].Name)
	assert.Equal(t, "b", creds[1].Name)

	creds[0].Key = "mutated"
	again, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ka", again[0].Key)
}

func TestStoreNilMap(t *testing.T) {
	store := NewStore(nil)

	creds, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, creds)
}
