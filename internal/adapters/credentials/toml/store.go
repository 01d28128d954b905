// Package toml keeps API credentials in a TOML file next to the service
// configuration. Writes replace the file atomically with mode 0600.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/ports"
)

const (
	keysFileMode    = 0o600
	keysDirMode     = 0o700
	tempFilePattern = ".keys-*.toml.tmp"
)

type Store struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("keys file path is empty")
	}

	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &Store{path: path, mu: lockForPath(path)}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Lookup(ctx context.Context, key string) (domain.Credential, error) {
	creds, err := s.List(ctx)
	if err != nil {
		return domain.Credential{}, err
	}

	cred, ok := domain.MatchCredential(creds, key)
	if !ok {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}

	return cred, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	creds := make([]domain.Credential, 0, len(file.Keys))
	for _, entry := range file.Keys {
		creds = append(creds, fromSchema(entry))
	}

	return creds, nil
}

// Add stores a new credential. Names and keys are both unique within the file.
func (s *Store) Add(ctx context.Context, cred domain.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	for _, entry := range file.Keys {
		if entry.Name == cred.Name {
			return fmt.Errorf("%w: name %q", domain.ErrCredentialExists, cred.Name)
		}
	}
	existing := make([]domain.Credential, 0, len(file.Keys))
	for _, entry := range file.Keys {
		existing = append(existing, fromSchema(entry))
	}
	if _, ok := domain.MatchCredential(existing, cred.Key); ok {
		return fmt.Errorf("%w: key already assigned", domain.ErrCredentialExists)
	}

	file.Keys = append(file.Keys, toSchema(cred))

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.writeSchema(file)
}

// Remove deletes the credential with the given name.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	kept := file.Keys[:0]
	removed := false
	for _, entry := range file.Keys {
		if entry.Name == name {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		return fmt.Errorf("%w: name %q", domain.ErrCredentialNotFound, name)
	}
	file.Keys = kept

	return s.writeSchema(file)
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read keys file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode keys file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.path), keysDirMode); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode keys file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp keys file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp keys file: %w", err)
	}
	if err := tempFile.Chmod(keysFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp keys file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp keys file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace keys file: %w", err)
	}
	cleanup = false

	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve keys path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
