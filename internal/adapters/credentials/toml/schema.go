package toml

import (
	"fmt"
	"time"

	"github.com/bnema/seedpool/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version int         `toml:"version"`
	Keys    []keySchema `toml:"keys"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported keys schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type keySchema struct {
	Name      string `toml:"name"`
	Key       string `toml:"key"`
	CreatedAt string `toml:"created_at,omitempty"`
}

func toSchema(cred domain.Credential) keySchema {
	return keySchema{
		Name:      cred.Name,
		Key:       cred.Key,
		CreatedAt: formatTime(cred.CreatedAt),
	}
}

func fromSchema(entry keySchema) domain.Credential {
	return domain.Credential{
		Name:      entry.Name,
		Key:       entry.Key,
		CreatedAt: parseTime(entry.CreatedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
