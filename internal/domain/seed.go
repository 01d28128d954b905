package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultSeedSize = 32
	MinSeedSize     = 1
	MaxSeedSize     = 128
)

type Purpose string

const (
	PurposeGeneral        Purpose = "general"
	PurposeLogin          Purpose = "login"
	PurposeStartup        Purpose = "startup"
	PurposeInitialization Purpose = "initialization"
	PurposeImmediate      Purpose = "immediate"
)

// IsLatencyCritical reports whether a request with this purpose may be served
// from the fast path while a refresh is running.
func (p Purpose) IsLatencyCritical() bool {
	switch Purpose(strings.ToLower(strings.TrimSpace(string(p)))) {
	case PurposeLogin, PurposeStartup, PurposeInitialization, PurposeImmediate:
		return true
	default:
		return false
	}
}

type SeedRequest struct {
	Size          int
	ClientEntropy []byte
	Purpose       Purpose
}

type SeedResult struct {
	Seed      []byte
	Signature string
	Timestamp time.Time
	RequestID string
	Degraded  bool
}

func (r SeedResult) SeedHex() string {
	return hex.EncodeToString(r.Seed)
}

// SignSeed returns the hex SHA256 of the hex-encoded seed followed by the
// caller credential. An empty credential signs the seed alone.
func SignSeed(seed []byte, credential string) string {
	sum := sha256.Sum256([]byte(hex.EncodeToString(seed) + credential))
	return hex.EncodeToString(sum[:])
}

// ParseSeedRequest builds a request from caller input. A nil size selects the
// default, sizes above the maximum are clamped, and sizes below one or a
// malformed hex clientEntropy are rejected with ErrInvalidRequest.
func ParseSeedRequest(size *int, clientEntropyHex string, purpose string) (SeedRequest, error) {
	req := SeedRequest{
		Size:    DefaultSeedSize,
		Purpose: PurposeGeneral,
	}

	if size != nil {
		if *size < MinSeedSize {
			return req, fmt.Errorf("%w: size %d below minimum %d", ErrInvalidRequest, *size, MinSeedSize)
		}
		req.Size = min(*size, MaxSeedSize)
	}

	if trimmed := strings.TrimSpace(purpose); trimmed != "" {
		req.Purpose = Purpose(trimmed)
	}

	if trimmed := strings.TrimSpace(clientEntropyHex); trimmed != "" {
		decoded, err := hex.DecodeString(trimmed)
		if err != nil {
			return req, fmt.Errorf("%w: clientEntropy is not valid hex: %w", ErrInvalidRequest, err)
		}
		req.ClientEntropy = decoded
	}

	return req, nil
}
