// Package mixer hashes and folds raw collector output into pool-ready bytes.
// Every function is deterministic except Fold, which draws salt from the
// supplied reader.
package mixer

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

const (
	// CondenseThreshold is the largest input kept partly raw by Condense.
	CondenseThreshold = 10 * 1024
	CondenseChunkSize = 10 * 1024
	// RawPrefixSize is how many raw bytes follow the digest of a small input.
	RawPrefixSize = 1024

	foldSaltSize = 32
)

// Hash returns the digest of data. Unknown algorithms fall back to SHA256.
func Hash(data []byte, alg Algorithm) []byte {
	switch alg {
	case SHA512:
		sum := sha512.Sum512(data)
		return sum[:]
	default:
		sum := sha256.Sum256(data)
		return sum[:]
	}
}

// Condense bounds the size of a collector blob. Inputs above the threshold are
// replaced chunk by chunk with their SHA256 digests; smaller inputs become
// digest followed by the first RawPrefixSize raw bytes.
func Condense(data []byte) []byte {
	if len(data) <= CondenseThreshold {
		raw := data[:min(len(data), RawPrefixSize)]
		out := make([]byte, 0, sha256.Size+len(raw))
		out = append(out, Hash(data, SHA256)...)
		return append(out, raw...)
	}

	chunks := (len(data) + CondenseChunkSize - 1) / CondenseChunkSize
	out := make([]byte, 0, chunks*sha256.Size)
	for start := 0; start < len(data); start += CondenseChunkSize {
		end := min(start+CondenseChunkSize, len(data))
		out = append(out, Hash(data[start:end], SHA256)...)
	}

	return out
}

// Fold expands seed into n bytes by chaining SHA512 over the previous digest,
// fresh salt read from salt, a counter and the current time.
func Fold(seed []byte, n int, salt io.Reader) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	out := make([]byte, 0, n+sha512.Size)
	prev := Hash(seed, SHA512)
	fresh := make([]byte, foldSaltSize)
	var tail [16]byte

	for counter := uint64(0); len(out) < n; counter++ {
		if _, err := io.ReadFull(salt, fresh); err != nil {
			return nil, fmt.Errorf("read fold salt: %w", err)
		}
		binary.BigEndian.PutUint64(tail[:8], counter)
		binary.BigEndian.PutUint64(tail[8:], uint64(time.Now().UnixNano()))

		h := sha512.New()
		h.Write(prev)
		h.Write(fresh)
		h.Write(tail[:])
		prev = h.Sum(nil)
		out = append(out, prev...)
	}

	return out[:n], nil
}

// XORFold xors key over data byte by byte, wrapping key around when it is
// shorter than data. The result is a new slice; an empty key copies data.
func XORFold(data, key []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	if len(key) == 0 {
		return out
	}

	for i := range out {
		out[i] ^= key[i%len(key)]
	}

	return out
}

// Expand hashes data down or up to exactly size bytes using SHA512 in counter
// mode.
func Expand(data []byte, size int) []byte {
	if size <= 0 {
		return nil
	}

	out := make([]byte, 0, size+sha512.Size)
	var ctr [4]byte
	for counter := uint32(0); len(out) < size; counter++ {
		binary.BigEndian.PutUint32(ctr[:], counter)
		h := sha512.New()
		h.Write(ctr[:])
		h.Write(data)
		out = h.Sum(out)
	}

	return out[:size]
}
