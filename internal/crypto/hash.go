package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"

	"golang.org/x/crypto/sha3"
)

const (
	// DigestLen is the size of a digest in bytes
	DigestLen = 32

	// Hash algorithm names
	SHA256d    = "sha256d"
	Keccak256d = "keccak256d"
)

var ErrUnknownHash = errors.New("unknown hash algorithm")

var constructors = map[string]func() hash.Hash{
	SHA256d:    sha256.New,
	Keccak256d: sha3.NewLegacyKeccak256,
}

// DoubleHasher computes H(H(data)) reusing one hash state and buffer.
// Not safe for concurrent use; give each worker its own.
type DoubleHasher struct {
	h     hash.Hash
	inner [DigestLen]byte
}

// NewDoubleHasher wraps a hash constructor producing 32-byte digests
func NewDoubleHasher(newHash func() hash.Hash) *DoubleHasher {
	return &DoubleHasher{h: newHash()}
}

// Digest returns H(H(data)).
func (d *DoubleHasher) Digest(data []byte) [DigestLen]byte {
	var out [DigestLen]byte
	d.h.Reset()
	d.h.Write(data)
	d.h.Sum(d.inner[:0])
	d.h.Reset()
	d.h.Write(d.inner[:])
	d.h.Sum(out[:0])
	return out
}

// HasherFactory returns a constructor for the named double hasher.
func HasherFactory(name string) (func() *DoubleHasher, error) {
	if name == "" {
		name = SHA256d
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownHash, name, Algorithms())
	}
	return func() *DoubleHasher { return NewDoubleHasher(ctor) }, nil
}

// Algorithms lists the supported hash names
func Algorithms() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DoubleSHA256 is the Bitcoin proof-of-work hash, sha256(sha256(data)).
func DoubleSHA256(data []byte) [DigestLen]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// DigestHex renders a digest as 64 lowercase hex characters
func DigestHex(digest [DigestLen]byte) string {
	return hex.EncodeToString(digest[:])
}
