package header

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/screa/nonce-miner/pkg/types"
)

const (
	// Serialized layout: version (4) + prev hash (32) + merkle root (32) +
	// timestamp (4) + bits (4) + nonce (4) = 80
	VersionLen    = 4
	PrevHashLen   = 32
	MerkleRootLen = 32
	TimestampLen  = 4
	BitsLen       = 4
	NonceLen      = 4
	Len           = VersionLen + PrevHashLen + MerkleRootLen + TimestampLen + BitsLen + NonceLen

	timestampOffset = VersionLen + PrevHashLen + MerkleRootLen
	bitsOffset      = timestampOffset + TimestampLen
	nonceOffset     = bitsOffset + BitsLen
)

// Template holds the fixed header fields as hex strings
type Template struct {
	Version    string `yaml:"version"`
	PrevHash   string `yaml:"prev_hash"`
	MerkleRoot string `yaml:"merkle_root"`
	Bits       string `yaml:"bits"`
}

// DefaultTemplate returns the demonstration header constants
func DefaultTemplate() Template {
	return Template{
		Version:    "20000000",
		PrevHash:   "0000000000000000000b4d0f1f95c8a0af6cbe33e0e6a6e3c1d5a65a4c9d1c22",
		MerkleRoot: "4a5e1e4baab89f3a32518a88e9d2f57f8c18fda97f6c6f24bdbf4c5e7a3c5b72",
		Bits:       "17000000",
	}
}

// Validate checks that every field is hex of the right width
func (t Template) Validate() error {
	_, err := t.encode()
	return err
}

// encode returns the base header with zero timestamp and nonce
func (t Template) encode() ([Len]byte, error) {
	var buf [Len]byte
	fields := []struct {
		name   string
		value  string
		offset int
		size   int
	}{
		{"version", t.Version, 0, VersionLen},
		{"prev_hash", t.PrevHash, VersionLen, PrevHashLen},
		{"merkle_root", t.MerkleRoot, VersionLen + PrevHashLen, MerkleRootLen},
		{"bits", t.Bits, bitsOffset, BitsLen},
	}
	for _, f := range fields {
		if len(f.value) != f.size*2 {
			return buf, fmt.Errorf("%w: %s must be %d hex chars, got %d",
				types.ErrInvalidTemplate, f.name, f.size*2, len(f.value))
		}
		if _, err := hex.Decode(buf[f.offset:f.offset+f.size], []byte(f.value)); err != nil {
			return buf, fmt.Errorf("%w: %s: %v", types.ErrInvalidTemplate, f.name, err)
		}
	}
	return buf, nil
}

// Serialize returns the 80-byte header for the given timestamp and nonce
func Serialize(t Template, timestamp, nonce uint32) ([]byte, error) {
	b, err := NewBuilder(t)
	if err != nil {
		return nil, err
	}
	out := make([]byte, Len)
	copy(out, b.Build(timestamp, nonce))
	return out, nil
}

// SerializeChecked is Serialize for callers holding wider integers.
// Values that do not fit in 32 bits are rejected instead of widening the header.
func SerializeChecked(t Template, timestamp, nonce uint64) ([]byte, error) {
	if timestamp > 0xffffffff || nonce > 0xffffffff {
		return nil, fmt.Errorf("%w: timestamp=%d nonce=%d", types.ErrNonceOverflow, timestamp, nonce)
	}
	return Serialize(t, uint32(timestamp), uint32(nonce))
}

// Builder rewrites the timestamp and nonce of a pre-encoded header in place
type Builder struct {
	buf [Len]byte
}

// NewBuilder decodes the template once
func NewBuilder(t Template) (*Builder, error) {
	buf, err := t.encode()
	if err != nil {
		return nil, err
	}
	return &Builder{buf: buf}, nil
}

// FromBytes creates a builder over an already serialized header
func FromBytes(base []byte) (*Builder, error) {
	if len(base) != Len {
		return nil, fmt.Errorf("%w: header must be %d bytes, got %d", types.ErrInvalidTemplate, Len, len(base))
	}
	b := &Builder{}
	copy(b.buf[:], base)
	return b, nil
}

// Build sets timestamp and nonce and returns the internal buffer.
// The slice is overwritten by the next call.
func (b *Builder) Build(timestamp, nonce uint32) []byte {
	binary.BigEndian.PutUint32(b.buf[timestampOffset:], timestamp)
	binary.BigEndian.PutUint32(b.buf[nonceOffset:], nonce)
	return b.buf[:]
}

// SetTimestamp rewrites only the timestamp word
func (b *Builder) SetTimestamp(timestamp uint32) {
	binary.BigEndian.PutUint32(b.buf[timestampOffset:], timestamp)
}

// WithNonce rewrites only the nonce word and returns the header
func (b *Builder) WithNonce(nonce uint32) []byte {
	binary.BigEndian.PutUint32(b.buf[nonceOffset:], nonce)
	return b.buf[:]
}

// Bytes returns a copy of the current header
func (b *Builder) Bytes() []byte {
	out := make([]byte, Len)
	copy(out, b.buf[:])
	return out
}

// Hex renders the header the canonical way: concatenated hex fields,
// timestamp and nonce as 8 zero-padded big-endian hex chars.
func Hex(t Template, timestamp, nonce uint32) string {
	var sb strings.Builder
	sb.Grow(Len * 2)
	sb.WriteString(strings.ToLower(t.Version))
	sb.WriteString(strings.ToLower(t.PrevHash))
	sb.WriteString(strings.ToLower(t.MerkleRoot))
	fmt.Fprintf(&sb, "%08x", timestamp)
	sb.WriteString(strings.ToLower(t.Bits))
	fmt.Fprintf(&sb, "%08x", nonce)
	return sb.String()
}
