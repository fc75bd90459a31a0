package target

import (
	"fmt"
	"math"
	"strings"

	"github.com/screa/nonce-miner/internal/crypto"
	"github.com/screa/nonce-miner/pkg/types"
)

// MaxLen is the number of hex characters in a rendered digest
const MaxLen = crypto.DigestLen * 2

// Target is a required prefix of the hex digest
type Target struct {
	prefix  string
	nibbles []byte
}

// Parse validates a hex prefix (case-insensitive)
func Parse(prefix string) (Target, error) {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if len(p) > MaxLen {
		return Target{}, fmt.Errorf("%w: %d chars exceeds digest length %d", types.ErrInvalidTarget, len(p), MaxLen)
	}
	nibbles := make([]byte, len(p))
	for i := 0; i < len(p); i++ {
		n, ok := nibble(p[i])
		if !ok {
			return Target{}, fmt.Errorf("%w: non-hex character %q at %d", types.ErrInvalidTarget, p[i], i)
		}
		nibbles[i] = n
	}
	return Target{prefix: p, nibbles: nibbles}, nil
}

// MustParse is Parse that panics, for constants and tests
func MustParse(prefix string) Target {
	t, err := Parse(prefix)
	if err != nil {
		panic(err)
	}
	return t
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// String returns the normalized prefix
func (t Target) String() string {
	return t.prefix
}

// Len is the number of required nibbles
func (t Target) Len() int {
	return len(t.nibbles)
}

// Nibbles returns a copy of the prefix nibbles
func (t Target) Nibbles() []byte {
	out := make([]byte, len(t.nibbles))
	copy(out, t.nibbles)
	return out
}

// Matches reports whether the digest's hex rendering starts with the prefix
func (t Target) Matches(digest [crypto.DigestLen]byte) bool {
	return MatchNibbles(t.nibbles, digest)
}

// MatchesHex is Matches for an already rendered digest
func (t Target) MatchesHex(hash string) bool {
	return strings.HasPrefix(strings.ToLower(hash), t.prefix)
}

// ExpectedAttempts is the mean number of hashes needed, 16^len
func (t Target) ExpectedAttempts() float64 {
	return math.Pow(16, float64(len(t.nibbles)))
}

// MatchNibbles compares nibbles against the digest without hex encoding it.
func MatchNibbles(nibbles []byte, digest [crypto.DigestLen]byte) bool {
	for i, n := range nibbles {
		b := digest[i/2]
		if i%2 == 0 {
			b >>= 4
		} else {
			b &= 0x0f
		}
		if b != n {
			return false
		}
	}
	return true
}
