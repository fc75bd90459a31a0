package target

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/nonce-miner/internal/crypto"
	"github.com/screa/nonce-miner/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		want    string
		wantErr bool
	}{
		{name: "default", prefix: "0000", want: "0000"},
		{name: "empty", prefix: "", want: ""},
		{name: "uppercase", prefix: "00AB", want: "00ab"},
		{name: "full length", prefix: strings.Repeat("0", MaxLen), want: strings.Repeat("0", MaxLen)},
		{name: "too long", prefix: strings.Repeat("0", MaxLen+1), wantErr: true},
		{name: "not hex", prefix: "00zz", wantErr: true},
		{name: "0x prefix", prefix: "0x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.prefix)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, len(tt.want), got.Len())
		})
	}
}

func TestParseRejectsOverlongZeroPrefix(t *testing.T) {
	// 62 zeros is within the digest width and is accepted; 65 is not.
	_, err := Parse("00000000000000000000000000000000000000000000000000000000000000")
	assert.NoError(t, err)
	_, err = Parse(strings.Repeat("0", 65))
	assert.ErrorIs(t, err, types.ErrInvalidTarget)
}

func TestMatchesAgreesWithHex(t *testing.T) {
	for i := 0; i < 256; i++ {
		digest := crypto.DoubleSHA256([]byte{byte(i)})
		hexDigest := crypto.DigestHex(digest)
		for _, p := range []string{"", "0", "00", "a", hexDigest[:1], hexDigest[:3], hexDigest} {
			tgt := MustParse(p)
			assert.Equal(t, strings.HasPrefix(hexDigest, p), tgt.Matches(digest), "prefix %q digest %s", p, hexDigest)
			assert.Equal(t, tgt.Matches(digest), tgt.MatchesHex(hexDigest))
		}
	}
}

func TestMatchesEmptyAlways(t *testing.T) {
	var digest [crypto.DigestLen]byte
	digest[0] = 0xff
	assert.True(t, MustParse("").Matches(digest))
}

func TestExpectedAttempts(t *testing.T) {
	assert.Equal(t, 65536.0, MustParse("0000").ExpectedAttempts())
	assert.Equal(t, 1.0, MustParse("").ExpectedAttempts())
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("xyz") })
}
