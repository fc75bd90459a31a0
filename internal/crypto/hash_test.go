package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleSHA256KnownVector(t *testing.T) {
	// sha256d("hello")
	got := DigestHex(DoubleSHA256([]byte("hello")))
	assert.Equal(t, "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50", got)
}

func TestDoubleHasherMatchesDoubleSHA256(t *testing.T) {
	newHasher, err := HasherFactory(SHA256d)
	require.NoError(t, err)
	h := newHasher()

	inputs := [][]byte{nil, []byte("a"), make([]byte, 80)}
	for _, in := range inputs {
		assert.Equal(t, DoubleSHA256(in), h.Digest(in))
	}
}

func TestDoubleHasherDeterministic(t *testing.T) {
	for _, name := range Algorithms() {
		t.Run(name, func(t *testing.T) {
			newHasher, err := HasherFactory(name)
			require.NoError(t, err)
			h := newHasher()
			data := []byte("block header")
			first := h.Digest(data)
			assert.Equal(t, first, h.Digest(data))
			assert.Equal(t, first, newHasher().Digest(data))
		})
	}
}

func TestKeccak256dDiffersFromSHA256d(t *testing.T) {
	newKeccak, err := HasherFactory(Keccak256d)
	require.NoError(t, err)
	data := []byte("block header")
	assert.NotEqual(t, DoubleSHA256(data), newKeccak().Digest(data))
}

func TestHasherFactory(t *testing.T) {
	_, err := HasherFactory("md5")
	assert.ErrorIs(t, err, ErrUnknownHash)

	newHasher, err := HasherFactory("")
	require.NoError(t, err)
	assert.Equal(t, DoubleSHA256([]byte("x")), newHasher().Digest([]byte("x")))
}

func TestDigestHex(t *testing.T) {
	var d [DigestLen]byte
	d[0] = 0xab
	s := DigestHex(d)
	assert.Len(t, s, 64)
	decoded, err := hex.DecodeString(s)
	require.NoError(t, err)
	assert.Equal(t, d[:], decoded)
	assert.Equal(t, "ab", s[:2])
}
