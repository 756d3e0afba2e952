package xcrypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBtwocHighBitSet(t *testing.T) {
	b := []byte{0xff, 0x01}
	out := Btwoc(b)
	require.Equal(t, []byte{0x00, 0xff, 0x01}, out)
}

func TestBtwocHighBitClear(t *testing.T) {
	b := []byte{0x7f, 0x01}
	out := Btwoc(b)
	require.Equal(t, b, out)
}

func TestBtwocLeadingZeroNotStripped(t *testing.T) {
	b := []byte{0x00, 0x01}
	out := Btwoc(b)
	require.Equal(t, b, out)
}

func TestBtwocEmpty(t *testing.T) {
	require.Equal(t, []byte{0}, Btwoc(nil))
}

func TestNewMACKeySizes(t *testing.T) {
	k1, err := NewMACKey(HMACSHA1)
	require.NoError(t, err)
	require.Len(t, k1, 20)

	k256, err := NewMACKey(HMACSHA256)
	require.NoError(t, err)
	require.Len(t, k256, 32)
}

func TestSignVerify(t *testing.T) {
	key, err := NewMACKey(HMACSHA256)
	require.NoError(t, err)

	sig, err := Sign(HMACSHA256, key, []byte("mode:id_res\n"))
	require.NoError(t, err)

	ok, err := Verify(HMACSHA256, key, []byte("mode:id_res\n"), sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify(HMACSHA256, key, []byte("mode:cancel\n"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDHRoundTrip(t *testing.T) {
	modulus := DefaultModulus()
	generator := DefaultGenerator()

	rpKP, err := GenerateKeyPair(modulus, generator)
	require.NoError(t, err)

	opKP, err := GenerateKeyPair(modulus, generator)
	require.NoError(t, err)

	opSecret := SharedSecret(opKP, rpKP.Public, modulus)
	rpSecret := SharedSecret(rpKP, opKP.Public, modulus)
	require.Equal(t, 0, opSecret.Cmp(rpSecret))

	macKey, err := NewMACKey(HMACSHA256)
	require.NoError(t, err)

	encMACKey, err := DeriveEncMACKey(HMACSHA256, opSecret, macKey)
	require.NoError(t, err)

	recovered, err := RecoverMACKey(HMACSHA256, rpSecret, encMACKey)
	require.NoError(t, err)
	require.Equal(t, macKey, recovered)
}

func TestEncodeDecodeBigIntRoundTrip(t *testing.T) {
	n := big.NewInt(0).SetBytes([]byte{0xff, 0x01, 0x02})
	encoded := EncodeBigInt(n)
	require.Equal(t, byte(0x00), encoded[0])

	decoded := DecodeBigInt(encoded)
	require.Equal(t, 0, n.Cmp(decoded))
}
