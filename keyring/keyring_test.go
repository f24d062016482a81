package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair_RSA(t *testing.T) {
	kp, err := GenerateKeyPair(RSASSAPKCS1v15)
	require.NoError(t, err)
	assert.Equal(t, RSASSAPKCS1v15, kp.Algorithm)
	require.NoError(t, ValidateKey(kp.PublicKey, nil))
}

func TestGenerateKeyPair_Ed25519(t *testing.T) {
	kp, err := GenerateKeyPair(Ed25519)
	require.NoError(t, err)
	assert.Equal(t, Ed25519, kp.Algorithm)
	require.NoError(t, ValidateKey(kp.PublicKey, nil))
}

func TestValidateKey_RejectsUnsupported(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.NoError(t, ValidateKey(priv.Public(), nil))
	assert.Error(t, ValidateKey("not-a-key", nil))
}

func TestSpkiRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair(RSASSAPKCS1v15)
	require.NoError(t, err)

	pemBytes, err := ExportSpki(kp.PublicKey)
	require.NoError(t, err)

	pub, alg, err := ImportSpki(pemBytes)
	require.NoError(t, err)
	assert.Equal(t, RSASSAPKCS1v15, alg)
	assert.Equal(t, kp.PublicKey.(*rsa.PublicKey).N, pub.(*rsa.PublicKey).N)
}

func TestJwkRoundTrip_Ed25519(t *testing.T) {
	kp, err := GenerateKeyPair(Ed25519)
	require.NoError(t, err)

	j, err := ExportJwkPrivate(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "OKP", j.Kty)
	assert.Equal(t, "Ed25519", j.Crv)

	pub, priv, alg, err := ImportJwk(j)
	require.NoError(t, err)
	assert.Equal(t, Ed25519, alg)
	assert.Equal(t, kp.PublicKey, pub)
	assert.Equal(t, kp.PrivateKey, priv)
}

func TestMultibaseRoundTrip_Ed25519(t *testing.T) {
	kp, err := GenerateKeyPair(Ed25519)
	require.NoError(t, err)

	encoded, err := ExportMultibaseKey(kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, byte('z'), encoded[0])

	pub, alg, err := ImportMultibaseKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, Ed25519, alg)
	assert.Equal(t, kp.PublicKey, pub)
}

// TestSignVerify_RoundTrip is the "for any keypair K and message M:
// verify(sign(M, K.private), K.public) = true" invariant from spec.md §8.
func TestSignVerify_RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair(Ed25519)
	require.NoError(t, err)

	msg := []byte("hello world")
	sig := ed25519.Sign(kp.PrivateKey.(ed25519.PrivateKey), msg)
	assert.True(t, ed25519.Verify(kp.PublicKey.(ed25519.PublicKey), msg, sig))

	tampered := append([]byte{}, msg...)
	tampered[0] ^= 0xFF
	assert.False(t, ed25519.Verify(kp.PublicKey.(ed25519.PublicKey), tampered, sig))
}

func TestSignVerify_RSA(t *testing.T) {
	kp, err := GenerateKeyPair(RSASSAPKCS1v15)
	require.NoError(t, err)
	priv := kp.PrivateKey.(*rsa.PrivateKey)

	digest := sha256.Sum256([]byte("hello world"))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, 0, digest[:])
	require.NoError(t, err)
	require.NoError(t, rsa.VerifyPKCS1v15(&priv.PublicKey, 0, digest[:], sig))
}
