package ldsig

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateProof_MatchesFEP8b32Vector reproduces the published FEP-8b32
// eddsa-jcs-2022 test vector byte-for-byte: same activity, same seed, same
// created timestamp must produce the documented proofValue.
func TestCreateProof_MatchesFEP8b32Vector(t *testing.T) {
	seed, err := base64.RawURLEncoding.DecodeString("yW756hDF5BTEcXI6_53nLDX6W3D66X6IMuysfS4rjtY")
	require.NoError(t, err)
	priv := ed25519.NewKeyFromSeed(seed)

	pubBytes, err := base64.RawURLEncoding.DecodeString("sA2Nk45_dz1RVlqtNqYj9TRPf10ZYPnPPo4SYg6igQ8")
	require.NoError(t, err)
	require.Equal(t, ed25519.PublicKey(pubBytes), priv.Public().(ed25519.PublicKey))

	doc := map[string]interface{}{
		"type":   "Create",
		"actor":  "https://server.example/users/alice",
		"object": map[string]interface{}{"type": "Note", "content": "Hello world"},
	}
	created, err := time.Parse(time.RFC3339, "2023-02-24T23:36:38Z")
	require.NoError(t, err)

	proof, err := CreateProof(doc, priv, "https://server.example/users/alice#ed25519-key", created)
	require.NoError(t, err)
	assert.Equal(t, "z3sXaxjKs4M3BRicwWA9peyNPJvJqxtGsDmpt1jjoHCjgeUf71TRFz56osPSfDErszyLp5Ks1EhYSgpDaNM977Rg2", proof.ProofValue)
}

func TestCanonicalize_SortsKeysDeterministically(t *testing.T) {
	a, err := Canonicalize(map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}})
	require.NoError(t, err)
	b, err := Canonicalize(map[string]interface{}{"c": map[string]interface{}{"y": 2, "z": 1}, "a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":2,"z":1}}`, string(a))
}

func TestCreateAndVerifyProof_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	doc := map[string]interface{}{
		"type":   "Create",
		"actor":  "https://server.example/users/alice",
		"object": map[string]interface{}{"type": "Note", "content": "Hello world"},
	}
	created, err := time.Parse(time.RFC3339, "2023-02-24T23:36:38Z")
	require.NoError(t, err)

	proof, err := CreateProof(doc, priv, "https://server.example/users/alice#ed25519-key", created)
	require.NoError(t, err)
	assert.Equal(t, Cryptosuite, proof.Cryptosuite)
	assert.Equal(t, ProofPurpose, proof.ProofPurpose)
	assert.Equal(t, byte('z'), proof.ProofValue[0], "base58btc multibase values start with 'z'")

	resolve := KeyResolver(func(ctx context.Context, vm string) (ed25519.PublicKey, error) {
		assert.Equal(t, "https://server.example/users/alice#ed25519-key", vm)
		return pub, nil
	})

	signed := SignObject(doc, proof)
	out, err := VerifyObject(context.Background(), signed, resolve)
	require.NoError(t, err)
	assert.Equal(t, "Create", out["type"])
}

func TestVerifyProof_RejectsTamperedDocument(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	doc := map[string]interface{}{"type": "Create", "object": "https://server.example/notes/1"}
	proof, err := CreateProof(doc, priv, "https://server.example/users/alice#ed25519-key", time.Now())
	require.NoError(t, err)

	tampered := map[string]interface{}{"type": "Delete", "object": "https://server.example/notes/1"}
	resolve := KeyResolver(func(ctx context.Context, vm string) (ed25519.PublicKey, error) { return pub, nil })

	_, err = VerifyProof(context.Background(), tampered, proof, resolve)
	assert.Error(t, err)
}

func TestVerifyProof_RejectsUnsupportedCryptosuite(t *testing.T) {
	proof := Proof{Cryptosuite: "jws-2020"}
	_, err := VerifyProof(context.Background(), map[string]interface{}{}, proof, nil)
	assert.Error(t, err)
}

func TestLegacySignature_RoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	doc := map[string]interface{}{"type": "Create", "object": "https://server.example/notes/1"}
	sig, err := CreateLegacySignature(doc, priv, "https://server.example/users/alice#main-key", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "RsaSignature2017", sig.Type)

	require.NoError(t, VerifyLegacySignature(doc, sig, &priv.PublicKey))
}

func TestLegacySignature_DetachSignatureExcludesFromHash(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	doc := map[string]interface{}{"type": "Create"}
	sig, err := CreateLegacySignature(doc, priv, "https://server.example/users/alice#main-key", time.Now())
	require.NoError(t, err)

	signedDoc := cloneShallow(doc)
	signedDoc["signature"] = map[string]interface{}{"irrelevant": true}

	require.NoError(t, VerifyLegacySignature(signedDoc, sig, &priv.PublicKey))
	assert.NotContains(t, DetachSignature(signedDoc), "signature")
}

func TestSignObject_PreservesExistingProofs(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	doc := map[string]interface{}{"type": "Note"}
	p1, err := CreateProof(doc, priv, "https://a.example/key", time.Now())
	require.NoError(t, err)
	withP1 := SignObject(doc, p1)

	p2, err := CreateProof(doc, priv, "https://b.example/key", time.Now())
	require.NoError(t, err)
	withBoth := SignObject(withP1, p2)

	proofs := existingProofs(withBoth)
	assert.Len(t, proofs, 2)
}
