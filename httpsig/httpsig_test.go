package httpsig

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-fed/httpsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify_RSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body := []byte(`{"type":"Create"}`)
	req := httptest.NewRequest(http.MethodPost, "https://example.com/inbox", nil)
	require.NoError(t, Sign(req, "https://example.com/actor#main-key", priv, httpsig.RSA_SHA256, body))

	assert.NotEmpty(t, req.Header.Get("Signature"))
	assert.NotEmpty(t, req.Header.Get("Digest"))
	assert.NoError(t, VerifyDigest(body, req.Header.Get("Digest")))
	assert.NoError(t, Verify(req, &priv.PublicKey))
}

func TestSignAndVerify_Ed25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://example.com/actor", nil)
	require.NoError(t, Sign(req, "https://example.com/actor#ed25519-key", priv, httpsig.ED25519, nil))
	assert.NoError(t, Verify(req, pub))
}

func TestVerify_TamperedBodyFailsDigest(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body := []byte(`{"type":"Create"}`)
	req := httptest.NewRequest(http.MethodPost, "https://example.com/inbox", nil)
	require.NoError(t, Sign(req, "https://example.com/actor#main-key", priv, httpsig.RSA_SHA256, body))

	tampered := []byte(`{"type":"Delete"}`)
	assert.Error(t, VerifyDigest(tampered, req.Header.Get("Digest")))
}

func TestCheckDateSkew(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-10 * time.Second).Format(http.TimeFormat)
	assert.NoError(t, CheckDateSkew(fresh, now))

	stale := now.Add(-5 * time.Minute).Format(http.TimeFormat)
	assert.ErrorIs(t, CheckDateSkew(stale, now), ErrDateSkew)

	assert.Error(t, CheckDateSkew("", now))
	assert.Error(t, CheckDateSkew("not-a-date", now))
}

func TestVerifyRequest_ActorGonePropagates(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body := []byte(`{"type":"Delete"}`)
	req := httptest.NewRequest(http.MethodPost, "https://example.com/inbox", nil)
	require.NoError(t, Sign(req, "https://example.com/actor#main-key", priv, httpsig.RSA_SHA256, body))
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	fetchKey := KeyFetcher(func(ctx context.Context, keyID string) (crypto.PublicKey, error) {
		return nil, ErrActorGone
	})

	keyID, err := VerifyRequest(context.Background(), req, body, fetchKey)
	assert.ErrorIs(t, err, ErrActorGone)
	assert.Equal(t, "https://example.com/actor#main-key", keyID)
}

func TestVerifyRequest_Succeeds(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body := []byte(`{"type":"Create"}`)
	req := httptest.NewRequest(http.MethodPost, "https://example.com/inbox", nil)
	require.NoError(t, Sign(req, "https://example.com/actor#main-key", priv, httpsig.RSA_SHA256, body))

	fetchKey := KeyFetcher(func(ctx context.Context, keyID string) (crypto.PublicKey, error) {
		assert.Equal(t, "https://example.com/actor#main-key", keyID)
		return &priv.PublicKey, nil
	})

	keyID, err := VerifyRequest(context.Background(), req, body, fetchKey)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/actor#main-key", keyID)
}

func TestKeyID_MissingSignatureHeaderErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com/actor", nil)
	_, err := KeyID(req)
	assert.Error(t, err)
}
