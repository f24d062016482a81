package webfinger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandler_S1_ExactJRD reproduces spec.md scenario S1 byte-for-byte.
func TestHandler_S1_ExactJRD(t *testing.T) {
	handler := Handler(ServerConfig{
		Host: "example.com",
		Dispatch: func(ctx context.Context, identifier string) (*ActorDescriptor, error) {
			require.Equal(t, "someone", identifier)
			return &ActorDescriptor{
				ID: "https://example.com/users/someone",
				URLs: []ActorURL{
					{Href: "https://example.com/@someone"},
					{Href: "https://example.org/@someone", Rel: "alternate", Type: "text/html"},
				},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct:someone@example.com", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/jrd+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got JRD
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	want := JRD{
		Subject: "acct:someone@example.com",
		Aliases: []string{"https://example.com/users/someone"},
		Links: []Link{
			{Rel: "self", Type: "application/activity+json", Href: "https://example.com/users/someone"},
			{Rel: "http://webfinger.net/rel/profile-page", Href: "https://example.com/@someone"},
			{Rel: "alternate", Type: "text/html", Href: "https://example.org/@someone"},
		},
	}
	assert.Equal(t, want, got)
}

func TestHandler_MissingResourceIs400(t *testing.T) {
	handler := Handler(ServerConfig{Host: "example.com", Dispatch: func(context.Context, string) (*ActorDescriptor, error) {
		return nil, nil
	}})
	req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UnknownActorDelegatesToNotFound(t *testing.T) {
	called := false
	handler := Handler(ServerConfig{
		Host: "example.com",
		Dispatch: func(context.Context, string) (*ActorDescriptor, error) {
			return nil, nil
		},
		NotFound: func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusNotFound)
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct:ghost@example.com", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.True(t, called)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_WrongHostIsInvalid(t *testing.T) {
	handler := Handler(ServerConfig{Host: "example.com", Dispatch: func(context.Context, string) (*ActorDescriptor, error) {
		t.Fatal("dispatch should not be called for a foreign host")
		return nil, nil
	}})
	req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct:someone@other.example", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestLookup_S5_PrivateAddressBlock reproduces spec.md scenario S5.
func TestLookup_S5_PrivateAddressBlock(t *testing.T) {
	_, err := Lookup(context.Background(), "acct:test@localhost", Config{})
	assert.Error(t, err, "lookupWebFinger(\"acct:test@localhost\") must fail without AllowPrivateAddress")
}

func TestLookup_AllowPrivateAddressBypassesGuard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/jrd+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/jrd+json")
		_ = json.NewEncoder(w).Encode(JRD{Subject: "acct:test@example.com"})
	}))
	defer srv.Close()

	client := srv.Client()
	jrd, err := Lookup(context.Background(), "acct:test@example.com", Config{
		HTTPClient:          withRedirectToTestServer(client, srv.URL),
		AllowPrivateAddress: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "acct:test@example.com", jrd.Subject)
}

// withRedirectToTestServer rewrites outbound requests' scheme+host to
// point at an httptest server so Lookup's "https://{host}/..." target
// construction can be exercised against a local fixture.
func withRedirectToTestServer(base *http.Client, serverURL string) *http.Client {
	target, _ := url.Parse(serverURL)
	c := *base
	c.Transport = &rewriteTransport{target: target, base: http.DefaultTransport}
	return &c
}

type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return t.base.RoundTrip(req)
}
