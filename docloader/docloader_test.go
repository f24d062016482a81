package docloader

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klppl/fedigo/kv"
)

func TestLoad_CachesAcrossCalls(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/activity+json")
		w.Write([]byte(`{"id":"` + r.Host + `/actor","type":"Person"}`))
	}))
	defer srv.Close()

	l := New(Config{Store: kv.NewMemory(), DefaultTTL: time.Minute})
	ctx := context.Background()

	doc1, err := l.Load(ctx, srv.URL+"/actor", AllowPrivateAddress())
	require.NoError(t, err)
	assert.Equal(t, "Person", doc1.Document["type"])

	doc2, err := l.Load(ctx, srv.URL+"/actor", AllowPrivateAddress())
	require.NoError(t, err)
	assert.Equal(t, doc1.Document["id"], doc2.Document["id"])
	assert.Equal(t, 1, hits, "second load should be served from cache, not hit the network")
}

func TestLoad_RejectsBlockedAddress(t *testing.T) {
	l := New(Config{Store: kv.NewMemory()})
	_, err := l.Load(context.Background(), "http://127.0.0.1:9/actor")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlockedAddress)
}

func TestLoad_AllowPrivateAddressBypassesGuard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","type":"Note"}`))
	}))
	defer srv.Close()

	l := New(Config{Store: kv.NewMemory()})
	doc, err := l.Load(context.Background(), srv.URL+"/note", AllowPrivateAddress())
	require.NoError(t, err)
	assert.Equal(t, "Note", doc.Document["type"])
}

func TestLoad_SurvivesDurableStoreAfterL1Eviction(t *testing.T) {
	store := kv.NewMemory()
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"id":"x","type":"Note"}`))
	}))
	defer srv.Close()

	// A non-loopback host name is used (and dialed to the fixture server)
	// because loopback hosts get a zero TTL and never reach the store.
	const noteURL = "http://docs.example/note"
	l := New(Config{Store: store, DefaultTTL: time.Hour, HTTPClient: &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, srv.Listener.Addr().String())
		},
	}}})
	ctx := context.Background()
	_, err := l.Load(ctx, noteURL, AllowPrivateAddress())
	require.NoError(t, err)

	l.l1.Remove(noteURL)

	doc, err := l.Load(ctx, noteURL, AllowPrivateAddress())
	require.NoError(t, err)
	assert.Equal(t, "Note", doc.Document["type"])
	assert.Equal(t, 1, hits, "store-backed hit should not re-fetch")
}

func TestLoad_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := New(Config{Store: kv.NewMemory()})
	_, err := l.Load(context.Background(), srv.URL+"/missing", AllowPrivateAddress())
	require.Error(t, err)
}

func TestCheckURL_BlocksLoopbackLinkLocalAndPrivate(t *testing.T) {
	cases := []string{
		"http://127.0.0.1/",
		"http://localhost/",
		"http://169.254.1.1/",
		"http://10.0.0.1/",
		"http://192.168.1.1/",
		"http://[::1]/",
		"http://[fc00::1]/",
	}
	for _, raw := range cases {
		u, err := parseAndGuard(raw)
		require.Error(t, err, raw)
		assert.Nil(t, u)
	}
}

func TestCheckURL_AllowsPublicAddress(t *testing.T) {
	u, err := parseAndGuard("https://example.com/actor")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.Hostname())
}

func TestTTLFor_LoopbackAlwaysZero(t *testing.T) {
	u, err := url.Parse("http://localhost/x")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttlFor(u, nil, time.Hour))
}

func TestTTLFor_FirstMatchingRuleWins(t *testing.T) {
	u, err := url.Parse("https://example.com/x")
	require.NoError(t, err)
	rules := []TTLRule{
		NewTTLRule(`example\.com`, 5 * time.Minute),
		NewTTLRule(`.*`, time.Hour),
	}
	assert.Equal(t, 5*time.Minute, ttlFor(u, rules, time.Hour))
}
