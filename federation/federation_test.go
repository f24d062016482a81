package federation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klppl/fedigo/keyring"
	"github.com/klppl/fedigo/vocab"
)

func newTestFederation(t *testing.T) (*Federation, *url.URL) {
	t.Helper()
	base, err := url.Parse("https://example.social")
	require.NoError(t, err)
	return New(base, nil), base
}

func TestAcceptsActivityPub(t *testing.T) {
	cases := []struct {
		accept string
		want   bool
	}{
		{"", true},
		{"*/*", true},
		{"application/activity+json", true},
		{"application/ld+json; profile=\"https://www.w3.org/ns/activitystreams\"", true},
		{"text/html,application/xhtml+xml", false},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.accept != "" {
			r.Header.Set("Accept", c.accept)
		}
		assert.Equal(t, c.want, acceptsActivityPub(r), "Accept: %q", c.accept)
	}
}

func TestFetch_ServesActor(t *testing.T) {
	fed, base := newTestFederation(t)
	kp, err := keyring.GenerateKeyPair(keyring.RSASSAPKCS1v15)
	require.NoError(t, err)

	fed.SetActorDispatcher("/users/{identifier}", func(ctx *Context, identifier string) (*vocab.Actor, error) {
		actor := vocab.NewPerson()
		u := *base
		u.Path = "/users/" + identifier
		actor.SetID(&u)
		actor.SetPreferredUsername(identifier)
		return actor, nil
	}).SetKeyPairsDispatcher(func(ctx *Context, identifier string) ([]*keyring.KeyPair, error) {
		return []*keyring.KeyPair{kp}, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	r.Header.Set("Accept", activityJSONType)
	w := httptest.NewRecorder()

	fed.Fetch(w, r, FetchOptions{})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, activityJSONType, w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["preferredUsername"])
	require.NotNil(t, body["publicKey"])
}

func TestFetch_UnknownActorIsNotFound(t *testing.T) {
	fed, _ := newTestFederation(t)
	fed.SetActorDispatcher("/users/{identifier}", func(ctx *Context, identifier string) (*vocab.Actor, error) {
		return nil, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/users/ghost", nil)
	w := httptest.NewRecorder()

	fed.Fetch(w, r, FetchOptions{})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFetch_RejectsUnacceptableContentType(t *testing.T) {
	fed, _ := newTestFederation(t)
	fed.SetActorDispatcher("/users/{identifier}", func(ctx *Context, identifier string) (*vocab.Actor, error) {
		return vocab.NewPerson(), nil
	})

	r := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	r.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()

	fed.Fetch(w, r, FetchOptions{})

	assert.Equal(t, http.StatusNotAcceptable, w.Code)
}

func TestFetch_UnmatchedRouteIsNotFound(t *testing.T) {
	fed, _ := newTestFederation(t)

	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	w := httptest.NewRecorder()

	fed.Fetch(w, r, FetchOptions{})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWellKnownNodeInfoHandler(t *testing.T) {
	fed, base := newTestFederation(t)
	fed.SetNodeInfoDispatcher("/nodeinfo/2.1", func(ctx *Context) (NodeInfo, error) {
		return NodeInfo{Software: NodeInfoSoftware{Name: "fedigo", Version: "0.1.0"}}, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/.well-known/nodeinfo", nil)
	w := httptest.NewRecorder()

	fed.WellKnownNodeInfoHandler()(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	links, ok := body["links"].([]interface{})
	require.True(t, ok)
	require.Len(t, links, 1)
	link := links[0].(map[string]interface{})
	assert.Equal(t, base.String()+"/nodeinfo/2.1", link["href"])
}

func TestFetch_ServesNodeInfoSchema(t *testing.T) {
	fed, _ := newTestFederation(t)
	fed.SetNodeInfoDispatcher("/nodeinfo/2.1", func(ctx *Context) (NodeInfo, error) {
		return NodeInfo{
			Software:  NodeInfoSoftware{Name: "fedigo", Version: "0.1.0"},
			Protocols: []string{"activitypub"},
		}, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/nodeinfo/2.1", nil)
	w := httptest.NewRecorder()

	fed.Fetch(w, r, FetchOptions{})

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2.1", body["version"])
	software := body["software"].(map[string]interface{})
	assert.Equal(t, "fedigo", software["name"])
}
