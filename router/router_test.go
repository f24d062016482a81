package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndMatch(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("actor", "/users/{handle}"))
	require.NoError(t, r.Register("inbox", "/users/{handle}/inbox"))
	require.NoError(t, r.Register("sharedInbox", "/inbox"))

	m, err := r.Match("/users/alice")
	require.NoError(t, err)
	assert.Equal(t, "actor", m.Template)
	assert.Equal(t, "alice", m.Vars["handle"])

	m, err = r.Match("/users/alice/inbox")
	require.NoError(t, err)
	assert.Equal(t, "inbox", m.Template)
	assert.Equal(t, "alice", m.Vars["handle"])

	m, err = r.Match("/inbox")
	require.NoError(t, err)
	assert.Equal(t, "sharedInbox", m.Template)
}

func TestMatch_NoMatchReturnsErrNoMatch(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("actor", "/users/{handle}"))
	_, err := r.Match("/statuses/1")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestBuild_RoundTripsWithMatch(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("inbox", "/users/{handle}/inbox"))

	path, err := r.Build("inbox", map[string]string{"handle": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "/users/alice/inbox", path)

	m, err := r.Match(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", m.Vars["handle"])
}

func TestRegister_RejectsCollidingTemplates(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("actor", "/users/{handle}"))
	err := r.Register("actorAlias", "/users/{id}")
	assert.ErrorIs(t, err, ErrCollision)
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("actor", "/users/{handle}"))
	err := r.Register("actor", "/people/{handle}")
	assert.Error(t, err)
}

func TestRegister_RejectsMultipleVarsInOneSegment(t *testing.T) {
	r := New()
	err := r.Register("bad", "/users/{handle}{ext}")
	assert.Error(t, err)
}

func TestBuild_UnknownTemplateErrors(t *testing.T) {
	r := New()
	_, err := r.Build("missing", nil)
	assert.Error(t, err)
}
