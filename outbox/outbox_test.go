package outbox

import (
	"context"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klppl/fedigo/keyring"
	"github.com/klppl/fedigo/vocab"
)

func mustURL(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func actorWithInbox(t *testing.T, id, inbox, shared string) *vocab.Actor {
	a := vocab.NewPerson()
	a.SetID(mustURL(t, id))
	a.SetInbox(mustURL(t, inbox))
	if shared != "" {
		ep := vocab.NewEndpoints()
		ep.SetSharedInbox(mustURL(t, shared))
		a.SetEndpoints(ep)
	}
	return a
}

// TestExtractInboxes_S4_SharedInboxFanOut reproduces spec.md scenario S4.
func TestExtractInboxes_S4_SharedInboxFanOut(t *testing.T) {
	alice := actorWithInbox(t, "https://a.example/alice", "https://a.example/alice/inbox", "https://a.example/inbox")
	app := vocab.NewApplication()
	app.SetID(mustURL(t, "https://a.example/app"))
	app.SetInbox(mustURL(t, "https://a.example/app/inbox"))
	ep := vocab.NewEndpoints()
	ep.SetSharedInbox(mustURL(t, "https://a.example/inbox"))
	app.SetEndpoints(ep)

	groups := extractInboxes([]*vocab.Actor{alice, app}, true, nil)

	require.Len(t, groups, 1)
	assert.Equal(t, "https://a.example/inbox", groups[0].inbox.String())
	assert.True(t, groups[0].shared)
	assert.ElementsMatch(t, []string{"https://a.example/alice", "https://a.example/app"}, groups[0].recipientIDs)
}

func TestExtractInboxes_WithoutPreferSharedUsesPersonalInboxes(t *testing.T) {
	alice := actorWithInbox(t, "https://a.example/alice", "https://a.example/alice/inbox", "https://a.example/inbox")
	bob := actorWithInbox(t, "https://a.example/bob", "https://a.example/bob/inbox", "https://a.example/inbox")

	groups := extractInboxes([]*vocab.Actor{alice, bob}, false, nil)
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.False(t, g.shared)
	}
}

func TestExtractInboxes_ExcludesSelfDeliveryOrigin(t *testing.T) {
	alice := actorWithInbox(t, "https://a.example/alice", "https://a.example/alice/inbox", "")
	local := actorWithInbox(t, "https://self.example/me", "https://self.example/inbox", "")

	groups := extractInboxes([]*vocab.Actor{alice, local}, false, []string{"https://self.example"})
	require.Len(t, groups, 1)
	assert.Equal(t, "https://a.example/alice/inbox", groups[0].inbox.String())
}

func TestExtractInboxes_SkipsRecipientWithNoInbox(t *testing.T) {
	noInbox := vocab.NewPerson()
	noInbox.SetID(mustURL(t, "https://a.example/ghost"))
	groups := extractInboxes([]*vocab.Actor{noInbox}, false, nil)
	assert.Empty(t, groups)
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []DeliveryJob
}

func (q *fakeQueue) Enqueue(ctx context.Context, job DeliveryJob, delaySeconds float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func TestSendActivity_EnqueuesOneJobPerInbox(t *testing.T) {
	alice := actorWithInbox(t, "https://a.example/alice", "https://a.example/alice/inbox", "")
	follow := vocab.NewFollow()
	follow.SetID(mustURL(t, "https://sender.example/activities/1"))
	follow.AddActor(mustURL(t, "https://sender.example/users/sender"))
	follow.SetTarget(mustURL(t, "https://a.example/alice"))

	q := &fakeQueue{}
	o := &Outbox{Queue: q}
	keyPair, err := keyring.GenerateKeyPair(keyring.RSASSAPKCS1v15)
	require.NoError(t, err)
	pemBytes := keyring.ExportPkcs1PrivateKey(keyPair.PrivateKey.(*rsa.PrivateKey))

	err = o.SendActivity(context.Background(), []SenderKey{{KeyID: "https://sender.example/users/sender#main-key", PrivateKeyPEM: pemBytes}}, []*vocab.Actor{alice}, follow, SendOptions{})
	require.NoError(t, err)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, "https://a.example/alice/inbox", q.jobs[0].Inbox)
	assert.Equal(t, "Follow", q.jobs[0].ActivityType)
	assert.Equal(t, "https://sender.example/activities/1", q.jobs[0].ActivityID)
	assert.NotEmpty(t, q.jobs[0].JobID)
}

// TestSendActivity_AssignsDistinctJobIDPerInbox: the same activity fanned
// out to two inboxes gets two jobs with different JobIDs, since JobID
// identifies a delivery attempt, not the activity.
func TestSendActivity_AssignsDistinctJobIDPerInbox(t *testing.T) {
	alice := actorWithInbox(t, "https://a.example/alice", "https://a.example/alice/inbox", "")
	bob := actorWithInbox(t, "https://b.example/bob", "https://b.example/bob/inbox", "")
	follow := vocab.NewFollow()
	follow.SetID(mustURL(t, "https://sender.example/activities/2"))
	follow.AddActor(mustURL(t, "https://sender.example/users/sender"))
	follow.SetTarget(mustURL(t, "https://a.example/alice"))

	q := &fakeQueue{}
	o := &Outbox{Queue: q}
	keyPair, err := keyring.GenerateKeyPair(keyring.RSASSAPKCS1v15)
	require.NoError(t, err)
	pemBytes := keyring.ExportPkcs1PrivateKey(keyPair.PrivateKey.(*rsa.PrivateKey))

	err = o.SendActivity(context.Background(), []SenderKey{{KeyID: "https://sender.example/users/sender#main-key", PrivateKeyPEM: pemBytes}}, []*vocab.Actor{alice, bob}, follow, SendOptions{})
	require.NoError(t, err)

	require.Len(t, q.jobs, 2)
	assert.NotEmpty(t, q.jobs[0].JobID)
	assert.NotEmpty(t, q.jobs[1].JobID)
	assert.NotEqual(t, q.jobs[0].JobID, q.jobs[1].JobID)
}

func TestBackoffPolicy_NextIsExponentialWithJitterAndCap(t *testing.T) {
	b := BackoffPolicy{Base: time.Second, Cap: 10 * time.Second, MaxAttempts: 5}
	d1 := b.next(1)
	d3 := b.next(3)
	d5 := b.next(5)
	assert.Greater(t, d1, 0.0)
	assert.LessOrEqual(t, d3, 11.0) // 8s plus up to 10% jitter
	assert.LessOrEqual(t, d5, 11.0) // 32s capped at 10s plus up to 10% jitter
}

func TestClassifyStatus_RetriesOn5xxAnd429And408(t *testing.T) {
	assert.True(t, classifyStatus(http.StatusInternalServerError))
	assert.True(t, classifyStatus(http.StatusTooManyRequests))
	assert.True(t, classifyStatus(http.StatusRequestTimeout))
	assert.False(t, classifyStatus(http.StatusBadRequest))
	assert.False(t, classifyStatus(http.StatusForbidden))
}

func TestWorker_DeliverSucceedsOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/activity+json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Signature"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	keyPair, err := keyring.GenerateKeyPair(keyring.RSASSAPKCS1v15)
	require.NoError(t, err)
	pemBytes := keyring.ExportPkcs1PrivateKey(keyPair.PrivateKey.(*rsa.PrivateKey))

	w := &Worker{}
	job := DeliveryJob{
		Inbox:        srv.URL + "/inbox",
		ActivityJSON: []byte(`{"type":"Follow"}`),
		SenderKeys:   []SenderKey{{KeyID: "https://sender.example/users/sender#main-key", PrivateKeyPEM: pemBytes}},
	}
	err = w.deliver(context.Background(), job)
	assert.NoError(t, err)
}

func TestWorker_DeliverReturnsRetryableOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	keyPair, err := keyring.GenerateKeyPair(keyring.RSASSAPKCS1v15)
	require.NoError(t, err)
	pemBytes := keyring.ExportPkcs1PrivateKey(keyPair.PrivateKey.(*rsa.PrivateKey))

	w := &Worker{}
	job := DeliveryJob{
		Inbox:        srv.URL + "/inbox",
		ActivityJSON: []byte(`{"type":"Follow"}`),
		SenderKeys:   []SenderKey{{KeyID: "https://sender.example/users/sender#main-key", PrivateKeyPEM: pemBytes}},
	}
	err = w.deliver(context.Background(), job)
	require.Error(t, err)
	de, ok := err.(*deliveryError)
	require.True(t, ok)
	assert.True(t, de.retryable)
}
