// Package outbox implements component J: expanding an activity's
// recipient list into a set of target inboxes (grouping under a shared
// inbox where available), enqueueing one delivery job per inbox, and a
// queue worker that signs and POSTs each job with exponential-backoff
// retry.
package outbox

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/klppl/fedigo/keyring"
	"github.com/klppl/fedigo/vocab"
)

// SenderKey is one of the sending actor's key pairs, keyed by the
// publicKey id remote servers will dereference to verify the signature.
// The private key travels as PKCS1 PEM (see keyring.ExportPkcs1PrivateKey)
// rather than a crypto.PrivateKey value so a DeliveryJob survives a
// marshal/unmarshal round trip through a durable queue.
type SenderKey struct {
	KeyID         string
	PrivateKeyPEM []byte
}

// DeliveryJob is the durable payload enqueued for one target inbox, per
// spec.md §3's "Outbound delivery job". JobID is distinct from ActivityID:
// one activity fans out into one job per target inbox, so JobID is what
// distinguishes them in logs and retry bookkeeping.
type DeliveryJob struct {
	JobID        string      `json:"jobId"`
	Inbox        string      `json:"inbox"`
	SharedInbox  bool        `json:"sharedInbox,omitempty"`
	ActivityJSON []byte      `json:"activityJson"`
	SenderKeys   []SenderKey `json:"senderKeys"`
	RecipientIDs []string    `json:"recipientIds"`
	ActivityID   string      `json:"activityId"`
	ActivityType string      `json:"activityType"`
	Attempt      int         `json:"attempt"`
}

// SendOptions configures one sendActivity call.
type SendOptions struct {
	// PreferSharedInbox groups recipients under their shared inbox when
	// they publish one, instead of delivering to each personal inbox.
	PreferSharedInbox bool
	// ExcludeBaseURIs drops any inbox whose scheme+host matches one of
	// these origins, preventing self-delivery loops.
	ExcludeBaseURIs []string
}

// Queue is the minimal durable message-queue contract spec.md §4.J
// requires on the sending side: enqueue with an optional delay.
// Draining with at-least-once delivery semantics is the separate
// SubscribableQueue interface in worker.go. Callers supply their own
// backing implementation (this package also ships one built on
// Watermill, see queue.go).
type Queue interface {
	Enqueue(ctx context.Context, job DeliveryJob, delaySeconds float64) error
}

// Outbox expands recipients and enqueues delivery jobs.
type Outbox struct {
	Queue Queue
}

type inboxGroup struct {
	inbox        *url.URL
	shared       bool
	recipientIDs []string
}

// extractInboxes computes the distinct set of target inboxes for
// recipients, grouping under a shared inbox when preferShared is true
// and the recipient publishes one, per spec.md §4.J step 2.
func extractInboxes(recipients []*vocab.Actor, preferShared bool, excludeBaseURIs []string) []*inboxGroup {
	excluded := make(map[string]bool, len(excludeBaseURIs))
	for _, u := range excludeBaseURIs {
		if parsed, err := url.Parse(u); err == nil {
			excluded[parsed.Scheme+"://"+parsed.Host] = true
		}
	}

	order := make([]string, 0, len(recipients))
	groups := make(map[string]*inboxGroup, len(recipients))

	for _, r := range recipients {
		if r == nil {
			continue
		}
		target := r.InboxId()
		shared := false
		if preferShared {
			if ep := r.GetEndpoints(); ep != nil {
				if su := ep.SharedInbox(); su != nil {
					target = su
					shared = true
				}
			}
		}
		if target == nil {
			continue
		}
		if excluded[target.Scheme+"://"+target.Host] {
			continue
		}

		key := target.String()
		g, ok := groups[key]
		if !ok {
			g = &inboxGroup{inbox: target, shared: shared}
			groups[key] = g
			order = append(order, key)
		}
		if id := r.ID(); id != nil {
			g.recipientIDs = append(g.recipientIDs, id.String())
		}
	}

	out := make([]*inboxGroup, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

// SendActivity implements spec.md §4.J's sendActivity: it computes the
// inbox set from recipients that already carry their inbox information
// and enqueues one job per inbox. Callers holding only recipient URLs
// resolve them to Actors first via ResolveRecipients, or call
// SendActivityTo directly.
func (o *Outbox) SendActivity(ctx context.Context, sender []SenderKey, recipients []*vocab.Actor, activity *vocab.Activity, opts SendOptions) error {
	doc, err := vocab.ToJsonLd(ctx, activity.Entity, vocab.FormatCompact, vocab.ActivityStreamsNamespace, nil)
	if err != nil {
		return fmt.Errorf("outbox: encode activity: %w", err)
	}
	activityJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("outbox: marshal activity: %w", err)
	}

	activityID := ""
	if id := activity.ID(); id != nil {
		activityID = id.String()
	}

	for _, g := range extractInboxes(recipients, opts.PreferSharedInbox, opts.ExcludeBaseURIs) {
		job := DeliveryJob{
			JobID:        uuid.NewString(),
			Inbox:        g.inbox.String(),
			SharedInbox:  g.shared,
			ActivityJSON: activityJSON,
			SenderKeys:   sender,
			RecipientIDs: g.recipientIDs,
			ActivityID:   activityID,
			ActivityType: activity.TypeName(),
			Attempt:      0,
		}
		if err := o.Queue.Enqueue(ctx, job, 0); err != nil {
			return fmt.Errorf("outbox: enqueue job for %s: %w", job.Inbox, err)
		}
	}
	return nil
}

// firstRSAKey returns the first sender key whose PEM decodes as an RSA
// private key, per spec.md §4.J step 4 ("selects the first RSA key").
// HTTP Signatures as wired to remote Mastodon-family servers assume
// rsa-sha256, so Ed25519-only sender keys are skipped here.
func firstRSAKey(keys []SenderKey) (*rsa.PrivateKey, string, bool) {
	for _, k := range keys {
		priv, err := keyring.ImportPkcs1PrivateKey(k.PrivateKeyPEM)
		if err != nil {
			continue
		}
		return priv, k.KeyID, true
	}
	return nil, "", false
}
