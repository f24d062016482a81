package outbox

import (
	"context"
	"log/slog"

	"github.com/klppl/fedigo/docloader"
	"github.com/klppl/fedigo/vocab"
)

// ResolveRecipients implements spec.md §4.J step 1: resolve each recipient
// URL to its *vocab.Actor (fetching and decoding via loader if necessary),
// dropping any that fail to resolve or that carry no inbox. The result is
// ready to pass straight to SendActivity. guardOpts is forwarded to every
// Load call (e.g. docloader.AllowPrivateAddress() for tests).
func ResolveRecipients(ctx context.Context, loader *docloader.Loader, recipientURLs []string, guardOpts ...docloader.GuardOption) []*vocab.Actor {
	actors := make([]*vocab.Actor, 0, len(recipientURLs))
	for _, raw := range recipientURLs {
		if raw == "" {
			continue
		}
		doc, err := loader.Load(ctx, raw, guardOpts...)
		if err != nil {
			slog.Warn("outbox: failed to fetch recipient", "recipient", raw, "error", err)
			continue
		}
		entity, err := vocab.FromJsonLd(ctx, doc.Document, "Actor", loader, loader)
		if err != nil {
			slog.Warn("outbox: failed to decode recipient", "recipient", raw, "error", err)
			continue
		}
		actor := &vocab.Actor{Object: &vocab.Object{Entity: entity}}
		if actor.InboxId() == nil {
			slog.Warn("outbox: recipient has no inbox, dropping", "recipient", raw)
			continue
		}
		actors = append(actors, actor)
	}
	return actors
}

// SendActivityTo is a convenience wrapper around SendActivity for callers
// holding only recipient URLs (the common case from an activity's "to"/
// "cc" fields): it resolves them to Actors via ResolveRecipients before
// delegating.
func (o *Outbox) SendActivityTo(ctx context.Context, loader *docloader.Loader, sender []SenderKey, recipientURLs []string, activity *vocab.Activity, opts SendOptions, guardOpts ...docloader.GuardOption) error {
	recipients := ResolveRecipients(ctx, loader, recipientURLs, guardOpts...)
	return o.SendActivity(ctx, sender, recipients, activity, opts)
}
