// Package federation implements component K: the facade that ties the
// router, WebFinger, collection engine, inbox pipeline, and outbox
// together behind the registry of setters spec.md §4.K describes, plus
// the single fetch() HTTP entry point.
package federation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/klppl/fedigo/docloader"
	"github.com/klppl/fedigo/outbox"
	"github.com/klppl/fedigo/vocab"
)

// Context is passed to every dispatcher and listener the embedder
// registers. It carries the caller-supplied contextData value (an
// arbitrary payload threaded through createContext), the federation's
// base URL, and the shared document loader.
type Context struct {
	context.Context
	Data           interface{}
	BaseURL        *url.URL
	DocumentLoader *docloader.Loader
	Federation     *Federation
}

// CreateContext builds the Context value passed into dispatchers and
// listeners, per spec.md §4.K's createContext(baseUrl|request,
// contextData). Either baseURLOrRequest is a *url.URL (out-of-band
// context construction, e.g. before startQueue) or an *http.Request (the
// request's own scheme+host is used as the base URL).
func (f *Federation) CreateContext(baseURLOrRequest interface{}, contextData interface{}) (*Context, error) {
	base, background := resolveBaseURL(baseURLOrRequest, f.baseURL)
	return &Context{
		Context:        background,
		Data:           contextData,
		BaseURL:        base,
		DocumentLoader: f.documentLoader,
		Federation:     f,
	}, nil
}

// SendActivity expands recipients into their target inboxes and enqueues
// one delivery job per inbox through the owning Federation's outbox, per
// spec.md §4.J's sendActivity.
func (ctx *Context) SendActivity(sender []outbox.SenderKey, recipients []*vocab.Actor, activity *vocab.Activity, opts outbox.SendOptions) error {
	if ctx.Federation == nil || ctx.Federation.Outbox == nil {
		return fmt.Errorf("federation: no outbox configured")
	}
	return ctx.Federation.Outbox.SendActivity(ctx, sender, recipients, activity, opts)
}

// resolveBaseURL derives the base URL and request-scoped context.Context
// from an out-of-band *url.URL (e.g. a startQueue job with no live
// request) or an in-flight *http.Request, whose own context carries
// cancellation through to dispatchers.
func resolveBaseURL(v interface{}, fallback *url.URL) (*url.URL, context.Context) {
	switch t := v.(type) {
	case *url.URL:
		return t, context.Background()
	case *http.Request:
		scheme := "https"
		if t.TLS == nil && t.Header.Get("X-Forwarded-Proto") != "https" {
			scheme = "http"
		}
		return &url.URL{Scheme: scheme, Host: t.Host}, t.Context()
	default:
		return fallback, context.Background()
	}
}
