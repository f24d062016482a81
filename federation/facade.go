package federation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/klppl/fedigo/collection"
	"github.com/klppl/fedigo/docloader"
	"github.com/klppl/fedigo/inbox"
	"github.com/klppl/fedigo/keyring"
	"github.com/klppl/fedigo/ldsig"
	"github.com/klppl/fedigo/outbox"
	"github.com/klppl/fedigo/router"
	"github.com/klppl/fedigo/vocab"
)

// ActorDispatcher resolves a local identifier to the vocab.Actor that
// represents it.
type ActorDispatcher func(ctx *Context, identifier string) (*vocab.Actor, error)

// KeyPairsDispatcher returns an identifier's key pairs, most preferred
// first. The actor endpoint publishes the actor's publicKey from this
// list; SendActivity does not read it and takes its sender keys as an
// argument.
type KeyPairsDispatcher func(ctx *Context, identifier string) ([]*keyring.KeyPair, error)

// ObjectDispatcher resolves the path variables of a registered object
// route (e.g. a note's {id}) to the vocab.Object it names.
type ObjectDispatcher func(ctx *Context, vars map[string]string) (*vocab.Object, error)

// CollectionItemsDispatcher serves one page of a per-actor collection
// (outbox, following, followers, liked, featured, featuredTags).
type CollectionItemsDispatcher func(ctx *Context, identifier string, cursor *string) (collection.Page, error)

// CollectionCounter returns a per-actor collection's totalItems.
type CollectionCounter func(ctx *Context, identifier string) (int, error)

// CollectionFirstCursor returns the cursor identifying a per-actor
// collection's first page, for collections whose first page needs an
// explicit starting cursor.
type CollectionFirstCursor func(ctx *Context, identifier string) (string, error)

// CollectionAuthorizer gates a per-actor collection endpoint.
type CollectionAuthorizer func(r *http.Request, identifier string) bool

type actorBinding struct {
	pathTemplate       string
	dispatch           ActorDispatcher
	keyPairsDispatcher KeyPairsDispatcher
	mapHandle          func(ctx *Context, handle string) (string, error)
	authorize          func(r *http.Request, identifier string) bool
}

type objectBinding struct {
	class     string
	dispatch  ObjectDispatcher
	authorize func(r *http.Request, vars map[string]string) bool
}

type collectionBinding struct {
	routeName   string
	dispatch    CollectionItemsDispatcher
	count       CollectionCounter
	firstCursor CollectionFirstCursor
	authorize   CollectionAuthorizer
}

// Federation is the single facade component K describes: it owns the
// routing table, the registered dispatchers, the inbox listener
// pipeline, and the outbox, and serves all of it through one HTTP entry
// point (Fetch).
type Federation struct {
	Router         *router.Router
	Outbox         *outbox.Outbox
	documentLoader *docloader.Loader
	baseURL        *url.URL

	mu sync.RWMutex

	actor   *actorBinding
	objects map[string]*objectBinding // keyed by router route name

	collections map[string]*collectionBinding // keyed by kind: outbox, following, followers, liked, featured, featuredTags

	inboxPipeline       *inbox.Pipeline
	sharedKeyDispatcher func(ctx *Context) (keyID string, ok error)

	nodeInfoPath       string
	nodeInfoDispatcher func(ctx *Context) (NodeInfo, error)
}

// New constructs an empty Federation rooted at baseURL, using docLoader
// for outgoing fetches made while dispatching (actor/object resolution,
// Integrity Proof and LD Signature key lookups).
func New(baseURL *url.URL, docLoader *docloader.Loader) *Federation {
	return &Federation{
		Router:         router.New(),
		documentLoader: docLoader,
		baseURL:        baseURL,
		objects:        make(map[string]*objectBinding),
		collections:    make(map[string]*collectionBinding),
		inboxPipeline:  inbox.NewPipeline(),
	}
}

// ActorBinding is returned by SetActorDispatcher to configure the rest of
// an actor's dispatch behavior.
type ActorBinding struct {
	f *Federation
	b *actorBinding
}

// SetActorDispatcher registers the handler that resolves a local
// identifier (extracted from pathTemplate, e.g. "/users/{identifier}")
// to its vocab.Actor.
func (f *Federation) SetActorDispatcher(pathTemplate string, handler ActorDispatcher) *ActorBinding {
	if err := f.Router.Register("actor", pathTemplate); err != nil {
		panic(fmt.Sprintf("federation: register actor route: %v", err))
	}
	b := &actorBinding{pathTemplate: pathTemplate, dispatch: handler}
	f.mu.Lock()
	f.actor = b
	f.mu.Unlock()
	return &ActorBinding{f: f, b: b}
}

// SetKeyPairsDispatcher registers the identifier's key pairs, used to
// publish its publicKey property. Outgoing deliveries are signed with the
// keys passed to SendActivity, not with these.
func (ab *ActorBinding) SetKeyPairsDispatcher(d KeyPairsDispatcher) *ActorBinding {
	ab.b.keyPairsDispatcher = d
	return ab
}

// MapHandle translates a WebFinger acct: local-part into the dispatch
// identifier SetActorDispatcher's handler expects, for deployments where
// the two differ.
func (ab *ActorBinding) MapHandle(fn func(ctx *Context, handle string) (string, error)) *ActorBinding {
	ab.b.mapHandle = fn
	return ab
}

// Authorize gates the actor endpoint; a false return sends 401.
func (ab *ActorBinding) Authorize(fn func(r *http.Request, identifier string) bool) *ActorBinding {
	ab.b.authorize = fn
	return ab
}

// ObjectBinding is returned by SetObjectDispatcher.
type ObjectBinding struct {
	f *Federation
	b *objectBinding
}

// SetObjectDispatcher registers the handler serving objects of class
// (used only for diagnostics; dispatch is by route) at pathTemplate,
// e.g. SetObjectDispatcher("Note", "/notes/{id}", handler).
func (f *Federation) SetObjectDispatcher(class, pathTemplate string, handler ObjectDispatcher) *ObjectBinding {
	routeName := "object:" + class
	if err := f.Router.Register(routeName, pathTemplate); err != nil {
		panic(fmt.Sprintf("federation: register object route %s: %v", class, err))
	}
	b := &objectBinding{class: class, dispatch: handler}
	f.mu.Lock()
	f.objects[routeName] = b
	f.mu.Unlock()
	return &ObjectBinding{f: f, b: b}
}

// Authorize gates the object endpoint.
func (ob *ObjectBinding) Authorize(fn func(r *http.Request, vars map[string]string) bool) *ObjectBinding {
	ob.b.authorize = fn
	return ob
}

// CollectionBinding is returned by each per-actor collection setter.
type CollectionBinding struct {
	f *Federation
	b *collectionBinding
}

func (f *Federation) setCollectionDispatcher(kind, routeName, pathTemplate string, handler CollectionItemsDispatcher) *CollectionBinding {
	if err := f.Router.Register(routeName, pathTemplate); err != nil {
		panic(fmt.Sprintf("federation: register %s route: %v", kind, err))
	}
	b := &collectionBinding{routeName: routeName, dispatch: handler}
	f.mu.Lock()
	f.collections[kind] = b
	f.mu.Unlock()
	return &CollectionBinding{f: f, b: b}
}

// SetOutboxDispatcher registers the identifier's outbox collection.
func (f *Federation) SetOutboxDispatcher(pathTemplate string, handler CollectionItemsDispatcher) *CollectionBinding {
	return f.setCollectionDispatcher("outbox", "outbox", pathTemplate, handler)
}

// SetFollowingDispatcher registers the identifier's following collection.
func (f *Federation) SetFollowingDispatcher(pathTemplate string, handler CollectionItemsDispatcher) *CollectionBinding {
	return f.setCollectionDispatcher("following", "following", pathTemplate, handler)
}

// SetFollowersDispatcher registers the identifier's followers collection.
func (f *Federation) SetFollowersDispatcher(pathTemplate string, handler CollectionItemsDispatcher) *CollectionBinding {
	return f.setCollectionDispatcher("followers", "followers", pathTemplate, handler)
}

// SetLikedDispatcher registers the identifier's liked collection.
func (f *Federation) SetLikedDispatcher(pathTemplate string, handler CollectionItemsDispatcher) *CollectionBinding {
	return f.setCollectionDispatcher("liked", "liked", pathTemplate, handler)
}

// SetFeaturedDispatcher registers the identifier's pinned-objects
// collection.
func (f *Federation) SetFeaturedDispatcher(pathTemplate string, handler CollectionItemsDispatcher) *CollectionBinding {
	return f.setCollectionDispatcher("featured", "featured", pathTemplate, handler)
}

// SetFeaturedTagsDispatcher registers the identifier's featured-hashtags
// collection.
func (f *Federation) SetFeaturedTagsDispatcher(pathTemplate string, handler CollectionItemsDispatcher) *CollectionBinding {
	return f.setCollectionDispatcher("featuredTags", "featuredTags", pathTemplate, handler)
}

// SetCounter registers the collection's totalItems dispatcher.
func (cb *CollectionBinding) SetCounter(d CollectionCounter) *CollectionBinding {
	cb.b.count = d
	return cb
}

// SetFirstCursor registers the collection's first-page cursor dispatcher.
func (cb *CollectionBinding) SetFirstCursor(d CollectionFirstCursor) *CollectionBinding {
	cb.b.firstCursor = d
	return cb
}

// Authorize gates the collection endpoint.
func (cb *CollectionBinding) Authorize(fn CollectionAuthorizer) *CollectionBinding {
	cb.b.authorize = fn
	return cb
}

// InboxListenerBinding is returned by SetInboxListeners.
type InboxListenerBinding struct {
	f           *Federation
	sharedInbox bool
}

// SetInboxListeners registers the inbox (and, if sharedInboxPath is
// non-empty, the shared inbox) as the pipeline's POST endpoints, per
// spec.md §4.I and §4.K.
func (f *Federation) SetInboxListeners(inboxPathTemplate, sharedInboxPathTemplate string) *InboxListenerBinding {
	if err := f.Router.Register("inbox", inboxPathTemplate); err != nil {
		panic(fmt.Sprintf("federation: register inbox route: %v", err))
	}
	hasShared := sharedInboxPathTemplate != ""
	if hasShared {
		if err := f.Router.Register("sharedInbox", sharedInboxPathTemplate); err != nil {
			panic(fmt.Sprintf("federation: register shared inbox route: %v", err))
		}
	}
	return &InboxListenerBinding{f: f, sharedInbox: hasShared}
}

// On registers a listener for activityType (or the nearest registered
// supertype of an incoming activity's type).
func (ib *InboxListenerBinding) On(activityType string, listener inbox.Listener) *InboxListenerBinding {
	ib.f.inboxPipeline.On(activityType, listener)
	return ib
}

// OnError registers the pipeline's error handler.
func (ib *InboxListenerBinding) OnError(handler inbox.ErrorHandler) *InboxListenerBinding {
	ib.f.inboxPipeline.OnError = handler
	return ib
}

// SetSharedKeyDispatcher stores fn, a callback naming a key id for the
// shared inbox, on the Federation. Nothing in this package calls it:
// shared-inbox deliveries are verified by the same resolvers as
// personal-inbox ones.
func (ib *InboxListenerBinding) SetSharedKeyDispatcher(fn func(ctx *Context) (keyID string, ok error)) *InboxListenerBinding {
	ib.f.sharedKeyDispatcher = fn
	return ib
}

// SetResolveProofKey wires the Integrity Proof verification key
// resolver (spec.md §4.E) into the inbox pipeline.
func (f *Federation) SetResolveProofKey(resolver ldsig.KeyResolver) {
	f.inboxPipeline.ResolveProofKey = resolver
}

// SetResolveLegacyKey wires the LD Signature verification key resolver
// (spec.md §4.E legacy path) into the inbox pipeline.
func (f *Federation) SetResolveLegacyKey(resolver inbox.LegacyKeyFetcher) {
	f.inboxPipeline.ResolveLegacyKey = resolver
}

// SetResolveHTTPSigKey wires the HTTP Signature verification key
// resolver (spec.md §4.D) into the inbox pipeline.
func (f *Federation) SetResolveHTTPSigKey(resolver inbox.HTTPSigKeyFetcher) {
	f.inboxPipeline.ResolveHTTPSigKey = resolver
}

// SetNodeInfoDispatcher registers the NodeInfo 2.1 descriptor served at
// path and its well-known linking document.
func (f *Federation) SetNodeInfoDispatcher(path string, handler func(ctx *Context) (NodeInfo, error)) {
	if err := f.Router.Register("nodeinfo", path); err != nil {
		panic(fmt.Sprintf("federation: register nodeinfo route: %v", err))
	}
	f.nodeInfoPath = path
	f.nodeInfoDispatcher = handler
}

// StartQueue begins draining the outbox's delivery queue in the
// background by starting worker; it returns once the worker's
// subscription is in place.
func (f *Federation) StartQueue(ctx context.Context, worker *outbox.Worker) error {
	return worker.Start(ctx)
}

func (f *Federation) actorBinding() (*actorBinding, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.actor == nil {
		return nil, false
	}
	return f.actor, true
}

func (f *Federation) objectBindingFor(routeName string) (*objectBinding, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.objects[routeName]
	return b, ok
}

func (f *Federation) collectionBindingFor(kind string) (*collectionBinding, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.collections[kind]
	return b, ok
}
