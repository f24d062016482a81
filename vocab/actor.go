package vocab

import "net/url"

func init() {
	actorProps := []PropertySchema{
		{Singular: "PreferredUsername", CompactName: "preferredUsername", URI: as2("preferredUsername"), Functional: true},
		{Singular: "Inbox", CompactName: "inbox", URI: as2("inbox"), Functional: true, Range: []string{"OrderedCollection"}},
		{Singular: "Outbox", CompactName: "outbox", URI: as2("outbox"), Functional: true, Range: []string{"OrderedCollection"}},
		{Singular: "Following", CompactName: "following", URI: as2("following"), Functional: true, Range: []string{"Collection"}},
		{Singular: "Followers", CompactName: "followers", URI: as2("followers"), Functional: true, Range: []string{"Collection"}},
		{Singular: "Liked", CompactName: "liked", URI: as2("liked"), Functional: true, Range: []string{"Collection"}},
		{Singular: "Featured", CompactName: "featured", URI: "http://joinmastodon.org/ns#featured", Functional: true, Range: []string{"Collection"}},
		{Singular: "FeaturedTags", CompactName: "featuredTags", URI: "http://joinmastodon.org/ns#featuredTags", Functional: true, Range: []string{"Collection"}},
		{Singular: "Endpoints", CompactName: "endpoints", URI: as2("endpoints"), Functional: true, Range: []string{"Endpoints"}, EmbedContext: false},
		{Singular: "PublicKey", Plural: "PublicKeys", CompactName: "publicKey", URI: SecurityNS + "#publicKey", Range: []string{"CryptographicKey"}, EmbedContext: true},
		{Singular: "AssertionMethod", Plural: "AssertionMethods", CompactName: "assertionMethod", URI: "https://w3id.org/security#assertionMethod", Range: []string{"Multikey"}, EmbedContext: true},
		{Singular: "ManuallyApprovesFollowers", CompactName: "manuallyApprovesFollowers", URI: as2("manuallyApprovesFollowers"), Functional: true},
		{Singular: "Discoverable", CompactName: "discoverable", URI: "http://joinmastodon.org/ns#discoverable", Functional: true},
	}

	register(&TypeSchema{Name: "Person", URI: as2("Person"), Extends: "Object", Entity: true, Properties: actorProps})
	register(&TypeSchema{Name: "Service", URI: as2("Service"), Extends: "Object", Entity: true, Properties: actorProps})
	register(&TypeSchema{Name: "Application", URI: as2("Application"), Extends: "Object", Entity: true, Properties: actorProps})
	register(&TypeSchema{Name: "Group", URI: as2("Group"), Extends: "Object", Entity: true, Properties: actorProps})
	register(&TypeSchema{Name: "Organization", URI: as2("Organization"), Extends: "Object", Entity: true, Properties: actorProps})

	register(&TypeSchema{
		Name:   "Endpoints",
		URI:    as2("Endpoints"),
		Entity: false,
		Properties: []PropertySchema{
			{Singular: "SharedInbox", CompactName: "sharedInbox", URI: as2("sharedInbox"), Functional: true, Range: []string{"OrderedCollection"}},
			{Singular: "OauthAuthorizationEndpoint", CompactName: "oauthAuthorizationEndpoint", URI: as2("oauthAuthorizationEndpoint"), Functional: true},
			{Singular: "OauthTokenEndpoint", CompactName: "oauthTokenEndpoint", URI: as2("oauthTokenEndpoint"), Functional: true},
		},
	})
}

// actorTypeNames lists every schema registered as an Actor per spec.md's
// glossary (Person, Application, Group, Organization, Service).
var actorTypeNames = map[string]bool{
	"Person": true, "Service": true, "Application": true, "Group": true, "Organization": true,
}

// IsActorType reports whether typeName names one of the five actor
// subtypes.
func IsActorType(typeName string) bool { return actorTypeNames[typeName] }

// Actor is the shared wrapper for every actor type (Person, Service,
// Application, Group, Organization), embedding *Object for the shared
// accessors. It is also the Recipient contract spec.md §3 requires: id,
// inboxId, and optional shared inbox.
type Actor struct{ *Object }

func actorWrap(typeName string) *Actor { return &Actor{&Object{NewEntity(typeName)}} }

func NewPerson() *Actor       { return actorWrap("Person") }
func NewService() *Actor      { return actorWrap("Service") }
func NewApplication() *Actor  { return actorWrap("Application") }
func NewGroup() *Actor        { return actorWrap("Group") }
func NewOrganization() *Actor { return actorWrap("Organization") }

func (a *Actor) GetPreferredUsername() string { return scalarString(a.first(as2("preferredUsername"))) }
func (a *Actor) SetPreferredUsername(v string) { a.setFunctional(as2("preferredUsername"), v) }

// InboxId returns the actor's inbox URL without fetching it — the
// Recipient contract's primary field.
func (a *Actor) InboxId() *url.URL { return idOf(a.first(as2("inbox"))) }
func (a *Actor) SetInbox(u *url.URL) { a.setFunctional(as2("inbox"), NewURL(u)) }

func (a *Actor) OutboxId() *url.URL    { return idOf(a.first(as2("outbox"))) }
func (a *Actor) FollowingId() *url.URL { return idOf(a.first(as2("following"))) }
func (a *Actor) FollowersId() *url.URL { return idOf(a.first(as2("followers"))) }
func (a *Actor) LikedId() *url.URL     { return idOf(a.first(as2("liked"))) }
func (a *Actor) FeaturedId() *url.URL  { return idOf(a.first("http://joinmastodon.org/ns#featured")) }

func (a *Actor) SetOutbox(u *url.URL)    { a.setFunctional(as2("outbox"), NewURL(u)) }
func (a *Actor) SetFollowing(u *url.URL) { a.setFunctional(as2("following"), NewURL(u)) }
func (a *Actor) SetFollowers(u *url.URL) { a.setFunctional(as2("followers"), NewURL(u)) }
func (a *Actor) SetLiked(u *url.URL)     { a.setFunctional(as2("liked"), NewURL(u)) }
func (a *Actor) SetFeatured(u *url.URL)  { a.setFunctional("http://joinmastodon.org/ns#featured", NewURL(u)) }

// Endpoints holds an actor's auxiliary endpoint URLs.
type Endpoints struct{ *Entity }

func (e *Endpoints) entity() *Entity { return e.Entity }
func NewEndpoints() *Endpoints       { return &Endpoints{NewEntity("Endpoints")} }

// SharedInbox returns the shared inbox URL, or nil if the actor does not
// publish one. Recipient's optional `endpoints.sharedInbox` field.
func (e *Endpoints) SharedInbox() *url.URL {
	if e == nil {
		return nil
	}
	return idOf(e.first(as2("sharedInbox")))
}

func (e *Endpoints) SetSharedInbox(u *url.URL) { e.setFunctional(as2("sharedInbox"), NewURL(u)) }

// GetEndpoints returns the actor's endpoints block, or nil.
func (a *Actor) GetEndpoints() *Endpoints {
	v := a.first(as2("endpoints"))
	if v == nil {
		return nil
	}
	if e, ok := v.(*Entity); ok {
		return &Endpoints{e}
	}
	if el, ok := v.(entityLike); ok {
		return &Endpoints{el.entity()}
	}
	return nil
}

func (a *Actor) SetEndpoints(ep *Endpoints) { a.setFunctional(as2("endpoints"), ep.Entity) }

// PublicKeyIds returns the key ids published by this actor without
// fetching them, for checking whether the actor owns a given key.
func (a *Actor) PublicKeyIds() []*url.URL {
	return idsOf(a.all(SecurityNS + "#publicKey"))
}

func (a *Actor) AssertionMethodIds() []*url.URL {
	return idsOf(a.all("https://w3id.org/security#assertionMethod"))
}

func (a *Actor) AddPublicKey(k *CryptographicKey) {
	a.appendPlural(SecurityNS+"#publicKey", k.Entity)
}

func (a *Actor) AddAssertionMethod(k *Multikey) {
	a.appendPlural("https://w3id.org/security#assertionMethod", k.Entity)
}
