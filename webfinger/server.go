package webfinger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// publicCORS allows any origin to read WebFinger resources, the same
// wildcard posture the teacher's handler applied via a hand-set header.
var publicCORS = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet},
})

const profilePageRel = "http://webfinger.net/rel/profile-page"
const avatarRel = "http://webfinger.net/rel/avatar"

// ActorURL is one "url" entry on a dispatched actor: either a bare URL
// (Rel defaults to profilePageRel) or a Link carrying its own declared
// rel/type, per spec.md §4.F.
type ActorURL struct {
	Href string
	Rel  string
	Type string
}

// ActorIcon is one "icon" entry on a dispatched actor.
type ActorIcon struct {
	Href string
	Type string
}

// ActorDescriptor is the subset of an actor's properties handleWebFinger
// needs to build a JRD. Keeping this decoupled from vocab.Actor lets the
// webfinger package be tested without a full vocabulary/document-loader
// stack; the federation facade's dispatcher adapts a vocab.Actor into one
// of these.
type ActorDescriptor struct {
	ID    string
	URLs  []ActorURL
	Icons []ActorIcon
}

// Dispatcher resolves a local identifier (produced by ParseLocalActor or
// MapUser) to its ActorDescriptor, or returns (nil, nil) if no such actor
// exists.
type Dispatcher func(ctx context.Context, identifier string) (*ActorDescriptor, error)

// ServerConfig configures Handler.
type ServerConfig struct {
	// Host is this server's own domain, used to recognize "acct:user@Host"
	// resources and to build the acct-form alias for actor-URL subjects.
	Host string
	// ParseLocalActor attempts to parse resource (an https URL) as one of
	// our own actor URLs via the router, returning the dispatch identifier.
	// A nil ParseLocalActor means this deployment only ever receives
	// acct: resources.
	ParseLocalActor func(resourceURL string) (identifier string, ok bool)
	// MapUser maps the local-part of an acct: resource to a dispatch
	// identifier. Defaults to the identity function.
	MapUser func(user string) string
	Dispatch Dispatcher
	// NotFound handles resources that don't resolve to a known actor.
	// Defaults to plain 404.
	NotFound http.HandlerFunc
}

func (c ServerConfig) mapUser(user string) string {
	if c.MapUser == nil {
		return user
	}
	return c.MapUser(user)
}

func (c ServerConfig) notFound(w http.ResponseWriter, r *http.Request) {
	if c.NotFound != nil {
		c.NotFound(w, r)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// Handler returns an http.HandlerFunc implementing handleWebFinger: parse
// the resource query parameter, resolve it to a local actor, and respond
// with a JRD, per spec.md §4.F and the S1 scenario vector.
func Handler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")
		if resource == "" {
			http.Error(w, "missing resource parameter", http.StatusBadRequest)
			return
		}

		identifier, aliasResource, ok := resolveIdentifier(cfg, resource)
		if !ok {
			http.Error(w, "invalid resource parameter", http.StatusBadRequest)
			return
		}

		actor, err := cfg.Dispatch(r.Context(), identifier)
		if err != nil {
			http.Error(w, fmt.Sprintf("dispatch error: %v", err), http.StatusInternalServerError)
			return
		}
		if actor == nil {
			cfg.notFound(w, r)
			return
		}

		jrd := buildJRD(resource, aliasResource, actor)

		w.Header().Set("Content-Type", "application/jrd+json")
		publicCORS.HandlerFunc(w, r)
		_ = json.NewEncoder(w).Encode(jrd)
	}
}

// resolveIdentifier determines the dispatch identifier for resource and
// the alternate-form resource string used to build the JRD's aliases
// entry. ok is false when resource is neither a locally-routable actor
// URL nor an acct: handle on cfg.Host.
func resolveIdentifier(cfg ServerConfig, resource string) (identifier, aliasResource string, ok bool) {
	if strings.HasPrefix(resource, "acct:") {
		acct := strings.TrimPrefix(resource, "acct:")
		parts := strings.SplitN(acct, "@", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[1], cfg.Host) {
			return "", "", false
		}
		return cfg.mapUser(parts[0]), "", true
	}

	if cfg.ParseLocalActor != nil {
		if id, ok := cfg.ParseLocalActor(resource); ok {
			return id, fmt.Sprintf("acct:%s@%s", id, cfg.Host), true
		}
	}
	return "", "", false
}

func buildJRD(resource, aliasResource string, actor *ActorDescriptor) JRD {
	links := []Link{{Rel: "self", Type: "application/activity+json", Href: actor.ID}}

	for _, u := range actor.URLs {
		rel := u.Rel
		if rel == "" {
			rel = profilePageRel
		}
		links = append(links, Link{Rel: rel, Type: u.Type, Href: u.Href})
	}
	for _, icon := range actor.Icons {
		links = append(links, Link{Rel: avatarRel, Type: icon.Type, Href: icon.Href})
	}

	var aliases []string
	if aliasResource != "" {
		aliases = append(aliases, aliasResource)
	} else {
		aliases = append(aliases, actor.ID)
	}

	return JRD{
		Subject: resource,
		Aliases: aliases,
		Links:   links,
	}
}
