package federation

import (
	"context"
	"net/http"
	"net/url"

	"github.com/klppl/fedigo/webfinger"
)

// WebFingerHandler adapts the registered actor dispatcher into a
// webfinger.Handler, so an embedder can mount the result directly at
// "/.well-known/webfinger" instead of hand-rolling the ActorDescriptor
// translation.
func (f *Federation) WebFingerHandler(host string) http.HandlerFunc {
	return webfinger.Handler(webfinger.ServerConfig{
		Host:            host,
		ParseLocalActor: f.parseLocalActorURL,
		Dispatch:        f.dispatchWebFingerActor,
		MapUser:         f.mapWebFingerUser,
	})
}

// mapWebFingerUser applies the MapHandle callback, when one is
// registered, to an acct: local-part; without one the local-part is the
// dispatch identifier. A mapping error yields an empty identifier.
func (f *Federation) mapWebFingerUser(user string) string {
	binding, ok := f.actorBinding()
	if !ok || binding.mapHandle == nil {
		return user
	}
	fctx, err := f.CreateContext(f.baseURL, nil)
	if err != nil {
		return ""
	}
	id, err := binding.mapHandle(fctx, user)
	if err != nil {
		return ""
	}
	return id
}

func (f *Federation) parseLocalActorURL(resourceURL string) (string, bool) {
	u, err := url.Parse(resourceURL)
	if err != nil {
		return "", false
	}
	match, err := f.Router.Match(u.Path)
	if err != nil || match.Template != "actor" {
		return "", false
	}
	return match.Vars["identifier"], true
}

func (f *Federation) dispatchWebFingerActor(ctx context.Context, identifier string) (*webfinger.ActorDescriptor, error) {
	binding, ok := f.actorBinding()
	if !ok {
		return nil, nil
	}
	fctx, err := f.CreateContext(f.baseURL, nil)
	if err != nil {
		return nil, err
	}
	fctx.Context = ctx
	actor, err := binding.dispatch(fctx, identifier)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, nil
	}
	id := actor.ID()
	if id == nil {
		return nil, nil
	}
	return &webfinger.ActorDescriptor{ID: id.String()}, nil
}
