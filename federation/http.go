package federation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/cors"

	"github.com/klppl/fedigo/collection"
	"github.com/klppl/fedigo/keyring"
	"github.com/klppl/fedigo/vocab"
)

const activityJSONType = "application/activity+json"

// publicCORS allows any origin to read actor, object, collection and
// NodeInfo documents — these are public discovery endpoints, the same
// posture the teacher's handlers applied via a hand-set wildcard header.
var publicCORS = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet},
})

// FetchOptions configures one Fetch call, per spec.md §4.K's
// fetch(request, {contextData, onNotFound, onNotAcceptable,
// onUnauthorized}).
type FetchOptions struct {
	ContextData     interface{}
	OnNotFound      http.HandlerFunc
	OnNotAcceptable http.HandlerFunc
	OnUnauthorized  http.HandlerFunc
}

func (o FetchOptions) notFound(w http.ResponseWriter, r *http.Request) {
	if o.OnNotFound != nil {
		o.OnNotFound(w, r)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (o FetchOptions) notAcceptable(w http.ResponseWriter, r *http.Request) {
	if o.OnNotAcceptable != nil {
		o.OnNotAcceptable(w, r)
		return
	}
	http.Error(w, "not acceptable", http.StatusNotAcceptable)
}

func (o FetchOptions) unauthorized(w http.ResponseWriter, r *http.Request) {
	if o.OnUnauthorized != nil {
		o.OnUnauthorized(w, r)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// acceptsActivityPub reports whether r's Accept header is compatible
// with an ActivityStreams response (AS2, JSON-LD, or the absence of a
// preference), per spec.md §4.K's content-negotiation requirement.
func acceptsActivityPub(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	for _, mt := range strings.Split(accept, ",") {
		mt = strings.TrimSpace(strings.SplitN(mt, ";", 2)[0])
		switch mt {
		case "*/*", activityJSONType, "application/ld+json", "application/json":
			return true
		}
	}
	return false
}

// Fetch is the single HTTP entry point spec.md §4.K describes: it
// matches the request path against the registered routes and dispatches
// to the corresponding actor, object, collection, inbox, or NodeInfo
// handler.
func (f *Federation) Fetch(w http.ResponseWriter, r *http.Request, opts FetchOptions) {
	match, err := f.Router.Match(r.URL.Path)
	if err != nil {
		opts.notFound(w, r)
		return
	}

	fctx, err := f.CreateContext(r, opts.ContextData)
	if err != nil {
		http.Error(w, "cannot build request context", http.StatusInternalServerError)
		return
	}

	switch {
	case match.Template == "actor":
		f.serveActor(w, r, fctx, match.Vars, opts)
	case match.Template == "inbox":
		f.inboxPipeline.Handler(match.Vars["identifier"]).ServeHTTP(w, r)
	case match.Template == "sharedInbox":
		f.inboxPipeline.Handler("").ServeHTTP(w, r)
	case match.Template == "nodeinfo":
		f.serveNodeInfo(w, r, fctx)
	case strings.HasPrefix(match.Template, "object:"):
		f.serveObject(w, r, fctx, match.Template, match.Vars, opts)
	case f.isCollectionRoute(match.Template):
		f.serveCollection(w, r, fctx, match.Template, match.Vars, opts)
	default:
		opts.notFound(w, r)
	}
}

func (f *Federation) isCollectionRoute(routeName string) bool {
	_, ok := f.collectionBindingFor(routeName)
	return ok
}

func (f *Federation) serveActor(w http.ResponseWriter, r *http.Request, fctx *Context, vars map[string]string, opts FetchOptions) {
	if !acceptsActivityPub(r) {
		opts.notAcceptable(w, r)
		return
	}
	binding, ok := f.actorBinding()
	if !ok {
		opts.notFound(w, r)
		return
	}

	identifier := vars["identifier"]
	if binding.authorize != nil && !binding.authorize(r, identifier) {
		opts.unauthorized(w, r)
		return
	}

	actor, err := binding.dispatch(fctx, identifier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if actor == nil {
		opts.notFound(w, r)
		return
	}

	if binding.keyPairsDispatcher != nil {
		keyPairs, err := binding.keyPairsDispatcher(fctx, identifier)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for i, kp := range keyPairs {
			if kp.Algorithm != keyring.RSASSAPKCS1v15 {
				continue
			}
			pemBytes, err := keyring.ExportSpki(kp.PublicKey)
			if err != nil {
				continue
			}
			key := vocab.NewCryptographicKey()
			keyID := actor.ID()
			if keyID != nil {
				frag := "#main-key"
				if i > 0 {
					frag = "#key-" + strconv.Itoa(i+1)
				}
				u := *keyID
				u.Fragment = strings.TrimPrefix(frag, "#")
				key.SetID(&u)
			}
			key.SetPublicKeyPem(string(pemBytes))
			if keyID != nil {
				key.SetOwnerURL(actor.ID().String())
			}
			actor.AddPublicKey(key)
		}
	}

	doc, err := vocab.ToJsonLd(fctx, actor.Entity, vocab.FormatCompact, vocab.ActivityStreamsNamespace, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	apResponse(w, r, doc)
}

func (f *Federation) serveObject(w http.ResponseWriter, r *http.Request, fctx *Context, routeName string, vars map[string]string, opts FetchOptions) {
	if !acceptsActivityPub(r) {
		opts.notAcceptable(w, r)
		return
	}
	binding, ok := f.objectBindingFor(routeName)
	if !ok {
		opts.notFound(w, r)
		return
	}
	if binding.authorize != nil && !binding.authorize(r, vars) {
		opts.unauthorized(w, r)
		return
	}

	obj, err := binding.dispatch(fctx, vars)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if obj == nil {
		opts.notFound(w, r)
		return
	}

	doc, err := vocab.ToJsonLd(fctx, obj.Entity, vocab.FormatCompact, vocab.ActivityStreamsNamespace, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	apResponse(w, r, doc)
}

func (f *Federation) serveCollection(w http.ResponseWriter, r *http.Request, fctx *Context, kind string, vars map[string]string, opts FetchOptions) {
	if !acceptsActivityPub(r) {
		opts.notAcceptable(w, r)
		return
	}
	binding, ok := f.collectionBindingFor(kind)
	if !ok {
		opts.notFound(w, r)
		return
	}
	identifier := vars["identifier"]

	collectionID, err := f.buildURL(kind, vars)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	eng := f.buildCollectionEngine(binding, fctx, identifier, collectionID, kind, vars)
	eng.ServeHTTP(w, r)
}

func cloneVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func (f *Federation) buildURL(routeName string, vars map[string]string) (*url.URL, error) {
	path, err := f.Router.Build(routeName, vars)
	if err != nil {
		return nil, err
	}
	u := *f.baseURL
	u.Path = path
	u.RawQuery = ""
	if cursor, ok := vars["cursor"]; ok && cursor != "" {
		q := url.Values{}
		q.Set("cursor", cursor)
		u.RawQuery = q.Encode()
	}
	return &u, nil
}

func (f *Federation) buildCollectionEngine(binding *collectionBinding, fctx *Context, identifier string, collectionID *url.URL, kind string, vars map[string]string) *collection.Engine {
	eng := &collection.Engine{
		CollectionID: collectionID,
		QueryParam:   "cursor",
		PageURL: func(cursor string) *url.URL {
			pageVars := cloneVars(vars)
			pageVars["cursor"] = cursor
			u, _ := f.buildURL(kind, pageVars)
			return u
		},
		Dispatch: func(ctx context.Context, cursor *string) (collection.Page, error) {
			return binding.dispatch(fctx, identifier, cursor)
		},
	}
	if binding.count != nil {
		eng.Count = func(ctx context.Context) (int, error) { return binding.count(fctx, identifier) }
	}
	if binding.firstCursor != nil {
		eng.FirstCursor = func(ctx context.Context) (string, error) { return binding.firstCursor(fctx, identifier) }
	}
	if binding.authorize != nil {
		eng.Authorize = func(r *http.Request) bool { return binding.authorize(r, identifier) }
	}
	return eng
}

func apResponse(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", activityJSONType)
	publicCORS.HandlerFunc(w, r)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("federation: failed to encode response", "error", err)
	}
}
