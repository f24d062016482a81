// Package inbox implements component I: accepting POSTed activities,
// verifying their authenticity, deduplicating re-deliveries, and
// dispatching to a registered listener by the activity's runtime class.
package inbox

import (
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/klppl/fedigo/docloader"
	"github.com/klppl/fedigo/httpsig"
	"github.com/klppl/fedigo/kv"
	"github.com/klppl/fedigo/ldsig"
	"github.com/klppl/fedigo/vocab"
)

// maxBodyBytes bounds the inbox POST body the pipeline will read before
// giving up, so a misbehaving or hostile sender can't exhaust memory.
const maxBodyBytes = 1 << 20

// DefaultDedupTTL is the default re-delivery suppression window; spec requires
// at least 24h.
const DefaultDedupTTL = 24 * time.Hour

// ActivityContext is passed to a Listener, carrying what it needs to
// react to an inbox delivery: which inbox received it, and the shared
// document loader for dereferencing linked objects.
type ActivityContext struct {
	Context         context.Context
	InboxIdentifier string // empty string for the shared inbox
	DocumentLoader  *docloader.Loader
}

// Listener handles one verified, deduplicated activity delivered to an
// inbox.
type Listener func(actx *ActivityContext, activity *vocab.Activity) error

// ErrorHandler is invoked when a Listener returns an error. A true
// result tells the pipeline to report a 5xx (asking the sender to
// retry); false keeps the HTTP response at 202 per spec.md §4.I step 5.
type ErrorHandler func(actx *ActivityContext, activity *vocab.Activity, cause error) (retry bool)

// HTTPSigKeyFetcher resolves the crypto.PublicKey named by an HTTP
// Signature's keyId, for component D verification.
type HTTPSigKeyFetcher func(ctx context.Context, keyID string) (crypto.PublicKey, error)

// LegacyKeyFetcher resolves the RSA public key belonging to a legacy LD
// Signature's "creator".
type LegacyKeyFetcher func(ctx context.Context, creator string) (*rsa.PublicKey, error)

// Pipeline wires the verification chain, dedup store, and registered
// listeners for one or more inbox endpoints (personal and shared).
type Pipeline struct {
	// Dedup stores "inbox-dedup/<activityId>" entries. Required for the
	// re-delivery-suppression guarantee; a nil store disables dedup.
	Dedup    kv.Store
	DedupTTL time.Duration

	DocumentLoader *docloader.Loader

	// ResolveProofKey, ResolveLegacyKey and ResolveHTTPSigKey back the
	// three verification methods tried in priority order (Integrity
	// Proof, LD Signature, HTTP Signature). A nil fetcher simply skips
	// that method rather than erroring.
	ResolveProofKey   ldsig.KeyResolver
	ResolveLegacyKey  LegacyKeyFetcher
	ResolveHTTPSigKey HTTPSigKeyFetcher

	OnError ErrorHandler

	mu        sync.RWMutex
	listeners map[string]Listener

	sem     chan struct{}
	origins *originLimiter
}

// NewPipeline constructs an empty Pipeline with the default dedup TTL and
// the default inbox concurrency caps (maxConcurrentActivities global,
// maxPerOriginConcurrency per origin).
func NewPipeline() *Pipeline {
	return &Pipeline{
		DedupTTL:  DefaultDedupTTL,
		listeners: make(map[string]Listener),
		sem:       make(chan struct{}, maxConcurrentActivities),
		origins:   newOriginLimiter(),
	}
}

// On registers listener for activityType (e.g. "Follow", "Create"). Re-
// registering the same type replaces the previous listener.
func (p *Pipeline) On(activityType string, listener Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[activityType] = listener
}

func (p *Pipeline) dedupTTL() time.Duration {
	if p.DedupTTL <= 0 {
		return DefaultDedupTTL
	}
	return p.DedupTTL
}

// limiters lazily initializes the concurrency caps for a Pipeline built as
// a bare struct literal rather than via NewPipeline.
func (p *Pipeline) limiters() (chan struct{}, *originLimiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sem == nil {
		p.sem = make(chan struct{}, maxConcurrentActivities)
	}
	if p.origins == nil {
		p.origins = newOriginLimiter()
	}
	return p.sem, p.origins
}

// Handler returns an http.HandlerFunc for one inbox endpoint. identifier
// is the local actor handle for a personal inbox, or "" for the shared
// inbox; it is threaded through to listeners via ActivityContext.
func (p *Pipeline) Handler(identifier string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.serve(w, r, identifier)
	}
}

func (p *Pipeline) serve(w http.ResponseWriter, r *http.Request, identifier string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "body too large", http.StatusBadRequest)
		return
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		http.Error(w, "malformed JSON-LD", http.StatusBadRequest)
		return
	}

	sem, origins := p.limiters()
	origin := actorOrigin(doc, r.RemoteAddr)
	if !origins.acquire(origin) {
		slog.Warn("inbox: per-origin concurrency limit exceeded", "origin", origin)
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	select {
	case sem <- struct{}{}:
	default:
		origins.release(origin)
		slog.Warn("inbox: global inbox concurrency limit exceeded", "remote", r.RemoteAddr)
		http.Error(w, "too many requests", http.StatusServiceUnavailable)
		return
	}
	defer func() { <-sem }()
	defer origins.release(origin)

	ctx := r.Context()
	if err := p.verify(ctx, r, body, doc); err != nil {
		slog.Debug("inbox: verification failed", "error", err)
		http.Error(w, "verification failed", http.StatusUnauthorized)
		return
	}

	activityID, _ := doc["id"].(string)
	if activityID == "" {
		http.Error(w, "activity has no id", http.StatusBadRequest)
		return
	}

	if p.Dedup != nil {
		dedupKey := "inbox-dedup/" + activityID
		if _, seen, err := p.Dedup.Get(ctx, dedupKey); err == nil && seen {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		record, _ := json.Marshal(map[string]interface{}{"receivedAt": time.Now().UTC().Format(time.RFC3339)})
		if err := p.Dedup.Set(ctx, dedupKey, record, p.dedupTTL()); err != nil {
			slog.Warn("inbox: failed to record dedup entry", "activity", activityID, "error", err)
		}
	}

	var docLoader vocab.DocumentLoader
	var ctxLoader vocab.ContextLoader
	if p.DocumentLoader != nil {
		docLoader, ctxLoader = p.DocumentLoader, p.DocumentLoader
	}
	entity, err := vocab.FromJsonLd(ctx, doc, "Activity", docLoader, ctxLoader)
	if err != nil {
		http.Error(w, "cannot decode activity", http.StatusBadRequest)
		return
	}
	activity := &vocab.Activity{Object: &vocab.Object{Entity: entity}}

	listener, ok := p.resolveListener(entity.TypeName())
	if !ok {
		slog.Debug("inbox: no listener registered", "type", entity.TypeName(), "id", activityID)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	actx := &ActivityContext{Context: ctx, InboxIdentifier: identifier, DocumentLoader: p.DocumentLoader}
	if err := p.invoke(actx, activity, listener); err != nil {
		slog.Error("inbox: listener failed", "type", entity.TypeName(), "id", activityID, "error", err)
		retry := false
		if p.OnError != nil {
			retry = p.OnError(actx, activity, err)
		}
		if retry {
			http.Error(w, "retry", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

// resolveListener walks from typeName up its Extends chain in
// vocab.Registry, returning the first registered listener — an exact
// match or the nearest registered supertype.
func (p *Pipeline) resolveListener(typeName string) (Listener, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for t := typeName; t != ""; {
		if l, ok := p.listeners[t]; ok {
			return l, true
		}
		s, ok := vocab.Registry[t]
		if !ok {
			break
		}
		t = s.Extends
	}
	return nil, false
}

func (p *Pipeline) invoke(actx *ActivityContext, activity *vocab.Activity, listener Listener) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("inbox: listener panicked: %v", rec)
		}
	}()
	return listener(actx, activity)
}

// verify tries, in order, Integrity Proof, LD Signature, and HTTP
// Signature, per spec.md §4.I step 2. It succeeds as soon as one method
// verifies.
func (p *Pipeline) verify(ctx context.Context, r *http.Request, body []byte, doc map[string]interface{}) error {
	var errs []error

	if p.ResolveProofKey != nil {
		if _, exists := doc["proof"]; exists {
			if _, err := ldsig.VerifyObject(ctx, doc, p.ResolveProofKey); err == nil {
				return nil
			} else {
				errs = append(errs, err)
			}
		}
	}

	if p.ResolveLegacyKey != nil {
		if sigNode, exists := doc["signature"].(map[string]interface{}); exists {
			sigBytes, _ := json.Marshal(sigNode)
			var sig ldsig.LegacySignature
			if err := json.Unmarshal(sigBytes, &sig); err == nil {
				pub, err := p.ResolveLegacyKey(ctx, sig.Creator)
				if err != nil {
					errs = append(errs, err)
				} else if err := ldsig.VerifyLegacySignature(doc, sig, pub); err == nil {
					return nil
				} else {
					errs = append(errs, err)
				}
			}
		}
	}

	if p.ResolveHTTPSigKey != nil {
		if r.Header.Get("Signature") != "" {
			if _, err := httpsig.VerifyRequest(ctx, r, body, httpsig.KeyFetcher(p.ResolveHTTPSigKey)); err == nil {
				return nil
			} else if errors.Is(err, httpsig.ErrActorGone) && isDeleteActivity(doc) {
				// The signing actor is already gone, so its key can never be
				// fetched to check this signature. Only a Delete for that
				// actor is let through unsigned; any other activity type
				// still fails verification.
				return nil
			} else {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) == 0 {
		return fmt.Errorf("inbox: activity carries no recognized authenticity proof")
	}
	return fmt.Errorf("inbox: no verification method succeeded: %w", errs[0])
}

// isDeleteActivity reports whether doc's "type" names or includes "Delete",
// handling both the compacted single-string form and the JSON-LD array
// form.
func isDeleteActivity(doc map[string]interface{}) bool {
	switch t := doc["type"].(type) {
	case string:
		return t == "Delete"
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "Delete" {
				return true
			}
		}
	}
	return false
}
