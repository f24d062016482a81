package docloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/klppl/fedigo/kv"
)

// Document is the result of a successful load: the final URL after any
// redirects, the @context URL if one was given via a Link header, and the
// decoded JSON-LD body.
type Document struct {
	DocumentURL string
	ContextURL  string
	Document    map[string]interface{}
}

// productUserAgent builds the deterministic User-Agent string: product
// name, version, and an optional caller-supplied prefix.
func productUserAgent(product, version, callerPrefix string) string {
	ua := fmt.Sprintf("%s/%s", product, version)
	if callerPrefix != "" {
		ua = callerPrefix + " " + ua
	}
	return ua
}

// Loader is the caching, SSRF-guarded JSON-LD document loader (component
// C). It layers an in-process gcache LRU in front of the embedder's
// durable kv.Store, and single-flights concurrent loads for the same URL
// so a thundering herd of inbound activities referencing the same remote
// actor triggers one fetch, not N (spec.md §5, a SHOULD not a MUST).
type Loader struct {
	store      kv.Store
	httpClient *http.Client
	rules      []TTLRule
	defaultTTL time.Duration
	userAgent  string

	l1    gcache.Cache
	flight singleflight.Group
}

// Config configures a new Loader.
type Config struct {
	Store      kv.Store
	HTTPClient *http.Client
	Rules      []TTLRule
	DefaultTTL time.Duration
	Product    string
	Version    string
	UAPrefix   string
	L1Size     int
}

// New constructs a Loader. A nil HTTPClient gets a 30s-timeout default
// per spec.md §5's outbound-call timeout requirement.
func New(cfg Config) *Loader {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.L1Size <= 0 {
		cfg.L1Size = 1024
	}
	if cfg.Product == "" {
		cfg.Product = "fedigo"
	}
	return &Loader{
		store:      cfg.Store,
		httpClient: cfg.HTTPClient,
		rules:      cfg.Rules,
		defaultTTL: cfg.DefaultTTL,
		userAgent:  productUserAgent(cfg.Product, cfg.Version, cfg.UAPrefix),
		l1:         gcache.New(cfg.L1Size).LRU().Build(),
	}
}

// Load fetches the JSON-LD document at rawURL, or returns it from cache.
// The cache key is the absolute URL. Before any network fetch, the
// hostname is checked against the SSRF guard.
func (l *Loader) Load(ctx context.Context, rawURL string, opts ...GuardOption) (*Document, error) {
	u, err := parseAndGuard(rawURL, opts...)
	if err != nil {
		return nil, err
	}
	if doc, err := l.peekCache(rawURL); err == nil {
		return doc, nil
	}

	v, err, _ := l.flight.Do(rawURL, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("docloader: build request: %w", err)
		}
		req.Header.Set("Accept", `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`)
		req.Header.Set("User-Agent", l.userAgent)
		return l.fetchAndCache(ctx, u, rawURL, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

func cacheKey(rawURL string) string { return "doc-cache/" + rawURL }

// parseAndGuard parses rawURL and runs the SSRF guard against its host.
func parseAndGuard(rawURL string, opts ...GuardOption) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("docloader: parse URL %q: %w", rawURL, err)
	}
	if err := CheckURL(u, opts...); err != nil {
		return nil, err
	}
	return u, nil
}

// peekCache returns the cached document for rawURL, trying the in-process
// L1 cache and then the durable store. The returned error is non-nil (and
// the document nil) on a cache miss; callers treat err == nil as a hit.
func (l *Loader) peekCache(rawURL string) (*Document, error) {
	if v, err := l.l1.Get(rawURL); err == nil {
		return v.(*Document), nil
	}
	if l.store != nil {
		if raw, ok, err := l.store.Get(context.Background(), cacheKey(rawURL)); err == nil && ok {
			entry, err := unmarshalEntry(raw)
			if err == nil && time.Now().Before(entry.ExpiresAt) {
				doc := &Document{DocumentURL: rawURL, ContextURL: entry.ContextURL, Document: entry.Document}
				l.l1.SetWithExpire(rawURL, doc, time.Minute)
				return doc, nil
			}
		}
	}
	return nil, fmt.Errorf("docloader: cache miss for %s", rawURL)
}

// fetchAndCache executes req (assumed already built and, for
// AuthorizedLoader, signed), decodes the JSON-LD body, and populates both
// cache tiers according to the TTL rules before returning the Document.
func (l *Loader) fetchAndCache(ctx context.Context, u *url.URL, rawURL string, req *http.Request) (*Document, error) {
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docloader: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docloader: fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("docloader: read body from %s: %w", rawURL, err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("docloader: decode JSON from %s: %w", rawURL, err)
	}

	doc := &Document{DocumentURL: resp.Request.URL.String(), Document: decoded}

	ttl := ttlFor(u, l.rules, l.defaultTTL)
	l.l1.SetWithExpire(rawURL, doc, maxDuration(ttl, time.Minute))
	if l.store != nil && ttl > 0 {
		entry := cacheEntry{Document: decoded, ContextURL: doc.ContextURL, ExpiresAt: time.Now().Add(ttl)}
		if raw, err := marshalEntry(entry); err == nil {
			_ = l.store.Set(ctx, cacheKey(rawURL), raw, ttl)
		}
	}
	return doc, nil
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// FetchDocument adapts Loader to vocab.DocumentLoader for lazy property
// dereference.
func (l *Loader) FetchDocument(ctx context.Context, u string) (map[string]interface{}, error) {
	doc, err := l.Load(ctx, u)
	if err != nil {
		return nil, err
	}
	return doc.Document, nil
}

// LoadContext adapts Loader to vocab.ContextLoader for JSON-LD @context
// resolution during compaction/expansion.
func (l *Loader) LoadContext(ctx context.Context, u string) (map[string]interface{}, error) {
	doc, err := l.Load(ctx, u)
	if err != nil {
		return nil, err
	}
	return doc.Document, nil
}
