package docloader

import (
	"encoding/json"
	"net/url"
	"regexp"
	"time"
)

// TTLRule maps a URL pattern to a cache TTL. The first matching rule in
// the list wins; if no rule matches, defaultTTL applies except for
// loopback hosts, which get a zero TTL regardless of rules (spec.md
// §4.C). A zero TTL keeps a document out of the durable store; the
// loader's in-process cache still holds it for one minute.
type TTLRule struct {
	Pattern *regexp.Regexp
	TTL     time.Duration
}

// NewTTLRule compiles a glob-ish regexp pattern (anchored automatically)
// into a TTLRule.
func NewTTLRule(pattern string, ttl time.Duration) TTLRule {
	return TTLRule{Pattern: regexp.MustCompile(pattern), TTL: ttl}
}

// cacheEntry is the JSON representation persisted under "doc-cache/<url>".
type cacheEntry struct {
	Document    map[string]interface{} `json:"document"`
	ContextURL  string                  `json:"contextUrl,omitempty"`
	ExpiresAt   time.Time               `json:"expiresAt"`
}

func isLoopbackHost(u *url.URL) bool {
	h := u.Hostname()
	return h == "localhost" || h == "127.0.0.1" || h == "::1"
}

// ttlFor resolves the TTL to use for u: loopback hosts always get zero
// TTL; otherwise the first matching rule wins, falling back to
// defaultTTL.
func ttlFor(u *url.URL, rules []TTLRule, defaultTTL time.Duration) time.Duration {
	if isLoopbackHost(u) {
		return 0
	}
	for _, r := range rules {
		if r.Pattern.MatchString(u.String()) {
			return r.TTL
		}
	}
	return defaultTTL
}

func marshalEntry(e cacheEntry) ([]byte, error) { return json.Marshal(e) }

func unmarshalEntry(b []byte) (cacheEntry, error) {
	var e cacheEntry
	err := json.Unmarshal(b, &e)
	return e, err
}
