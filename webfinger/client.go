package webfinger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/klppl/fedigo/docloader"
)

// maxRedirects bounds the manual redirect-following loop in Lookup; a
// chain longer than this is treated as a failure rather than followed
// indefinitely.
const maxRedirects = 5

// Config configures Lookup.
type Config struct {
	HTTPClient          *http.Client
	AllowPrivateAddress bool
}

// host extracts the host a resource identifier resolves WebFinger
// requests against: the domain half of an "acct:user@host" identifier, or
// the hostname of an https URL.
func host(resource string) (string, error) {
	if strings.HasPrefix(resource, "acct:") {
		acct := strings.TrimPrefix(resource, "acct:")
		parts := strings.SplitN(acct, "@", 2)
		if len(parts) != 2 || parts[1] == "" {
			return "", fmt.Errorf("webfinger: invalid acct resource %q", resource)
		}
		return parts[1], nil
	}
	u, err := url.Parse(resource)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("webfinger: invalid resource %q", resource)
	}
	return u.Host, nil
}

// Lookup resolves resource ("acct:user@host" or an https URL identifying
// the subject) via WebFinger, returning the parsed JRD. Any failure —
// network error, non-200 status, malformed JSON, blocked private address,
// or a redirect chain exceeding maxRedirects — returns a nil JRD and a
// non-nil error; callers implementing spec.md's "return null on any
// failure class" contract should treat any error as "not found".
func Lookup(ctx context.Context, resource string, cfg Config) (*JRD, error) {
	h, err := host(resource)
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	target := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s", h, url.QueryEscape(resource))

	var opts []docloader.GuardOption
	if cfg.AllowPrivateAddress {
		opts = append(opts, docloader.AllowPrivateAddress())
	}

	for redirects := 0; ; redirects++ {
		if redirects > maxRedirects {
			return nil, fmt.Errorf("webfinger: exceeded %d redirects resolving %s", maxRedirects, resource)
		}

		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("webfinger: parse target %q: %w", target, err)
		}
		if u.Scheme != "https" {
			return nil, fmt.Errorf("webfinger: refusing protocol downgrade to %q", u.Scheme)
		}
		if err := docloader.CheckURL(u, opts...); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("webfinger: build request: %w", err)
		}
		req.Header.Set("Accept", "application/jrd+json")

		resp, err := noRedirectDo(client, req)
		if err != nil {
			return nil, fmt.Errorf("webfinger: fetch %s: %w", target, err)
		}

		if loc := resp.redirectLocation; loc != "" {
			resp.body.Close()
			next, err := url.Parse(loc)
			if err != nil {
				return nil, fmt.Errorf("webfinger: invalid redirect location %q: %w", loc, err)
			}
			if !next.IsAbs() {
				base, _ := url.Parse(target)
				next = base.ResolveReference(next)
			}
			target = next.String()
			continue
		}

		defer resp.body.Close()
		if resp.statusCode != http.StatusOK {
			return nil, fmt.Errorf("webfinger: %s returned HTTP %d", target, resp.statusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("webfinger: read body from %s: %w", target, err)
		}
		var jrd JRD
		if err := json.Unmarshal(body, &jrd); err != nil {
			return nil, fmt.Errorf("webfinger: decode JRD from %s: %w", target, err)
		}
		return &jrd, nil
	}
}

// redirectResult carries either a body to read or a Location to follow
// next, since we disable the http.Client's automatic redirect following
// (it would re-resolve relative to Go's redirect policy, not ours, and
// would not re-run the SSRF guard per hop).
type redirectResult struct {
	statusCode       int
	redirectLocation string
	body             io.ReadCloser
}

func noRedirectDo(client *http.Client, req *http.Request) (*redirectResult, error) {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		resp.Body.Close()
		return &redirectResult{statusCode: resp.StatusCode, redirectLocation: loc, body: http.NoBody}, nil
	}
	return &redirectResult{statusCode: resp.StatusCode, body: resp.Body}, nil
}
