// Package router implements component G: a minimal URI-Template router
// for federation endpoints ("/users/{handle}/inbox" and similar),
// built on github.com/yosida95/uritemplate/v3 rather than a hand-rolled
// path matcher.
package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/yosida95/uritemplate/v3"
)

// ErrCollision is returned by Register when a new template would match
// exactly the same set of paths as one already registered.
var ErrCollision = fmt.Errorf("router: template collides with an existing registration")

// ErrNoMatch is returned by Match when no registered template matches
// the given path.
var ErrNoMatch = fmt.Errorf("router: no template matches path")

type route struct {
	name     string
	raw      string
	template *uritemplate.Template
	pattern  *regexp.Regexp
	varNames []string
}

// Router matches request paths against a set of registered URI templates
// and builds paths from a template name plus variable values. Safe for
// concurrent use; Register is typically only called during startup.
type Router struct {
	mu     sync.RWMutex
	routes []*route
	byName map[string]*route
}

// New constructs an empty Router.
func New() *Router {
	return &Router{byName: make(map[string]*route)}
}

// Match is the result of a successful Match call.
type Match struct {
	Template string
	Vars     map[string]string
}

// Register adds a template (e.g. "/users/{handle}/inbox") under name. At
// most one variable is permitted per path segment; templates that would
// collide with an already-registered one (same literal/variable
// structure) are rejected at registration time rather than silently
// shadowed at match time.
func (r *Router) Register(name, tmpl string) error {
	parsed, err := uritemplate.New(tmpl)
	if err != nil {
		return fmt.Errorf("router: parse template %q: %w", tmpl, err)
	}
	if err := checkOneVarPerSegment(tmpl); err != nil {
		return err
	}
	pattern, err := parsed.Regexp()
	if err != nil {
		return fmt.Errorf("router: compile template %q: %w", tmpl, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("router: name %q already registered", name)
	}
	shape := normalizeShape(tmpl)
	for _, existing := range r.routes {
		if normalizeShape(existing.raw) == shape {
			return fmt.Errorf("%w: %q and %q", ErrCollision, name, existing.name)
		}
	}

	rt := &route{name: name, raw: tmpl, template: parsed, pattern: pattern, varNames: parsed.Varnames()}
	r.routes = append(r.routes, rt)
	r.byName[name] = rt
	return nil
}

// Match finds the registered template that matches path and extracts its
// variable bindings.
func (r *Router) Match(path string) (Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		m := rt.pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		vars := make(map[string]string, len(rt.varNames))
		for i, name := range rt.pattern.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			vars[name] = m[i]
		}
		return Match{Template: rt.name, Vars: vars}, nil
	}
	return Match{}, ErrNoMatch
}

// Build expands the named template with vars into a concrete path.
func (r *Router) Build(name string, vars map[string]string) (string, error) {
	r.mu.RLock()
	rt, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("router: unknown template %q", name)
	}

	values := uritemplate.Values{}
	for k, v := range vars {
		values.Set(k, uritemplate.String(v))
	}
	return rt.template.Expand(values)
}

// normalizeShape reduces a template to its structural shape — every
// {var} replaced with a fixed placeholder — so two templates that differ
// only in variable naming at the same positions are recognized as
// colliding (e.g. "/users/{handle}" and "/users/{id}").
func normalizeShape(tmpl string) string {
	var b strings.Builder
	inVar := false
	for _, r := range tmpl {
		switch {
		case r == '{':
			inVar = true
			b.WriteString("{}")
		case r == '}':
			inVar = false
		case inVar:
			// skip variable name characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// checkOneVarPerSegment enforces "at most one variable per position":
// no path segment may contain more than one {...} expression.
func checkOneVarPerSegment(tmpl string) error {
	for _, seg := range strings.Split(tmpl, "/") {
		if strings.Count(seg, "{") > 1 {
			return fmt.Errorf("router: template %q has more than one variable in a single path segment", tmpl)
		}
	}
	return nil
}

// Names returns all registered template names, sorted, for diagnostics.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
