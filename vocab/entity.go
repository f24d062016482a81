package vocab

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// ContextLoader resolves a JSON-LD context URL to its document, used by the
// compaction/expansion algorithms.
type ContextLoader interface {
	LoadContext(ctx context.Context, url string) (map[string]interface{}, error)
}

// DocumentLoader resolves a remote object URL to its decoded JSON-LD
// document, used for lazy dereference of URL-valued properties.
type DocumentLoader interface {
	FetchDocument(ctx context.Context, url string) (map[string]interface{}, error)
}

// URL is an opaque reference to a remote object that has not (yet) been
// fetched. It stands in for any property value whose range includes an
// Entity type until GetProp/GetProps resolves it.
type URL struct {
	href *url.URL
}

// NewURL wraps a parsed URL as a lazy reference.
func NewURL(u *url.URL) *URL { return &URL{href: u} }

// ParseURL parses raw and wraps it as a lazy reference.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("vocab: parse URL %q: %w", raw, err)
	}
	return &URL{href: u}, nil
}

// String returns the absolute URL this reference points at.
func (u *URL) String() string {
	if u == nil || u.href == nil {
		return ""
	}
	return u.href.String()
}

// URL returns the underlying net/url.URL.
func (u *URL) URL() *url.URL { return u.href }

// Value is anything a property can hold: a scalar (string, bool, float64,
// time.Time, int), an *Entity, or an unresolved *URL.
type Value interface{}

// recursionLimit caps decode/encode recursion depth to defend against
// pathological JSON-LD inputs (self-referential or deeply nested documents).
const recursionLimit = 64

// Entity is the common representation for every vocabulary type: Objects,
// Links, Activities, Actors, Collections, and Keys. Concrete generated
// types (Person, Create, OrderedCollection, …) embed *Entity and add typed
// accessors over its property store.
type Entity struct {
	id       *url.URL
	typeName string // Go schema name, e.g. "Person"

	mu    sync.Mutex
	props map[string][]Value // keyed by property URI

	// original is the JSON-LD document this entity was decoded from, if
	// any. toJsonLd returns it verbatim when the caller requests no
	// specific format, so unknown/foreign fields survive a round-trip.
	original map[string]interface{}

	docLoader     DocumentLoader
	contextLoader ContextLoader
}

// NewEntity constructs an empty entity of the named schema type.
func NewEntity(typeName string) *Entity {
	return &Entity{typeName: typeName, props: make(map[string][]Value)}
}

// TypeName returns the Go schema type name this entity was constructed or
// decoded as (the most specific known subtype).
func (e *Entity) TypeName() string { return e.typeName }

// TypeURI returns the qualified @type URI for this entity's schema type.
func (e *Entity) TypeURI() string {
	if s, ok := Registry[e.typeName]; ok {
		return s.URI
	}
	return ""
}

// ID returns the entity's identity URL, or nil if it has none (a common
// case for freshly constructed, not-yet-assigned objects).
func (e *Entity) ID() *url.URL { return e.id }

// SetID sets the entity's identity URL.
func (e *Entity) SetID(u *url.URL) { e.id = u }

// SetLoaders attaches the document loader and context loader used for
// lazy dereference and compaction. Called by fromJsonLd after decode.
func (e *Entity) SetLoaders(docLoader DocumentLoader, contextLoader ContextLoader) {
	e.docLoader = docLoader
	e.contextLoader = contextLoader
}

// setOriginal caches the pre-expansion document this entity was decoded
// from, for lossless round-trip.
func (e *Entity) setOriginal(doc map[string]interface{}) { e.original = doc }

// ErrFunctionalConflict is returned when a decoded document supplies the
// same property both as a bare value and as an "@list".
type ErrFunctionalConflict struct{ Property string }

func (e *ErrFunctionalConflict) Error() string {
	return fmt.Sprintf("vocab: functional property %q supplied with both a single value and a plural list", e.Property)
}

// ErrNotFunctional is returned when a decoded document carries more than
// one value for a functional property.
type ErrNotFunctional struct{ Property string }

func (e *ErrNotFunctional) Error() string {
	return fmt.Sprintf("vocab: property %q is functional: at most one value may be set", e.Property)
}

// setFunctional stores a single value for a functional property,
// replacing any previous value; a nil value clears the property.
func (e *Entity) setFunctional(uri string, v Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v == nil {
		delete(e.props, uri)
		return
	}
	e.props[uri] = []Value{v}
}

// appendPlural appends a value to a plural property's ordered list.
func (e *Entity) appendPlural(uri string, v Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.props[uri] = append(e.props[uri], v)
}

// setPlural replaces a plural property's entire value list.
func (e *Entity) setPlural(uri string, vs []Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(vs) == 0 {
		delete(e.props, uri)
		return
	}
	e.props[uri] = vs
}

// first returns the first stored value for a property, or nil.
func (e *Entity) first(uri string) Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	vs := e.props[uri]
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

// all returns a copy of every stored value for a property.
func (e *Entity) all(uri string) []Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	vs := e.props[uri]
	out := make([]Value, len(vs))
	copy(out, vs)
	return out
}

// idOf extracts a *URL / *Entity's identity without triggering a fetch;
// backs the `<prop>Id(s)` accessor family.
func idOf(v Value) *url.URL {
	switch t := v.(type) {
	case *URL:
		return t.href
	case *Entity:
		return t.id
	case entityLike:
		return t.entity().id
	}
	return nil
}

// entityLike is implemented by every generated wrapper type so idOf/clone
// can reach the embedded *Entity generically.
type entityLike interface {
	entity() *Entity
}

// resolveOptions configures a lazy dereference call.
type resolveOptions struct {
	suppressError bool
}

// ResolveOption configures Get<Prop>/Get<Prop>s calls.
type ResolveOption func(*resolveOptions)

// SuppressError downgrades a fetch failure to a nil result instead of
// returning an error.
func SuppressError() ResolveOption {
	return func(o *resolveOptions) { o.suppressError = true }
}

// resolve fetches and memoizes the entity referenced by a *URL value,
// replacing it in place in the property store so subsequent calls are
// free. Safe for concurrent callers: the memoization is effectively a
// set-once that tolerates benign duplicate fetches.
func (e *Entity) resolve(ctx context.Context, uri string, index int, v Value, decode func(map[string]interface{}) (Value, error), opts ...ResolveOption) (Value, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	u, ok := v.(*URL)
	if !ok {
		// Already resolved (constructed directly, or resolved earlier).
		return v, nil
	}
	if e.docLoader == nil {
		if o.suppressError {
			return nil, nil
		}
		return nil, fmt.Errorf("vocab: no document loader configured to resolve %s", u.String())
	}
	doc, err := e.docLoader.FetchDocument(ctx, u.String())
	if err != nil {
		if o.suppressError {
			return nil, nil
		}
		return nil, fmt.Errorf("vocab: resolve %s: %w", u.String(), err)
	}
	resolved, err := decode(doc)
	if err != nil {
		if o.suppressError {
			return nil, nil
		}
		return nil, err
	}

	e.mu.Lock()
	if index >= 0 && index < len(e.props[uri]) {
		e.props[uri][index] = resolved
	}
	e.mu.Unlock()
	return resolved, nil
}

// Clone returns a deep-ish copy of the entity: the property map is copied
// (so mutation of the clone's functional/plural setters never affects the
// original) but nested Entity values are shared by reference, matching
// the "immutable aside from clone" lifecycle in the data model.
func (e *Entity) Clone() *Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := &Entity{
		id:            e.id,
		typeName:      e.typeName,
		props:         make(map[string][]Value, len(e.props)),
		docLoader:     e.docLoader,
		contextLoader: e.contextLoader,
	}
	for k, vs := range e.props {
		cp := make([]Value, len(vs))
		copy(cp, vs)
		out.props[k] = cp
	}
	if e.original != nil {
		out.original = e.original
	}
	return out
}
