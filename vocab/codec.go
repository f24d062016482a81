package vocab

import (
	"context"
	"fmt"
	"time"

	"github.com/piprate/json-gold/ld"
)

// Format selects the shape toJsonLd emits.
type Format int

const (
	// FormatAuto returns the cached original document when the entity was
	// decoded from JSON-LD, otherwise compact.
	FormatAuto Format = iota
	FormatExpand
	FormatCompact
)

// xsd datatype URIs used by scalar property encoders.
const (
	xsdString   = "http://www.w3.org/2001/XMLSchema#string"
	xsdBoolean  = "http://www.w3.org/2001/XMLSchema#boolean"
	xsdFloat    = "http://www.w3.org/2001/XMLSchema#double"
	xsdInteger  = "http://www.w3.org/2001/XMLSchema#nonNegativeInteger"
	xsdDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
)

// goldLoaderAdapter bridges our ContextLoader to json-gold's ld.DocumentLoader.
type goldLoaderAdapter struct {
	ctx context.Context
	cl  ContextLoader
}

func (a *goldLoaderAdapter) LoadDocument(u string) (*ld.RemoteDocument, error) {
	doc, err := a.cl.LoadContext(a.ctx, u)
	if err != nil {
		return nil, err
	}
	return &ld.RemoteDocument{DocumentURL: u, Document: doc}, nil
}

// ToJsonLd encodes e according to format. FormatAuto (the default when
// outputting a document) returns the cached original document verbatim
// when present, so unknown fields survive a decode/re-encode round-trip.
func ToJsonLd(ctx context.Context, e *Entity, format Format, jsonldContext interface{}, contextLoader ContextLoader) (interface{}, error) {
	if format == FormatAuto && e.original != nil {
		return e.original, nil
	}

	expanded, err := encodeExpanded(e, 0)
	if err != nil {
		return nil, err
	}
	expandedDoc := []interface{}{expanded}

	if format == FormatExpand {
		return expandedDoc, nil
	}

	// Compact (the default shape for a freshly constructed entity).
	if jsonldContext == nil {
		if s, ok := Registry[e.typeName]; ok && s.DefaultContext != nil {
			jsonldContext = toInterfaceContext(s.DefaultContext)
		} else {
			jsonldContext = ActivityStreamsNamespace
		}
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	if contextLoader != nil {
		opts.DocumentLoader = &goldLoaderAdapter{ctx: ctx, cl: contextLoader}
	}
	compacted, err := proc.Compact(expandedDoc, jsonldContext, opts)
	if err != nil {
		return nil, fmt.Errorf("vocab: compact %s: %w", e.typeName, err)
	}
	applyEmbedContext(compacted, e)
	return compacted, nil
}

func toInterfaceContext(ctx []interface{}) interface{} {
	if len(ctx) == 1 {
		return ctx[0]
	}
	return ctx
}

// applyEmbedContext post-processes a compacted document so nested values
// of properties flagged EmbedContext carry their own @context (the
// default context of the property's first range type), matching what
// specific fediverse implementations expect for inlined sub-objects.
func applyEmbedContext(compacted map[string]interface{}, e *Entity) {
	s, ok := Registry[e.typeName]
	if !ok {
		return
	}
	for _, p := range s.Properties {
		if !p.EmbedContext {
			continue
		}
		if v, ok := compacted[p.CompactName]; ok {
			if m, ok := v.(map[string]interface{}); ok {
				if _, has := m["@context"]; !has && len(p.Range) > 0 {
					if rs, ok := Registry[p.Range[0]]; ok && rs.DefaultContext != nil {
						m["@context"] = toInterfaceContext(rs.DefaultContext)
					}
				}
			}
		}
	}
}

// encodeExpanded builds the expanded JSON-LD node for e, recursing into
// nested entities and honoring container rules (list/graph) and redundant
// property aliases.
func encodeExpanded(e *Entity, depth int) (map[string]interface{}, error) {
	if depth > recursionLimit {
		return nil, fmt.Errorf("vocab: recursion depth exceeded encoding %s", e.typeName)
	}
	node := map[string]interface{}{}
	if e.id != nil {
		node["@id"] = e.id.String()
	}
	if uri := e.TypeURI(); uri != "" {
		node["@type"] = []interface{}{uri}
	}

	s, ok := Registry[e.typeName]
	if !ok {
		return node, nil
	}
	for chain := s; chain != nil; {
		for _, p := range chain.Properties {
			vs := e.all(p.URI)
			if len(vs) == 0 {
				continue
			}
			encoded, err := encodeValues(vs, p, depth)
			if err != nil {
				return nil, err
			}
			node[p.URI] = encoded
			for _, alt := range p.RedundantURIs {
				node[alt] = encoded
			}
		}
		if chain.Extends == "" {
			break
		}
		chain = Registry[chain.Extends]
	}
	return node, nil
}

func encodeValues(vs []Value, p PropertySchema, depth int) (interface{}, error) {
	items := make([]interface{}, 0, len(vs))
	for _, v := range vs {
		enc, err := encodeOneValue(v, depth)
		if err != nil {
			return nil, err
		}
		if p.Container == ContainerGraph {
			enc = map[string]interface{}{"@graph": []interface{}{enc}}
		}
		items = append(items, enc)
	}
	switch p.Container {
	case ContainerList:
		return []interface{}{map[string]interface{}{"@list": items}}, nil
	default:
		return items, nil
	}
}

func encodeOneValue(v Value, depth int) (interface{}, error) {
	switch t := v.(type) {
	case *URL:
		return map[string]interface{}{"@id": t.String()}, nil
	case *Entity:
		return encodeExpanded(t, depth+1)
	case entityLike:
		return encodeExpanded(t.entity(), depth+1)
	case string:
		return map[string]interface{}{"@value": t, "@type": xsdString}, nil
	case bool:
		return map[string]interface{}{"@value": t, "@type": xsdBoolean}, nil
	case float64:
		return map[string]interface{}{"@value": t, "@type": xsdFloat}, nil
	case int:
		return map[string]interface{}{"@value": t, "@type": xsdInteger}, nil
	case time.Time:
		return map[string]interface{}{"@value": t.UTC().Format(time.RFC3339), "@type": xsdDateTime}, nil
	default:
		return nil, fmt.Errorf("vocab: cannot encode value of type %T", v)
	}
}

// FromJsonLd decodes a JSON-LD document (or already-expanded node list)
// into the most specific subtype of want known to the registry.
// DocumentLoader/ContextLoader are attached to the result for subsequent
// lazy dereference and re-encoding.
func FromJsonLd(ctx context.Context, doc interface{}, want string, docLoader DocumentLoader, contextLoader ContextLoader) (*Entity, error) {
	if doc == nil {
		return nil, fmt.Errorf("vocab: cannot decode nil document")
	}

	original, _ := doc.(map[string]interface{})

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	if contextLoader != nil {
		opts.DocumentLoader = &goldLoaderAdapter{ctx: ctx, cl: contextLoader}
	}
	expanded, err := proc.Expand(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("vocab: expand document: %w", err)
	}
	if len(expanded) == 0 {
		return nil, fmt.Errorf("vocab: document expands to no nodes")
	}
	node, ok := expanded[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vocab: expanded document root is not an object")
	}

	e, err := decodeExpanded(node, want, docLoader, contextLoader, 0)
	if err != nil {
		return nil, err
	}
	if original != nil {
		e.setOriginal(original)
	}
	return e, nil
}

// decodeExpanded dispatches to the most specific registered subtype of
// want matching the node's @type, then populates properties from the
// schema chain (want's own properties plus every supertype's).
func decodeExpanded(node map[string]interface{}, want string, docLoader DocumentLoader, contextLoader ContextLoader, depth int) (*Entity, error) {
	if depth > recursionLimit {
		return nil, fmt.Errorf("vocab: recursion depth exceeded decoding document")
	}

	typeName := mostSpecificType(node, want)
	s, ok := Registry[typeName]
	if !ok {
		return nil, fmt.Errorf("vocab: unknown vocabulary type %q", typeName)
	}

	e := NewEntity(typeName)
	e.SetLoaders(docLoader, contextLoader)
	if idStr, ok := node["@id"].(string); ok && idStr != "" {
		u, err := ParseURL(idStr)
		if err == nil {
			e.SetID(u.href)
		}
	}

	for chain := s; chain != nil; {
		for _, p := range chain.Properties {
			if err := decodeProperty(e, node, p, docLoader, contextLoader, depth); err != nil {
				return nil, err
			}
		}
		if chain.Extends == "" {
			break
		}
		chain = Registry[chain.Extends]
	}
	return e, nil
}

func decodeProperty(e *Entity, node map[string]interface{}, p PropertySchema, docLoader DocumentLoader, contextLoader ContextLoader, depth int) error {
	raw, hasFunctional, hasPlural, err := readRawValues(node, p)
	if err != nil {
		return err
	}
	if hasFunctional && hasPlural {
		return &ErrFunctionalConflict{Property: p.CompactName}
	}
	if len(raw) == 0 {
		return nil
	}
	if p.Functional && len(raw) > 1 {
		return &ErrNotFunctional{Property: p.CompactName}
	}

	values := make([]Value, 0, len(raw))
	for _, item := range raw {
		v, err := decodeOneRaw(item, p, docLoader, contextLoader, depth)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	e.setPlural(p.URI, values)
	return nil
}

// readRawValues reads the raw expanded items for a property from its URI
// key and any redundant-alias URIs, unwrapping @list containers. An
// "@list"-wrapped entry is the plural-shaped form (an explicit ordered
// list); a bare entry is the singular-shaped form. Seeing both shapes for
// the same property means the document encodes it two incompatible ways
// at once, so hasFunctional/hasPlural are reported back for the caller to
// reject rather than silently merge.
func readRawValues(node map[string]interface{}, p PropertySchema) (items []interface{}, hasFunctional, hasPlural bool, err error) {
	collect := func(uri string) []interface{} {
		v, ok := node[uri]
		if !ok {
			return nil
		}
		arr, ok := v.([]interface{})
		if !ok {
			return nil
		}
		var out []interface{}
		for _, el := range arr {
			if m, ok := el.(map[string]interface{}); ok {
				if list, ok := m["@list"].([]interface{}); ok {
					hasPlural = true
					out = append(out, list...)
					continue
				}
			}
			hasFunctional = true
			out = append(out, el)
		}
		return out
	}

	items = collect(p.URI)
	for _, alt := range p.RedundantURIs {
		items = append(items, collect(alt)...)
	}
	return items, hasFunctional, hasPlural, nil
}

func decodeOneRaw(item interface{}, p PropertySchema, docLoader DocumentLoader, contextLoader ContextLoader, depth int) (Value, error) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vocab: unexpected shape for property %q", p.CompactName)
	}

	if val, hasValue := m["@value"]; hasValue {
		return decodeScalar(val, m["@type"])
	}

	idStr, _ := m["@id"].(string)
	_, hasType := m["@type"]
	if !hasType && len(m) <= 1 && idStr != "" {
		// A bare {"@id": ...} reference with no other expanded
		// properties: an unfetched remote object. Keep it lazy.
		u, err := ParseURL(idStr)
		if err != nil {
			return nil, err
		}
		return u, nil
	}

	if len(p.Range) == 0 {
		// No declared entity range: treat as an opaque reference.
		if idStr != "" {
			u, err := ParseURL(idStr)
			if err == nil {
				return u, nil
			}
		}
		return nil, fmt.Errorf("vocab: property %q has no entity range but value is not scalar", p.CompactName)
	}

	// Polymorphic: pick whichever range type is the most specific match,
	// defaulting to the first declared range entry.
	want := p.Range[0]
	nested, err := decodeExpanded(m, want, docLoader, contextLoader, depth+1)
	if err != nil {
		return nil, err
	}
	return nested, nil
}

func decodeScalar(val interface{}, typ interface{}) (Value, error) {
	typeURI, _ := typ.(string)
	switch typeURI {
	case xsdBoolean:
		if b, ok := val.(bool); ok {
			return b, nil
		}
	case xsdFloat, "http://www.w3.org/2001/XMLSchema#float", "http://www.w3.org/2001/XMLSchema#integer":
		if f, ok := val.(float64); ok {
			return f, nil
		}
	case xsdInteger:
		if f, ok := val.(float64); ok {
			return int(f), nil
		}
	case xsdDateTime:
		if s, ok := val.(string); ok {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("vocab: parse xsd:dateTime %q: %w", s, err)
			}
			return t, nil
		}
	}
	// Fall back by Go runtime type when no/unknown datatype is given
	// (json-gold defaults bare JSON strings/numbers/bools to xsd:string
	// for string literals but preserves native bool/float64 otherwise).
	switch t := val.(type) {
	case string:
		return t, nil
	case bool:
		return t, nil
	case float64:
		return t, nil
	default:
		return nil, fmt.Errorf("vocab: unsupported scalar literal %v (%T)", val, val)
	}
}

// mostSpecificType finds the registered subtype of want whose URI appears
// in the node's expanded @type array, preferring the deepest match.
func mostSpecificType(node map[string]interface{}, want string) string {
	types, _ := node["@type"].([]interface{})
	if len(types) == 0 {
		return want
	}
	typeURIs := make(map[string]bool, len(types))
	for _, t := range types {
		if s, ok := t.(string); ok {
			typeURIs[s] = true
		}
	}

	best := want
	bestDepth := -1
	for _, name := range Subtypes(Registry, want) {
		s := Registry[name]
		if s == nil || !typeURIs[s.URI] {
			continue
		}
		depth := 0
		for t := s.Extends; t != ""; t = Registry[t].Extends {
			depth++
		}
		if depth > bestDepth {
			best = name
			bestDepth = depth
		}
	}
	return best
}

// IsCompactable reports whether e and every nested value it owns belongs
// to a subset of the vocabulary that compacts deterministically against
// its type's default context, allowing callers to skip the full
// expand-then-compact round trip. The generated types in this package are
// all built from DefaultContext-bearing schemas with no ambiguous
// term reuse, so this is always true for values produced by this package;
// it returns false only for entities carrying a foreign cached original
// document, which must be returned verbatim instead.
func IsCompactable(e *Entity) bool {
	return e.original == nil
}
