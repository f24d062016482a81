// Package vocab implements the ActivityStreams 2.0 / ActivityPub vocabulary:
// a family of typed entities that round-trip through JSON-LD in both
// compact and expanded form, with lazy remote dereferencing of linked
// objects.
//
// The entity types in this package (Object, Actor subtypes, Activity
// subtypes, Collections, …) each register a declarative TypeSchema
// alongside their handwritten Go accessors, so a future vocabulary
// addition only requires a new TypeSchema entry and matching wrapper
// type rather than touching the codec.
package vocab

import "fmt"

// Container describes how a plural property is wrapped when encoded as
// JSON-LD.
type Container int

const (
	// ContainerNone encodes a plural property as a plain JSON array.
	ContainerNone Container = iota
	// ContainerList preserves order via an explicit "@list" wrapper.
	ContainerList
	// ContainerGraph wraps each element in "@graph".
	ContainerGraph
)

// PropertySchema describes one property of a vocabulary type.
type PropertySchema struct {
	// Singular is the Go-facing singular accessor name, e.g. "Name".
	Singular string
	// Plural is the Go-facing plural accessor name, e.g. "Names". Empty if
	// the property has no plural form.
	Plural string
	// CompactName is the key written in compact JSON-LD, e.g. "name".
	CompactName string
	// URI is the fully qualified property URI.
	URI string
	// Range is the set of type URIs this property's values may hold. An
	// empty range means the property only ever holds scalars or raw URLs.
	Range []string
	// Functional properties hold at most one value.
	Functional bool
	Container  Container
	// RedundantURIs are alternative property URIs written and accepted for
	// interop with specific fediverse implementations (e.g. Mastodon's
	// "discoverable" alias).
	RedundantURIs []string
	// EmbedContext forces the nested object, when present, to carry its own
	// "@context" when the parent is compacted.
	EmbedContext bool
}

// TypeSchema describes one vocabulary type.
type TypeSchema struct {
	// Name is the Go type name, e.g. "Person".
	Name string
	// URI is the fully qualified type URI, e.g.
	// "https://www.w3.org/ns/activitystreams#Person".
	URI string
	// Extends names the Go type name of the single supertype, or "" for a
	// root type.
	Extends string
	// Entity is true for first-class resolvable entities (as opposed to
	// pure value types).
	Entity bool
	// Description documents the type for generated doc comments.
	Description string
	// DefaultContext is the exact JSON-LD @context structure toJsonLd
	// emits in compact mode unless the caller overrides it.
	DefaultContext []interface{}
	Properties     []PropertySchema
}

// Registry is the full set of known type schemas, keyed by Go type name.
var Registry = map[string]*TypeSchema{}

func register(s *TypeSchema) *TypeSchema {
	if _, dup := Registry[s.Name]; dup {
		panic(fmt.Sprintf("vocab: duplicate schema registration for %s", s.Name))
	}
	Registry[s.Name] = s
	return s
}

// TopoSort orders type names so that every supertype precedes its
// subtypes. Nothing in this package calls it; fromJsonLd's subtype
// dispatch uses Subtypes instead. Cycles in
// the extends graph are a hard error — the vocabulary is a tree by
// construction, so a cycle indicates a schema authoring mistake.
func TopoSort(reg map[string]*TypeSchema) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(reg))
	var order []string

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("vocab: cyclic extends graph: %v -> %s", stack, name)
		}
		color[name] = gray
		s, ok := reg[name]
		if !ok {
			return fmt.Errorf("vocab: schema %q extends unknown type", name)
		}
		if s.Extends != "" {
			if err := visit(s.Extends, append(stack, name)); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	// Deterministic iteration order keeps the result stable.
	sortStrings(names)
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// Subtypes returns the set of type names that are direct or transitive
// subtypes of root, including root itself. Used by fromJsonLd to find the
// most specific registered subtype matching an expanded @type.
func Subtypes(reg map[string]*TypeSchema, root string) []string {
	out := []string{root}
	for name, s := range reg {
		if name == root {
			continue
		}
		for t := s.Extends; t != ""; {
			if t == root {
				out = append(out, name)
				break
			}
			t = reg[t].Extends
		}
	}
	return out
}
