package vocab

import (
	"context"
	"net/url"
	"time"
)

func init() {
	register(&TypeSchema{
		Name:           "Object",
		URI:            as2("Object"),
		Entity:         true,
		Description:    "The base ActivityStreams type most vocabulary entities inherit from.",
		DefaultContext: ActivityStreamsNamespace.([]interface{}),
		Properties: []PropertySchema{
			{Singular: "Name", Plural: "Names", CompactName: "name", URI: as2("name"), Functional: true},
			{Singular: "Summary", Plural: "Summaries", CompactName: "summary", URI: as2("summary"), Functional: true},
			{Singular: "Content", Plural: "Contents", CompactName: "content", URI: as2("content"), Functional: true},
			{Singular: "Published", CompactName: "published", URI: as2("published"), Functional: true},
			{Singular: "Updated", CompactName: "updated", URI: as2("updated"), Functional: true},
			{Singular: "StartTime", CompactName: "startTime", URI: as2("startTime"), Functional: true},
			{Singular: "EndTime", CompactName: "endTime", URI: as2("endTime"), Functional: true},
			{Singular: "URL", Plural: "URLs", CompactName: "url", URI: as2("url"), Range: []string{"Link"}},
			{Singular: "AttributedTo", Plural: "AttributedTos", CompactName: "attributedTo", URI: as2("attributedTo"), Range: []string{"Object"}},
			{Singular: "InReplyTo", Plural: "InReplyTos", CompactName: "inReplyTo", URI: as2("inReplyTo"), Range: []string{"Object"}},
			{Singular: "To", Plural: "Tos", CompactName: "to", URI: as2("to"), Range: []string{"Object"}},
			{Singular: "Cc", Plural: "Ccs", CompactName: "cc", URI: as2("cc"), Range: []string{"Object"}},
			{Singular: "Bto", Plural: "Btos", CompactName: "bto", URI: as2("bto"), Range: []string{"Object"}},
			{Singular: "Bcc", Plural: "Bccs", CompactName: "bcc", URI: as2("bcc"), Range: []string{"Object"}},
			{Singular: "Audience", Plural: "Audiences", CompactName: "audience", URI: as2("audience"), Range: []string{"Object"}},
			{Singular: "Tag", Plural: "Tags", CompactName: "tag", URI: as2("tag"), Range: []string{"Object"}},
			{Singular: "Icon", Plural: "Icons", CompactName: "icon", URI: as2("icon"), Range: []string{"Image"}, EmbedContext: false},
			{Singular: "Image", Plural: "Images", CompactName: "image", URI: as2("image"), Range: []string{"Image"}},
			{Singular: "Attachment", Plural: "Attachments", CompactName: "attachment", URI: as2("attachment"), Range: []string{"Object"}},
			{Singular: "MediaType", CompactName: "mediaType", URI: as2("mediaType"), Functional: true},
			{Singular: "Duration", CompactName: "duration", URI: as2("duration"), Functional: true},
			{Singular: "Sensitive", CompactName: "sensitive", URI: "http://joinmastodon.org/ns#sensitive", Functional: true},
		},
	})
	register(&TypeSchema{
		Name:           "Link",
		URI:            as2("Link"),
		Entity:         true,
		Description:    "A reference to a resource, with optional relation/media-type metadata.",
		DefaultContext: ActivityStreamsNamespace.([]interface{}),
		Properties: []PropertySchema{
			{Singular: "Href", CompactName: "href", URI: as2("href"), Functional: true},
			{Singular: "Rel", Plural: "Rels", CompactName: "rel", URI: as2("rel")},
			{Singular: "MediaType", CompactName: "mediaType", URI: as2("mediaType"), Functional: true},
			{Singular: "Name", CompactName: "name", URI: as2("name"), Functional: true},
			{Singular: "Height", CompactName: "height", URI: as2("height"), Functional: true},
			{Singular: "Width", CompactName: "width", URI: as2("width"), Functional: true},
		},
	})
	register(&TypeSchema{
		Name:    "Image",
		URI:     as2("Image"),
		Extends: "Object",
		Entity:  true,
	})
	register(&TypeSchema{
		Name:    "Note",
		URI:     as2("Note"),
		Extends: "Object",
		Entity:  true,
	})
	register(&TypeSchema{
		Name:    "Article",
		URI:     as2("Article"),
		Extends: "Object",
		Entity:  true,
	})
	register(&TypeSchema{
		Name:    "Document",
		URI:     as2("Document"),
		Extends: "Object",
		Entity:  true,
	})
	register(&TypeSchema{
		Name:    "Tombstone",
		URI:     as2("Tombstone"),
		Extends: "Object",
		Entity:  true,
		Properties: []PropertySchema{
			{Singular: "FormerType", CompactName: "formerType", URI: as2("formerType"), Functional: true},
			{Singular: "Deleted", CompactName: "deleted", URI: as2("deleted"), Functional: true},
		},
	})
}

// Object is the base ActivityStreams entity: every concrete vocabulary
// type other than Link embeds one.
type Object struct{ *Entity }

func (o *Object) entity() *Entity { return o.Entity }

// NewObject constructs an empty Object. Generated subtypes call this (or
// their own NewX) rather than NewEntity directly so TypeName always
// matches the Go wrapper.
func NewObject() *Object { return &Object{NewEntity("Object")} }

func (o *Object) GetName() string    { return scalarString(o.first(as2("name"))) }
func (o *Object) SetName(v string)   { o.setFunctional(as2("name"), v) }
func (o *Object) GetSummary() string { return scalarString(o.first(as2("summary"))) }
func (o *Object) SetSummary(v string) { o.setFunctional(as2("summary"), v) }
func (o *Object) GetContent() string  { return scalarString(o.first(as2("content"))) }
func (o *Object) SetContent(v string) { o.setFunctional(as2("content"), v) }
func (o *Object) IsSensitive() bool   { return scalarBool(o.first("http://joinmastodon.org/ns#sensitive")) }
func (o *Object) SetSensitive(v bool) { o.setFunctional("http://joinmastodon.org/ns#sensitive", v) }

func (o *Object) GetPublished() (time.Time, bool) { return scalarTime(o.first(as2("published"))) }
func (o *Object) SetPublished(t time.Time)         { o.setFunctional(as2("published"), t) }
func (o *Object) GetUpdated() (time.Time, bool)    { return scalarTime(o.first(as2("updated"))) }
func (o *Object) SetUpdated(t time.Time)           { o.setFunctional(as2("updated"), t) }

// AttributedToIds returns the attributedTo property's URLs without
// fetching any of the referenced objects.
func (o *Object) AttributedToIds() []*url.URL { return idsOf(o.all(as2("attributedTo"))) }

func (o *Object) ToIds() []*url.URL { return idsOf(o.all(as2("to"))) }
func (o *Object) AddTo(u *url.URL)  { o.appendPlural(as2("to"), NewURL(u)) }
func (o *Object) CcIds() []*url.URL { return idsOf(o.all(as2("cc"))) }
func (o *Object) AddCc(u *url.URL)  { o.appendPlural(as2("cc"), NewURL(u)) }
func (o *Object) AudienceIds() []*url.URL { return idsOf(o.all(as2("audience"))) }

// GetAttributedTo fetches (if necessary) and returns the attributed actor.
func (o *Object) GetAttributedTo(ctx context.Context, opts ...ResolveOption) (*Object, error) {
	vs := o.all(as2("attributedTo"))
	if len(vs) == 0 {
		return nil, nil
	}
	v, err := o.resolve(ctx, as2("attributedTo"), 0, vs[0], decodeAsObject, opts...)
	if err != nil || v == nil {
		return nil, err
	}
	return asObject(v), nil
}

func decodeAsObject(doc map[string]interface{}) (Value, error) {
	e, err := FromJsonLd(context.Background(), doc, "Object", nil, nil)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func asObject(v Value) *Object {
	if e, ok := v.(*Entity); ok {
		return &Object{e}
	}
	if o, ok := v.(entityLike); ok {
		return &Object{o.entity()}
	}
	return nil
}

// idsOf extracts identity URLs from a mixed slice of *URL/*Entity values
// without triggering any network fetch.
func idsOf(vs []Value) []*url.URL {
	out := make([]*url.URL, 0, len(vs))
	for _, v := range vs {
		if u := idOf(v); u != nil {
			out = append(out, u)
		}
	}
	return out
}

func scalarString(v Value) string {
	s, _ := v.(string)
	return s
}

func scalarBool(v Value) bool {
	b, _ := v.(bool)
	return b
}

func scalarFloat(v Value) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func scalarTime(v Value) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// Link is an ActivityStreams Link: a bare reference with relation/media
// metadata, as opposed to a fully dereferenced Object.
type Link struct{ *Entity }

func (l *Link) entity() *Entity { return l.Entity }
func NewLink() *Link            { return &Link{NewEntity("Link")} }

func (l *Link) GetHref() string { return scalarString(l.first(as2("href"))) }
func (l *Link) SetHref(v string) { l.setFunctional(as2("href"), v) }
func (l *Link) GetRel() []string {
	vs := l.all(as2("rel"))
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, scalarString(v))
	}
	return out
}
func (l *Link) AddRel(v string)      { l.appendPlural(as2("rel"), v) }
func (l *Link) GetMediaType() string { return scalarString(l.first(as2("mediaType"))) }
func (l *Link) SetMediaType(v string) { l.setFunctional(as2("mediaType"), v) }

// Image is an ActivityStreams Image document (used for actor icons/headers
// and Note attachments).
type Image struct{ *Object }

func NewImage() *Image { return &Image{&Object{NewEntity("Image")}} }

// Note is a short-form text object, the most common payload for Create
// activities in the fediverse.
type Note struct{ *Object }

func NewNote() *Note { return &Note{&Object{NewEntity("Note")}} }

// Article is a long-form text object.
type Article struct{ *Object }

func NewArticle() *Article { return &Article{&Object{NewEntity("Article")}} }

// Document is a generic media attachment object.
type Document struct{ *Object }

func NewDocument() *Document { return &Document{&Object{NewEntity("Document")}} }

// Tombstone replaces a deleted object at its former identity URL.
type Tombstone struct{ *Object }

func NewTombstone() *Tombstone { return &Tombstone{&Object{NewEntity("Tombstone")}} }

func (t *Tombstone) GetFormerType() string  { return scalarString(t.first(as2("formerType"))) }
func (t *Tombstone) SetFormerType(v string) { t.setFunctional(as2("formerType"), v) }
