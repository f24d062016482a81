package vocab

import (
	"context"
	"net/url"
)

func init() {
	activityProps := []PropertySchema{
		{Singular: "Actor", Plural: "Actors", CompactName: "actor", URI: as2("actor"), Range: []string{"Object"}},
		{Singular: "Object", Plural: "Objects", CompactName: "object", URI: as2("object"), Range: []string{"Object"}},
		{Singular: "Target", Plural: "Targets", CompactName: "target", URI: as2("target"), Range: []string{"Object"}},
		{Singular: "Origin", Plural: "Origins", CompactName: "origin", URI: as2("origin"), Range: []string{"Object"}},
		{Singular: "Instrument", Plural: "Instruments", CompactName: "instrument", URI: as2("instrument"), Range: []string{"Object"}},
		{Singular: "Result", Plural: "Results", CompactName: "result", URI: as2("result"), Range: []string{"Object"}},
	}

	register(&TypeSchema{Name: "Activity", URI: as2("Activity"), Extends: "Object", Entity: true, Properties: activityProps})

	for _, sub := range []string{
		"Create", "Update", "Delete", "Follow", "Accept", "Reject", "TentativeAccept",
		"TentativeReject", "Add", "Remove", "Like", "Announce", "Undo", "Block", "Flag",
		"Move", "Join", "Leave", "Invite", "Arrive", "Travel", "Question",
	} {
		register(&TypeSchema{Name: sub, URI: as2(sub), Extends: "Activity", Entity: true})
	}

	// Question additionally carries poll-option properties (reuses Object's
	// oneOf/anyOf/votersCount via its own schema rather than Activity's,
	// since a Question is also frequently encountered as a plain Object).
	Registry["Question"].Properties = append(Registry["Question"].Properties,
		PropertySchema{Singular: "OneOf", Plural: "OneOfs", CompactName: "oneOf", URI: as2("oneOf"), Range: []string{"Object"}},
		PropertySchema{Singular: "AnyOf", Plural: "AnyOfs", CompactName: "anyOf", URI: as2("anyOf"), Range: []string{"Object"}},
		PropertySchema{Singular: "Closed", CompactName: "closed", URI: as2("closed"), Functional: true},
	)
}

// Activity is the shared wrapper for Activity and every activity subtype
// (Create, Follow, Like, Undo, …). actor/object/target/origin/to/cc/bto/
// bcc/audience together define who performs the activity, on what, for
// whom, per spec.md §3.
type Activity struct{ *Object }

func activityWrap(typeName string) *Activity { return &Activity{&Object{NewEntity(typeName)}} }

func NewActivity() *Activity        { return activityWrap("Activity") }
func NewCreate() *Activity          { return activityWrap("Create") }
func NewUpdate() *Activity          { return activityWrap("Update") }
func NewDelete() *Activity          { return activityWrap("Delete") }
func NewFollow() *Activity          { return activityWrap("Follow") }
func NewAccept() *Activity          { return activityWrap("Accept") }
func NewReject() *Activity          { return activityWrap("Reject") }
func NewTentativeAccept() *Activity { return activityWrap("TentativeAccept") }
func NewTentativeReject() *Activity { return activityWrap("TentativeReject") }
func NewAdd() *Activity             { return activityWrap("Add") }
func NewRemove() *Activity          { return activityWrap("Remove") }
func NewLike() *Activity            { return activityWrap("Like") }
func NewAnnounce() *Activity        { return activityWrap("Announce") }
func NewUndo() *Activity            { return activityWrap("Undo") }
func NewBlock() *Activity           { return activityWrap("Block") }
func NewFlag() *Activity            { return activityWrap("Flag") }
func NewMove() *Activity            { return activityWrap("Move") }
func NewJoin() *Activity            { return activityWrap("Join") }
func NewLeave() *Activity           { return activityWrap("Leave") }
func NewInvite() *Activity          { return activityWrap("Invite") }
func NewQuestion() *Activity        { return activityWrap("Question") }

func (a *Activity) ActorIds() []*url.URL  { return idsOf(a.all(as2("actor"))) }
func (a *Activity) ObjectIds() []*url.URL { return idsOf(a.all(as2("object"))) }
func (a *Activity) TargetIds() []*url.URL { return idsOf(a.all(as2("target"))) }
func (a *Activity) OriginIds() []*url.URL { return idsOf(a.all(as2("origin"))) }

func (a *Activity) AddActor(u *url.URL)  { a.appendPlural(as2("actor"), NewURL(u)) }
func (a *Activity) SetObject(e *Object)  { a.setFunctional(as2("object"), e.Entity) }
func (a *Activity) AddObject(e *Object)  { a.appendPlural(as2("object"), e.Entity) }
func (a *Activity) SetTarget(u *url.URL) { a.setFunctional(as2("target"), NewURL(u)) }
func (a *Activity) SetOrigin(u *url.URL) { a.setFunctional(as2("origin"), NewURL(u)) }

// GetActor fetches (if necessary) and returns the first actor value.
func (a *Activity) GetActor(ctx context.Context, opts ...ResolveOption) (*Actor, error) {
	vs := a.all(as2("actor"))
	if len(vs) == 0 {
		return nil, nil
	}
	v, err := a.resolve(ctx, as2("actor"), 0, vs[0], decodeAsActor, opts...)
	if err != nil || v == nil {
		return nil, err
	}
	return asActor(v), nil
}

func decodeAsActor(doc map[string]interface{}) (Value, error) {
	e, err := FromJsonLd(context.Background(), doc, "Object", nil, nil)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func asActor(v Value) *Actor {
	if e, ok := v.(*Entity); ok {
		return &Actor{&Object{e}}
	}
	if o, ok := v.(entityLike); ok {
		return &Actor{&Object{o.entity()}}
	}
	return nil
}
