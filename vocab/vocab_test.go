package vocab

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetFunctional_LastWriteWins: a functional property holds exactly one
// value; re-setting it replaces the prior value rather than appending.
func TestSetFunctional_LastWriteWins(t *testing.T) {
	obj := NewObject()
	obj.SetName("first")
	obj.SetName("second")
	assert.Equal(t, "second", obj.GetName())
	assert.Len(t, obj.all(as2("name")), 1)
}

// TestSetFunctional_NilClears: setting a functional property to an
// explicit nil Value clears it, exercised directly against the
// lower-level Entity API.
func TestSetFunctional_NilClears(t *testing.T) {
	e := NewEntity("Object")
	e.setFunctional(as2("name"), "hello")
	assert.Equal(t, "hello", e.first(as2("name")))
	e.setFunctional(as2("name"), nil)
	assert.Nil(t, e.first(as2("name")))
}

// TestAppendPlural_PreservesOrder: a plural property accumulates values in
// the order appended.
func TestAppendPlural_PreservesOrder(t *testing.T) {
	obj := NewObject()
	obj.AddTo(mustParseURL(t, "https://example.com/a"))
	obj.AddTo(mustParseURL(t, "https://example.com/b"))
	ids := obj.ToIds()
	require.Len(t, ids, 2)
	assert.Equal(t, "https://example.com/a", ids[0].String())
	assert.Equal(t, "https://example.com/b", ids[1].String())
}

// TestDecodeProperty_RejectsMultipleValuesForFunctional: a document
// carrying more than one value for a functional property (e.g. "name")
// is rejected rather than silently picking the first.
func TestDecodeProperty_RejectsMultipleValuesForFunctional(t *testing.T) {
	doc := map[string]interface{}{
		"@type": []interface{}{as2("Object")},
		as2("name"): []interface{}{
			map[string]interface{}{"@value": "one", "@type": xsdString},
			map[string]interface{}{"@value": "two", "@type": xsdString},
		},
	}
	_, err := decodeExpanded(doc, "Object", nil, nil, 0)
	require.Error(t, err)
	var notFunctional *ErrNotFunctional
	assert.ErrorAs(t, err, &notFunctional)
}

// TestDecodeProperty_RejectsFunctionalConflict: a document carrying both
// a bare (singular-shaped) value and an "@list"-wrapped (plural-shaped)
// value for the same property is rejected rather than silently merged.
func TestDecodeProperty_RejectsFunctionalConflict(t *testing.T) {
	doc := map[string]interface{}{
		"@type": []interface{}{as2("Object")},
		as2("name"): []interface{}{
			map[string]interface{}{"@value": "solo", "@type": xsdString},
			map[string]interface{}{"@list": []interface{}{
				map[string]interface{}{"@value": "listed", "@type": xsdString},
			}},
		},
	}
	_, err := decodeExpanded(doc, "Object", nil, nil, 0)
	require.Error(t, err)
	var conflict *ErrFunctionalConflict
	assert.ErrorAs(t, err, &conflict)
}

// TestPlaceRoundTrip: a Place's scalar geo properties survive an
// encode-then-decode round trip through expanded JSON-LD.
func TestPlaceRoundTrip(t *testing.T) {
	p := NewPlace()
	p.SetID(mustParseURL(t, "https://example.com/places/1"))
	p.SetName("Checkpoint")
	p.SetLatitude(59.3293)
	p.SetLongitude(18.0686)
	p.SetRadius(50)
	p.SetUnits("m")

	ctx := context.Background()
	encoded, err := ToJsonLd(ctx, p.Entity, FormatExpand, nil, nil)
	require.NoError(t, err)

	docs, ok := encoded.([]interface{})
	require.True(t, ok)
	require.Len(t, docs, 1)
	node, ok := docs[0].(map[string]interface{})
	require.True(t, ok)

	decoded, err := decodeExpanded(node, "Place", nil, nil, 0)
	require.NoError(t, err)

	round := &Place{&Object{decoded}}
	assert.Equal(t, "https://example.com/places/1", round.ID().String())
	assert.Equal(t, "Checkpoint", round.GetName())
	lat, ok := round.GetLatitude()
	require.True(t, ok)
	assert.InDelta(t, 59.3293, lat, 0.0001)
	lon, ok := round.GetLongitude()
	require.True(t, ok)
	assert.InDelta(t, 18.0686, lon, 0.0001)
	radius, ok := round.GetRadius()
	require.True(t, ok)
	assert.InDelta(t, 50, radius, 0.0001)
	assert.Equal(t, "m", round.GetUnits())
}

// TestClone_IsIndependent: cloning an entity yields a value whose property
// mutations do not affect the original.
func TestClone_IsIndependent(t *testing.T) {
	obj := NewObject()
	obj.SetName("original")

	clone := obj.Entity.Clone()
	clone.setFunctional(as2("name"), "renamed")

	assert.Equal(t, "original", obj.GetName())
	assert.Equal(t, "renamed", scalarString(clone.first(as2("name"))))
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := ParseURL(raw)
	require.NoError(t, err)
	return u.href
}
