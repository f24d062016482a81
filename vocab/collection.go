package vocab

import "net/url"

func init() {
	collectionProps := []PropertySchema{
		{Singular: "TotalItems", CompactName: "totalItems", URI: as2("totalItems"), Functional: true},
		{Singular: "Current", CompactName: "current", URI: as2("current"), Functional: true, Range: []string{"Object"}},
		{Singular: "First", CompactName: "first", URI: as2("first"), Functional: true, Range: []string{"Object"}},
		{Singular: "Last", CompactName: "last", URI: as2("last"), Functional: true, Range: []string{"Object"}},
		{Singular: "Items", Plural: "Items", CompactName: "items", URI: as2("items"), Range: []string{"Object"}},
	}
	register(&TypeSchema{Name: "Collection", URI: as2("Collection"), Extends: "Object", Entity: true, Properties: collectionProps})

	pageProps := append([]PropertySchema{
		{Singular: "PartOf", CompactName: "partOf", URI: as2("partOf"), Functional: true, Range: []string{"Object"}},
		{Singular: "Next", CompactName: "next", URI: as2("next"), Functional: true, Range: []string{"Object"}},
		{Singular: "Prev", CompactName: "prev", URI: as2("prev"), Functional: true, Range: []string{"Object"}},
		{Singular: "StartIndex", CompactName: "startIndex", URI: as2("startIndex"), Functional: true},
	}, collectionProps...)
	register(&TypeSchema{Name: "CollectionPage", URI: as2("CollectionPage"), Extends: "Collection", Entity: true, Properties: pageProps})

	orderedProps := []PropertySchema{
		{Singular: "OrderedItems", Plural: "OrderedItems", CompactName: "orderedItems", URI: as2("items"), Range: []string{"Object"}, Container: ContainerList},
	}
	register(&TypeSchema{Name: "OrderedCollection", URI: as2("OrderedCollection"), Extends: "Collection", Entity: true, Properties: orderedProps})
	register(&TypeSchema{Name: "OrderedCollectionPage", URI: as2("OrderedCollectionPage"), Extends: "CollectionPage", Entity: true, Properties: orderedProps})
}

// Collection is the shared wrapper for Collection/OrderedCollection and
// their paged counterparts, as produced by the collection engine
// (component H) for followers/following/outbox/liked/featured.
type Collection struct{ *Object }

func collectionWrap(typeName string) *Collection { return &Collection{&Object{NewEntity(typeName)}} }

func NewCollection() *Collection             { return collectionWrap("Collection") }
func NewOrderedCollection() *Collection      { return collectionWrap("OrderedCollection") }
func NewCollectionPage() *Collection         { return collectionWrap("CollectionPage") }
func NewOrderedCollectionPage() *Collection  { return collectionWrap("OrderedCollectionPage") }

func (c *Collection) GetTotalItems() (int, bool) {
	f, ok := scalarFloat(c.first(as2("totalItems")))
	return int(f), ok
}
func (c *Collection) SetTotalItems(n int) { c.setFunctional(as2("totalItems"), float64(n)) }

func (c *Collection) FirstId() *url.URL      { return idOf(c.first(as2("first"))) }
func (c *Collection) SetFirst(u *url.URL)    { c.setFunctional(as2("first"), NewURL(u)) }
func (c *Collection) LastId() *url.URL       { return idOf(c.first(as2("last"))) }
func (c *Collection) SetLast(u *url.URL)     { c.setFunctional(as2("last"), NewURL(u)) }
func (c *Collection) PartOfId() *url.URL     { return idOf(c.first(as2("partOf"))) }
func (c *Collection) SetPartOf(u *url.URL)   { c.setFunctional(as2("partOf"), NewURL(u)) }
func (c *Collection) NextId() *url.URL       { return idOf(c.first(as2("next"))) }
func (c *Collection) SetNext(u *url.URL)     { c.setFunctional(as2("next"), NewURL(u)) }
func (c *Collection) PrevId() *url.URL       { return idOf(c.first(as2("prev"))) }
func (c *Collection) SetPrev(u *url.URL)     { c.setFunctional(as2("prev"), NewURL(u)) }

func (c *Collection) GetStartIndex() (int, bool) {
	f, ok := scalarFloat(c.first(as2("startIndex")))
	return int(f), ok
}
func (c *Collection) SetStartIndex(n int) { c.setFunctional(as2("startIndex"), float64(n)) }

// AddItem appends an item to the unordered items list.
func (c *Collection) AddItem(u *url.URL) { c.appendPlural(as2("items"), NewURL(u)) }

// AddOrderedItem appends an item to the ordered (orderedItems) list, used
// by OrderedCollection/OrderedCollectionPage.
func (c *Collection) AddOrderedItem(u *url.URL) { c.appendPlural(as2("items"), NewURL(u)) }

func (c *Collection) ItemIds() []*url.URL { return idsOf(c.all(as2("items"))) }
