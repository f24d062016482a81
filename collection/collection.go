// Package collection implements component H: the collection/pagination
// engine that serves followers/following/outbox/liked-style endpoints as
// OrderedCollection summaries or OrderedCollectionPage pages, built on
// the vocab package's Collection wrapper.
package collection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/klppl/fedigo/vocab"
)

// Page is one page of items, as returned by a Dispatcher.
type Page struct {
	Items      []*url.URL
	NextCursor *string
	PrevCursor *string
	StartIndex *int
}

// Dispatcher returns the page of items starting at cursor. A nil cursor
// requests the first page.
type Dispatcher func(ctx context.Context, cursor *string) (Page, error)

// CounterDispatcher returns the collection's totalItems count.
type CounterDispatcher func(ctx context.Context) (int, error)

// FirstCursorDispatcher returns the cursor value identifying the first
// page, for collections whose first page isn't simply "no cursor".
type FirstCursorDispatcher func(ctx context.Context) (string, error)

// Engine serves a single federation collection endpoint.
type Engine struct {
	// CollectionID is this collection's own IRI (used as "partOf" on
	// pages and as the OrderedCollection's own id).
	CollectionID *url.URL
	// QueryParam names the cursor query parameter. Defaults to "cursor".
	QueryParam string
	// PageURL builds the IRI for the page addressed by cursor (empty
	// string means the first page).
	PageURL func(cursor string) *url.URL

	Dispatch    Dispatcher
	Count       CounterDispatcher
	FirstCursor FirstCursorDispatcher

	// Authorize gates the response; a false return sends 401. Nil means
	// the collection is open to anyone who can reach the endpoint.
	Authorize func(r *http.Request) bool
}

func (e *Engine) queryParam() string {
	if e.QueryParam == "" {
		return "cursor"
	}
	return e.QueryParam
}

// ServeHTTP renders the summary OrderedCollection (no cursor param) or an
// OrderedCollectionPage (cursor param present), per spec.md §4.H.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.Authorize != nil && !e.Authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	cursor := r.URL.Query().Get(e.queryParam())
	ctx := r.Context()

	var doc *vocab.Collection
	var err error
	if cursor == "" {
		doc, err = e.renderSummary(ctx)
	} else {
		doc, err = e.renderPage(ctx, cursor)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	expanded, err := vocab.ToJsonLd(ctx, doc.Entity, vocab.FormatCompact, vocab.ActivityStreamsNamespace, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/activity+json")
	_ = json.NewEncoder(w).Encode(expanded)
}

func (e *Engine) renderSummary(ctx context.Context) (*vocab.Collection, error) {
	c := vocab.NewOrderedCollection()
	c.SetID(e.CollectionID)

	firstCursor := ""
	if e.FirstCursor != nil {
		cur, err := e.FirstCursor(ctx)
		if err != nil {
			return nil, err
		}
		firstCursor = cur
	}
	c.SetFirst(e.PageURL(firstCursor))

	if e.Count != nil {
		total, err := e.Count(ctx)
		if err != nil {
			return nil, err
		}
		c.SetTotalItems(total)
	}
	return c, nil
}

func (e *Engine) renderPage(ctx context.Context, cursor string) (*vocab.Collection, error) {
	page, err := e.Dispatch(ctx, &cursor)
	if err != nil {
		return nil, err
	}

	c := vocab.NewOrderedCollectionPage()
	c.SetID(e.PageURL(cursor))
	c.SetPartOf(e.CollectionID)
	for _, item := range page.Items {
		c.AddOrderedItem(item)
	}
	if page.NextCursor != nil {
		c.SetNext(e.PageURL(*page.NextCursor))
	}
	if page.PrevCursor != nil {
		c.SetPrev(e.PageURL(*page.PrevCursor))
	}
	if page.StartIndex != nil {
		c.SetStartIndex(*page.StartIndex)
	}
	return c, nil
}
