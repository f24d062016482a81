package collection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestEngine_SummaryWithNoCursor(t *testing.T) {
	collID := mustURL(t, "https://example.com/users/alice/outbox")
	e := &Engine{
		CollectionID: collID,
		PageURL: func(cursor string) *url.URL {
			if cursor == "" {
				return mustURL(t, "https://example.com/users/alice/outbox?cursor=first")
			}
			return mustURL(t, "https://example.com/users/alice/outbox?cursor="+cursor)
		},
		Count: func(ctx context.Context) (int, error) { return 42, nil },
	}

	req := httptest.NewRequest(http.MethodGet, "/users/alice/outbox", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OrderedCollection", body["type"])
	assert.EqualValues(t, 42, body["totalItems"])
	assert.Equal(t, "https://example.com/users/alice/outbox?cursor=first", body["first"])
	assert.NotContains(t, body, "orderedItems")
}

func TestEngine_PageWithCursor(t *testing.T) {
	collID := mustURL(t, "https://example.com/users/alice/outbox")
	next := "p2"
	e := &Engine{
		CollectionID: collID,
		PageURL: func(cursor string) *url.URL {
			return mustURL(t, "https://example.com/users/alice/outbox?cursor="+cursor)
		},
		Dispatch: func(ctx context.Context, cursor *string) (Page, error) {
			require.Equal(t, "p1", *cursor)
			return Page{
				Items:      []*url.URL{mustURL(t, "https://example.com/notes/1"), mustURL(t, "https://example.com/notes/2")},
				NextCursor: &next,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users/alice/outbox?cursor=p1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OrderedCollectionPage", body["type"])
	assert.Equal(t, "https://example.com/users/alice/outbox", body["partOf"])
	assert.Equal(t, "https://example.com/users/alice/outbox?cursor=p2", body["next"])
	items, ok := body["orderedItems"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestEngine_AuthorizeRejectsWith401(t *testing.T) {
	e := &Engine{
		CollectionID: mustURL(t, "https://example.com/users/alice/followers"),
		PageURL:      func(cursor string) *url.URL { return mustURL(t, "https://example.com/x") },
		Authorize:    func(r *http.Request) bool { return false },
	}

	req := httptest.NewRequest(http.MethodGet, "/users/alice/followers", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEngine_CustomQueryParam(t *testing.T) {
	called := false
	e := &Engine{
		CollectionID: mustURL(t, "https://example.com/users/alice/outbox"),
		QueryParam:   "page",
		PageURL:      func(cursor string) *url.URL { return mustURL(t, "https://example.com/x?page="+cursor) },
		Dispatch: func(ctx context.Context, cursor *string) (Page, error) {
			called = true
			return Page{}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/users/alice/outbox?page=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.True(t, called)
}
