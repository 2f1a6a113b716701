package openlibrary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchReturnsFirstMatch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "Mastering Bitcoin", r.URL.Query().Get("title"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"numFound": 2,
			"docs": [
				{"key": "/works/OL1", "title": "Mastering Bitcoin", "author_name": ["Andreas M. Antonopoulos"], "first_publish_year": 2014, "edition_count": 5},
				{"key": "/works/OL2", "title": "Other", "author_name": ["Someone"], "first_publish_year": 2020, "edition_count": 1}
			]
		}`))
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	book, err := c.Search(context.Background(), "Mastering Bitcoin")
	require.NoError(t, err)

	assert.Equal(t, "Mastering Bitcoin", book.Title)
	assert.Equal(t, []string{"Andreas M. Antonopoulos"}, book.Authors)
	assert.Equal(t, 2014, book.FirstPublishYear)
	assert.Equal(t, 5, book.EditionCount)
	assert.Equal(t, "/works/OL1", book.Key)
	assert.Equal(t, 1, calls)
}

func TestSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"numFound": 0, "docs": []}`))
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	_, err := c.Search(context.Background(), "Nonexistent Book")
	assert.ErrorContains(t, err, "no records found")
}

func TestSearchRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"numFound": 1, "docs": [{"key": "/works/OL1", "title": "Found"}]}`))
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	book, err := c.Search(context.Background(), "Found")
	require.NoError(t, err)
	assert.Equal(t, "Found", book.Title)
	assert.Equal(t, 3, calls)
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	_, err := c.Search(context.Background(), "Anything")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestSearchEmptyTitle(t *testing.T) {
	c := NewClient()
	_, err := c.Search(context.Background(), "")
	assert.Error(t, err)
}
