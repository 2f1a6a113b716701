// Package openlibrary is a minimal client for the Open Library search
// API, used by the book_info skill to look up document metadata.
package openlibrary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/shelfagent/shelfagent/pkg/logger"
)

const (
	defaultBaseURL = "https://openlibrary.org"
	defaultTimeout = 15 * time.Second
	retryAttempts  = 3
)

// Book is the first matching record of a title search.
type Book struct {
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	FirstPublishYear int      `json:"firstPublishYear"`
	EditionCount     int      `json:"editionCount"`
	Key              string   `json:"key"`
}

// Client queries the Open Library search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates an Open Library client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		EditionCount     int      `json:"edition_count"`
	} `json:"docs"`
}

// Search queries for a title and returns the first matching record.
// A search with zero hits is an error so the caller gets a descriptive
// message rather than an empty struct.
func (c *Client) Search(ctx context.Context, title string) (*Book, error) {
	if title == "" {
		return nil, errors.New("title cannot be empty")
	}

	endpoint := c.baseURL + "/search.json?title=" + url.QueryEscape(title) + "&limit=1"

	var parsed searchResponse
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := errors.Errorf("unexpected status %d from Open Library", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return json.NewDecoder(resp.Body).Decode(&parsed)
		},
		retry.Attempts(retryAttempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("retrying Open Library request")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Open Library search failed")
	}

	if parsed.NumFound == 0 || len(parsed.Docs) == 0 {
		return nil, errors.Errorf("no records found for title %q", title)
	}

	doc := parsed.Docs[0]
	return &Book{
		Title:            doc.Title,
		Authors:          doc.AuthorName,
		FirstPublishYear: doc.FirstPublishYear,
		EditionCount:     doc.EditionCount,
		Key:              doc.Key,
	}, nil
}
