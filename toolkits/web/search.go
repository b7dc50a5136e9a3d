package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// BraveEndpoint is the Brave Search web search API.
const BraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// braveMaxCount is the largest page size the Brave API accepts.
const braveMaxCount = 20

// Result is one search hit.
type Result struct {
	URL         string
	Title       string
	Description string
}

// Searcher runs web searches for web_search.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string, n int) ([]Result, error)

func (f SearcherFunc) Search(ctx context.Context, query string, n int) ([]Result, error) {
	return f(ctx, query, n)
}

// Brave searches with the Brave Search API.
type Brave struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// BraveOption configures Brave.
type BraveOption func(*Brave)

// WithEndpoint overrides BraveEndpoint.
func WithEndpoint(endpoint string) BraveOption {
	return func(b *Brave) {
		b.endpoint = endpoint
	}
}

// WithBraveHTTPClient sets the HTTP client.
func WithBraveHTTPClient(c *http.Client) BraveOption {
	return func(b *Brave) {
		b.client = c
	}
}

// NewBrave creates a Brave searcher with the given subscription token.
func NewBrave(apiKey string, opts ...BraveOption) *Brave {
	b := &Brave{
		apiKey:   apiKey,
		endpoint: BraveEndpoint,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ Searcher = (*Brave)(nil)

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements Searcher. n is clamped to [1, 20].
func (b *Brave) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if b.apiKey == "" {
		return nil, errors.New("brave search: api key required")
	}
	n = min(max(n, 1), braveMaxCount)
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(n))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("brave search: status %d: %s", resp.StatusCode, body)
	}
	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("brave search: decode response: %w", err)
	}
	results := make([]Result, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		if len(results) == n {
			break
		}
		results = append(results, Result{URL: r.URL, Title: r.Title, Description: r.Description})
	}
	return results, nil
}
