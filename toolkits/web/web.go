// Package web provides the web_scrape and web_search tools.
//
// web_scrape fetches a page and returns it as a URL/Title header followed by the body
// converted to markdown (text and links only). PDF documents are returned as plain text.
// web_search delegates to a Searcher; Brave implements it over the Brave Search API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skosovsky/agentry"
)

const (
	defaultMaxBodyBytes = 5 << 20
	defaultHTTPTimeout  = 30 * time.Second
	userAgent           = "agentry-web/1.0"
)

// ErrUnsupportedContent is returned by web_scrape for content types other than HTML and PDF.
var ErrUnsupportedContent = errors.New("content type not supported")

type options struct {
	client       *http.Client
	logger       *slog.Logger
	maxBodyBytes int64
}

// Option configures the tools in this package.
type Option func(*options)

// WithHTTPClient sets the HTTP client used to fetch pages.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMaxBodyBytes caps how much of a response body is read. Defaults to 5 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		o.maxBodyBytes = n
	}
}

func applyOptions(opts []Option) options {
	o := options{
		client:       &http.Client{Timeout: defaultHTTPTimeout},
		logger:       slog.Default(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ScrapeArgs are the arguments of web_scrape.
type ScrapeArgs struct {
	URL string `json:"url" description:"The URL to visit."`
}

// SearchArgs are the arguments of web_search.
type SearchArgs struct {
	Query      string `json:"query" description:"The query to search for. Do not pass a URL to this function!"`
	NumResults int    `json:"num_results" description:"The number of results to retrieve."`
}

// ScrapeTool returns web_scrape.
func ScrapeTool(opts ...Option) (agentry.Tool, error) {
	s := NewScraper(opts...)
	return agentry.NewTool("web_scrape",
		"Visit the given URL and return the content. The content will contain only text and links. Other media like images, videos, and audio will be omitted.",
		func(ctx context.Context, args ScrapeArgs) (string, error) {
			return s.Scrape(ctx, args.URL)
		},
		agentry.WithTags("web", "network"))
}

// SearchTool returns web_search backed by searcher.
func SearchTool(searcher Searcher, opts ...Option) (agentry.Tool, error) {
	if searcher == nil {
		return nil, errors.New("web: nil searcher")
	}
	o := applyOptions(opts)
	return agentry.NewTool("web_search",
		"Search the web for the given query and return the results. Call this function to get information that you need to proceed further.",
		func(ctx context.Context, args SearchArgs) (string, error) {
			o.logger.InfoContext(ctx, "searching the web", "query", args.Query, "num_results", args.NumResults)
			results, err := searcher.Search(ctx, args.Query, args.NumResults)
			if err != nil {
				return "", fmt.Errorf("failed to search the web for '%s': %w", args.Query, err)
			}
			return FormatResults(args.Query, results), nil
		},
		agentry.WithTags("web", "network"))
}

// Tools returns web_search and web_scrape.
func Tools(searcher Searcher, opts ...Option) ([]agentry.Tool, error) {
	search, err := SearchTool(searcher, opts...)
	if err != nil {
		return nil, err
	}
	scrape, err := ScrapeTool(opts...)
	if err != nil {
		return nil, err
	}
	return []agentry.Tool{search, scrape}, nil
}

// FormatResults renders search results as a header followed by url/title/description
// blocks separated by blank lines.
func FormatResults(query string, results []Result) string {
	blocks := make([]string, 0, len(results)+1)
	blocks = append(blocks, fmt.Sprintf("Search result for '%s':", query))
	for _, r := range results {
		blocks = append(blocks, r.URL+"\n"+r.Title+"\n"+r.Description)
	}
	return strings.Join(blocks, "\n\n")
}
