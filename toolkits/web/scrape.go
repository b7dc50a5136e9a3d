package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const noTitle = "No title found"

// Scraper fetches pages for web_scrape. It is safe for concurrent use.
type Scraper struct {
	client       *http.Client
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewScraper creates a Scraper.
func NewScraper(opts ...Option) *Scraper {
	o := applyOptions(opts)
	return &Scraper{client: o.client, logger: o.logger, maxBodyBytes: o.maxBodyBytes}
}

// Scrape fetches rawURL and renders it as "URL: ...\nTitle: ...\n" followed by the content.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	s.logger.InfoContext(ctx, "scraping page", "url", rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContent, contentType)
	}
	body := io.LimitReader(resp.Body, s.maxBodyBytes)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		r, err := charset.NewReader(body, contentType)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", rawURL, err)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", rawURL, err)
		}
		return renderHTML(u, data)
	case "application/pdf":
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", rawURL, err)
		}
		return renderPDF(rawURL, data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
	}
}

func renderHTML(u *url.URL, data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	title := findTitle(doc)
	if title == "" {
		title = noTitle
	}
	domain := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
	md, err := htmltomarkdown.ConvertString(string(data), converter.WithDomain(domain))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return header(u.String(), title) + md, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(sb.String())
	}
	// svg documents carry their own <title>
	if n.Type == html.ElementNode && n.Data == "svg" {
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func renderPDF(rawURL string, data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, text); err != nil {
		return "", err
	}
	title := strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())
	if title == "" {
		title = noTitle
	}
	return header(rawURL, title) + sb.String(), nil
}

func header(u, title string) string {
	return "URL: " + u + "\nTitle: " + title + "\n"
}
