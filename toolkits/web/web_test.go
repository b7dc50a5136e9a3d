package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/agentry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const page = `<!DOCTYPE html>
<html>
<head><title> Washington Monument </title><style>body{color:red}</style></head>
<body>
<h1>Washington Monument</h1>
<p>Read the <a href="/history">history</a> first.</p>
<script>track()</script>
</body>
</html>`

// minimalPDF builds a single-page PDF showing text, with a correct xref table.
func minimalPDF(title, text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Title (%s) >>", title),
	}
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/untitled", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>plain</p></body></html>"))
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(minimalPDF("Annual Report", "Hello PDF"))
	})
	mux.HandleFunc("/broken.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("not a pdf"))
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func quiet() Option { return WithLogger(slog.New(slog.DiscardHandler)) }

func TestScrape_HTML(t *testing.T) {
	srv := newSite(t)
	s := NewScraper(WithHTTPClient(srv.Client()), quiet())
	out, err := s.Scrape(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "URL: "+srv.URL+"/page\nTitle: Washington Monument\n"), out)
	assert.Contains(t, out, "# Washington Monument")
	assert.Contains(t, out, "[history]("+srv.URL+"/history)")
	assert.NotContains(t, out, "track()")
	assert.NotContains(t, out, "color:red")
}

func TestScrape_NoTitle(t *testing.T) {
	srv := newSite(t)
	s := NewScraper(WithHTTPClient(srv.Client()), quiet())
	out, err := s.Scrape(context.Background(), srv.URL+"/untitled")
	require.NoError(t, err)
	assert.Contains(t, out, "\nTitle: No title found\n")
	assert.Contains(t, out, "plain")
}

func TestScrape_PDF(t *testing.T) {
	srv := newSite(t)
	s := NewScraper(WithHTTPClient(srv.Client()), quiet())
	out, err := s.Scrape(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "URL: "+srv.URL+"/doc.pdf\nTitle: Annual Report\n"), out)
	assert.Contains(t, out, "Hello PDF")

	_, err = s.Scrape(context.Background(), srv.URL+"/broken.pdf")
	require.Error(t, err)
}

func TestScrape_Errors(t *testing.T) {
	srv := newSite(t)
	s := NewScraper(WithHTTPClient(srv.Client()), quiet())

	_, err := s.Scrape(context.Background(), srv.URL+"/data.json")
	require.ErrorIs(t, err, ErrUnsupportedContent)

	_, err = s.Scrape(context.Background(), srv.URL+"/missing")
	require.ErrorContains(t, err, "status 404")

	_, err = s.Scrape(context.Background(), "file:///etc/passwd")
	require.ErrorContains(t, err, "scheme")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scrape(ctx, srv.URL+"/page")
	require.ErrorIs(t, err, context.Canceled)
}

func TestScrape_MaxBodyBytes(t *testing.T) {
	srv := newSite(t)
	s := NewScraper(WithHTTPClient(srv.Client()), WithMaxBodyBytes(64), quiet())
	out, err := s.Scrape(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.NotContains(t, out, "history")
}

func TestBrave_Search(t *testing.T) {
	var gotQuery, gotCount, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotCount = r.URL.Query().Get("count")
		gotToken = r.Header.Get("X-Subscription-Token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"George Washington","url":"https://en.wikipedia.org/wiki/George_Washington","description":"First president."},
			{"title":"Mount Vernon","url":"https://www.mountvernon.org","description":"His estate."},
			{"title":"Extra","url":"https://example.com","description":"Over the limit."}
		]}}`))
	}))
	defer srv.Close()

	b := NewBrave("token", WithEndpoint(srv.URL), WithBraveHTTPClient(srv.Client()))
	results, err := b.Search(context.Background(), "George Washington", 2)
	require.NoError(t, err)
	assert.Equal(t, "George Washington", gotQuery)
	assert.Equal(t, "2", gotCount)
	assert.Equal(t, "token", gotToken)
	assert.Equal(t, []Result{
		{URL: "https://en.wikipedia.org/wiki/George_Washington", Title: "George Washington", Description: "First president."},
		{URL: "https://www.mountvernon.org", Title: "Mount Vernon", Description: "His estate."},
	}, results)

	_, err = b.Search(context.Background(), "x", 500)
	require.NoError(t, err)
	assert.Equal(t, "20", gotCount)
}

func TestBrave_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewBrave("token", WithEndpoint(srv.URL), WithBraveHTTPClient(srv.Client())).Search(context.Background(), "x", 1)
	require.ErrorContains(t, err, "status 429")

	_, err = NewBrave("").Search(context.Background(), "x", 1)
	require.ErrorContains(t, err, "api key required")
}

func TestFormatResults(t *testing.T) {
	out := FormatResults("go", []Result{
		{URL: "https://go.dev", Title: "Go", Description: "The Go language."},
		{URL: "https://pkg.go.dev", Title: "Packages", Description: "Docs."},
	})
	assert.Equal(t, "Search result for 'go':\n\nhttps://go.dev\nGo\nThe Go language.\n\nhttps://pkg.go.dev\nPackages\nDocs.", out)
	assert.Equal(t, "Search result for 'none':", FormatResults("none", nil))
}

func TestTools(t *testing.T) {
	srv := newSite(t)
	var gotN int
	searcher := SearcherFunc(func(_ context.Context, query string, n int) ([]Result, error) {
		gotN = n
		if query == "fail" {
			return nil, errors.New("rate limited")
		}
		return []Result{{URL: srv.URL + "/page", Title: "Monument", Description: "Tall."}}, nil
	})
	tools, err := Tools(searcher, WithHTTPClient(srv.Client()), quiet())
	require.NoError(t, err)
	reg, err := agentry.NewRegistry(tools)
	require.NoError(t, err)
	ctx := context.Background()

	res := reg.Invoke(ctx, agentry.ToolCall{Name: "web_search", Args: []byte(`{"query":"monument","num_results":3}`)})
	assert.Equal(t, 3, gotN)
	assert.Equal(t, agentry.Payload{"success": FormatResults("monument", []Result{{URL: srv.URL + "/page", Title: "Monument", Description: "Tall."}})}, res.Payload)

	res = reg.Invoke(ctx, agentry.ToolCall{Name: "web_search", Args: []byte(`{"query":"fail","num_results":1}`)})
	assert.Equal(t, "failed to search the web for 'fail': rate limited", res.Payload[agentry.PayloadError])

	res = reg.Invoke(ctx, agentry.ToolCall{Name: "web_scrape", Args: []byte(`{"url":"` + srv.URL + `/page"}`)})
	require.False(t, res.Payload.IsError(), res.Payload)
	assert.Contains(t, res.Payload[agentry.PayloadSuccess], "Title: Washington Monument")

	res = reg.Invoke(ctx, agentry.ToolCall{Name: "web_scrape", Args: []byte(`{"url":"` + srv.URL + `/data.json"}`)})
	assert.True(t, res.Payload.IsError())

	_, err = SearchTool(nil)
	require.Error(t, err)
}
