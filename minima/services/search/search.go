package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"minima/minima/utils/types"

	"github.com/PuerkitoBio/goquery"
)

var absoluteURL = regexp.MustCompile(`^https?://`)

// Searcher answers web-search queries by scraping a public search engine's
// HTML results page.
type Searcher struct {
	client    *http.Client
	searchURL string
}

func NewSearcher() *Searcher {
	return &Searcher{
		client:    &http.Client{Timeout: 15 * time.Second},
		searchURL: "https://duckduckgo.com/html/",
	}
}

func (s *Searcher) QueryWeb(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	params := url.Values{}
	params.Add("q", query)
	req, err := http.NewRequestWithContext(ctx, "GET", s.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []types.SearchResult
	doc.Find(".result__body").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(results) >= maxResults {
			return false
		}
		titleSel := sel.Find(".result__title a")
		snippetSel := sel.Find(".result__snippet")
		if titleSel.Length() == 0 || snippetSel.Length() == 0 {
			return true
		}

		href, exists := titleSel.Attr("href")
		if !exists {
			return true
		}

		// Result links are redirect URLs; the target sits in the uddg param.
		parsed, _ := url.Parse(href)
		actualURL := parsed.Query().Get("uddg")
		if actualURL == "" || !absoluteURL.MatchString(actualURL) {
			return true
		}

		results = append(results, types.SearchResult{
			URL:     actualURL,
			Title:   strings.TrimSpace(titleSel.Text()),
			Snippet: strings.TrimSpace(snippetSel.Text()),
		})
		return true
	})

	return results, nil
}

// FetchPage downloads a page and returns its visible text, capped at maxChars.
func (s *Searcher) FetchPage(ctx context.Context, pageURL string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = 1000
	}
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := ExtractText(resp.Body)
	if err != nil {
		return "", err
	}
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}

// ExtractText strips an HTML document down to its visible text.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	// Collapse runs of whitespace left behind by removed markup.
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text), nil
}
