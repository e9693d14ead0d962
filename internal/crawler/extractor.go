package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one product reference found on a catalog page.
type Link struct {
	ID    string
	URL   string
	Title string
}

// Extractor pulls product links and the next-page URL out of fetched
// catalog HTML. The target site's DOM is not a stable contract, so this
// lives behind an interface and the default implementation sticks to
// generic heuristics.
type Extractor interface {
	ProductLinks(html, baseURL string) []Link
	NextPageURL(html, baseURL string) string
}

// DefaultProductPattern matches "/p/" product paths and captures a trailing
// numeric product ID when one is present.
var DefaultProductPattern = regexp.MustCompile(`^https?://[^/]+/p/.*?(\d+)(?:\?.*)?$`)

// CatalogExtractor extracts links whose absolute URL matches a configurable
// pattern, and finds the next page via rel=next or a "next page" anchor.
type CatalogExtractor struct {
	productPattern *regexp.Regexp
}

func NewCatalogExtractor(productPattern *regexp.Regexp) *CatalogExtractor {
	if productPattern == nil {
		productPattern = DefaultProductPattern
	}
	return &CatalogExtractor{productPattern: productPattern}
}

func (e *CatalogExtractor) ProductLinks(html, baseURL string) []Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := absolutize(base, href)
		if abs == "" || seen[abs] {
			return
		}
		m := e.productPattern.FindStringSubmatch(abs)
		if m == nil {
			return
		}
		seen[abs] = true

		id := abs
		if len(m) > 1 && m[1] != "" {
			id = m[1]
		}
		links = append(links, Link{
			ID:    id,
			URL:   abs,
			Title: strings.TrimSpace(s.Text()),
		})
	})
	return links
}

func (e *CatalogExtractor) NextPageURL(html, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	if href, ok := doc.Find(`a[rel="next"]`).First().Attr("href"); ok {
		return absolutize(base, href)
	}

	next := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label, _ := s.Attr("aria-label")
		if strings.Contains(strings.ToLower(label), "next page") ||
			strings.EqualFold(strings.TrimSpace(s.Text()), "next") {
			href, _ := s.Attr("href")
			next = absolutize(base, href)
			return false
		}
		return true
	})
	return next
}

// absolutize resolves href against base and strips the fragment. Returns ""
// for unusable hrefs.
func absolutize(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String()
}
