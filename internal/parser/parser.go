package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mkessler/catalog-crawler/internal/models"
)

// Parser extracts product fields from detail-page HTML.
type Parser interface {
	ParseProductPage(html, url string) (*models.Product, error)
}

// ProductParser is a best-effort, site-agnostic extractor. It prefers
// structured metadata (Open Graph and meta tags) and falls back to visible
// page text. Fields it cannot find stay empty; only unparseable HTML is an
// error.
type ProductParser struct {
	pricePattern *regexp.Regexp
}

func NewProductParser() *ProductParser {
	return &ProductParser{
		pricePattern: regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`),
	}
}

func (p *ProductParser) ParseProductPage(html, url string) (*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	product := models.NewProduct("", url)
	product.Title = p.extractTitle(doc)
	product.Brand = metaContent(doc, `meta[property="og:brand"]`, `meta[itemprop="brand"]`)
	product.Description = metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`)
	product.Price = p.extractPrice(doc)
	product.Images = p.extractImages(doc)
	return product, nil
}

func (p *ProductParser) extractTitle(doc *goquery.Document) string {
	if title := metaContent(doc, `meta[property="og:title"]`); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func (p *ProductParser) extractPrice(doc *goquery.Document) string {
	if amount := metaContent(doc, `meta[property="product:price:amount"]`); amount != "" {
		return amount
	}
	// Fall back to the first dollar amount in visible text. Imperfect, but
	// the structured path is tried first.
	body := doc.Find("body").Text()
	return p.pricePattern.FindString(body)
}

func (p *ProductParser) extractImages(doc *goquery.Document) []string {
	const maxImages = 10

	seen := make(map[string]bool)
	var images []string
	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || seen[src] || len(images) >= maxImages {
			return
		}
		seen[src] = true
		images = append(images, src)
	}

	doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		add(content)
	})
	doc.Find(`img[src]`).Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if strings.HasPrefix(src, "http") {
			add(src)
		}
	})
	return images
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}
