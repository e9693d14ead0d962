package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogPage = `<html><body>
	<a href="/p/leather-bag-1111">Leather Bag</a>
	<a href="/p/canvas-tote-2222?preselect=red">Canvas Tote</a>
	<a href="/p/leather-bag-1111">Leather Bag (duplicate)</a>
	<a href="/c/handbags?page=2">category, not a product</a>
	<a href="https://other.example.com/about">external</a>
	<a rel="next" href="/c/handbags?page=2">2</a>
</body></html>`

func TestProductLinks(t *testing.T) {
	ex := NewCatalogExtractor(nil)

	links := ex.ProductLinks(catalogPage, "https://shop.example.com/c/handbags")
	require.Len(t, links, 2)

	assert.Equal(t, "1111", links[0].ID)
	assert.Equal(t, "https://shop.example.com/p/leather-bag-1111", links[0].URL)
	assert.Equal(t, "Leather Bag", links[0].Title)

	assert.Equal(t, "2222", links[1].ID)
	assert.Equal(t, "https://shop.example.com/p/canvas-tote-2222?preselect=red", links[1].URL)
}

func TestNextPageURL_RelNext(t *testing.T) {
	ex := NewCatalogExtractor(nil)

	next := ex.NextPageURL(catalogPage, "https://shop.example.com/c/handbags")
	assert.Equal(t, "https://shop.example.com/c/handbags?page=2", next)
}

func TestNextPageURL_AriaLabel(t *testing.T) {
	html := `<html><body>
		<a aria-label="Go to next page" href="/c/handbags?page=3">&gt;</a>
	</body></html>`

	ex := NewCatalogExtractor(nil)
	next := ex.NextPageURL(html, "https://shop.example.com/c/handbags?page=2")
	assert.Equal(t, "https://shop.example.com/c/handbags?page=3", next)
}

func TestNextPageURL_NoneFound(t *testing.T) {
	ex := NewCatalogExtractor(nil)
	assert.Equal(t, "", ex.NextPageURL("<html><body><a href='/p/x-1'>x</a></body></html>", "https://shop.example.com"))
}

func TestProductLinks_FragmentsAndJavascriptIgnored(t *testing.T) {
	html := `<html><body>
		<a href="#reviews">reviews</a>
		<a href="javascript:void(0)">noop</a>
	</body></html>`

	ex := NewCatalogExtractor(nil)
	assert.Empty(t, ex.ProductLinks(html, "https://shop.example.com"))
}

func TestLooksBlocked(t *testing.T) {
	assert.True(t, LooksBlocked(`<html><title>Access Denied</title></html>`))
	assert.True(t, LooksBlocked(`<html><body>Please complete the CAPTCHA to continue.</body></html>`))
	assert.False(t, LooksBlocked(`<html><body><h1>Handbags</h1></body></html>`))
}
