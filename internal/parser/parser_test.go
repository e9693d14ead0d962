package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductPage_StructuredMetadata(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Leather Crossbody Bag">
		<meta property="og:description" content="A small leather crossbody bag.">
		<meta property="product:price:amount" content="49.99">
		<meta property="og:image" content="https://cdn.example.com/bag-front.jpg">
		<meta property="og:image" content="https://cdn.example.com/bag-back.jpg">
	</head><body><h1>ignored</h1></body></html>`

	p := NewProductParser()
	product, err := p.ParseProductPage(html, "https://shop.example.com/p/123")
	require.NoError(t, err)

	assert.Equal(t, "Leather Crossbody Bag", product.Title)
	assert.Equal(t, "A small leather crossbody bag.", product.Description)
	assert.Equal(t, "49.99", product.Price)
	assert.Equal(t, []string{
		"https://cdn.example.com/bag-front.jpg",
		"https://cdn.example.com/bag-back.jpg",
	}, product.Images)
	assert.Equal(t, "https://shop.example.com/p/123", product.URL)
}

func TestParseProductPage_Fallbacks(t *testing.T) {
	html := `<html><body>
		<h1>  Canvas Tote  </h1>
		<div class="price">Now only $19.99 (was $29.99)</div>
		<img src="https://cdn.example.com/tote.jpg">
		<img src="/relative/ignored.jpg">
	</body></html>`

	p := NewProductParser()
	product, err := p.ParseProductPage(html, "https://shop.example.com/p/456")
	require.NoError(t, err)

	assert.Equal(t, "Canvas Tote", product.Title)
	assert.Equal(t, "$19.99", product.Price)
	assert.Equal(t, []string{"https://cdn.example.com/tote.jpg"}, product.Images)
}

func TestParseProductPage_MissingFieldsStayEmpty(t *testing.T) {
	p := NewProductParser()
	product, err := p.ParseProductPage("<html><body><p>nothing here</p></body></html>", "u")
	require.NoError(t, err)

	assert.Empty(t, product.Title)
	assert.Empty(t, product.Price)
	assert.Empty(t, product.Images)
}

func TestParseProductPage_DuplicateImagesDeduped(t *testing.T) {
	html := `<html><head>
		<meta property="og:image" content="https://cdn.example.com/a.jpg">
	</head><body>
		<img src="https://cdn.example.com/a.jpg">
		<img src="https://cdn.example.com/b.jpg">
	</body></html>`

	p := NewProductParser()
	product, err := p.ParseProductPage(html, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}, product.Images)
}
