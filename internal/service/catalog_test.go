package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeImageURL(t *testing.T) {
	s := &CatalogService{staticRoot: "/static"}

	assert.Equal(t, "https://cdn.example.com/a.jpg", s.NormalizeImageURL("https://cdn.example.com/a.jpg"))
	assert.Equal(t, "/media/b.jpg", s.NormalizeImageURL("/media/b.jpg"))
	assert.Equal(t, "data:image/png;base64,AAAA", s.NormalizeImageURL("data:image/png;base64,AAAA"))
	assert.Equal(t, "/static/shirts/c.jpg", s.NormalizeImageURL("shirts/c.jpg"))
	assert.Equal(t, placeholderImage, s.NormalizeImageURL(""))
}

func TestNormalizeImageURLTrailingSlashRoot(t *testing.T) {
	s := &CatalogService{staticRoot: "/static/"}
	assert.Equal(t, "/static/c.jpg", s.NormalizeImageURL("c.jpg"))
}

func TestSynthesizeSKU(t *testing.T) {
	assert.Equal(t, "TEE-01-FORESTGREEN-M", SynthesizeSKU("TEE-01", 9, " Forest Green ", "m"))
	// no base SKU falls back to the product id
	assert.Equal(t, "SKU9-BLACK-XL", SynthesizeSKU("", 9, "Black", "XL"))
}

func TestSortSizeLabels(t *testing.T) {
	labels := []string{"XL", "One Size", "S", "3XL", "M", "Custom", "XS"}
	SortSizeLabels(labels)
	assert.Equal(t, []string{"XS", "S", "M", "XL", "3XL", "One Size", "Custom"}, labels)
}

func TestSizeRankCaseInsensitive(t *testing.T) {
	assert.Equal(t, sizeRank("xs"), sizeRank("XS"))
	assert.Equal(t, sizeRank(" m "), sizeRank("M"))
	// unknown labels all rank last and equal
	assert.Equal(t, sizeRank("One Size"), sizeRank("38"))
	assert.Greater(t, sizeRank("One Size"), sizeRank("3XL"))
}
