package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyVariantsDictShape(t *testing.T) {
	raw := json.RawMessage(`{"Black":{"M":5,"S":3},"White":{"L":0}}`)

	lv, err := ParseLegacyVariants(raw)
	require.NoError(t, err)
	require.Len(t, lv, 2)

	// dict keys come out sorted
	assert.Equal(t, "Black", lv[0].Color)
	assert.Equal(t, "White", lv[1].Color)

	stock, ok := lv.Stock("Black", "M")
	assert.True(t, ok)
	assert.Equal(t, 5, stock)

	stock, ok = lv.Stock("White", "L")
	assert.True(t, ok)
	assert.Equal(t, 0, stock)
}

func TestParseLegacyVariantsListShape(t *testing.T) {
	raw := json.RawMessage(`[
		{"color":"Navy","colorHex":"#000080","sizeStocks":[{"size":"S","stock":2},{"size":"M","stock":7}]},
		{"color_name":"Beige","size_stocks":[{"size":"XL","stock":1}]}
	]`)

	lv, err := ParseLegacyVariants(raw)
	require.NoError(t, err)
	require.Len(t, lv, 2)

	assert.Equal(t, "Navy", lv[0].Color)
	assert.Equal(t, "#000080", lv[0].ColorHex)

	// color_name / size_stocks aliases normalize too
	assert.Equal(t, "Beige", lv[1].Color)
	stock, ok := lv.Stock("Beige", "XL")
	assert.True(t, ok)
	assert.Equal(t, 1, stock)
}

func TestParseLegacyVariantsEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		lv, err := ParseLegacyVariants(json.RawMessage(raw))
		assert.NoError(t, err)
		assert.Empty(t, lv)
	}
}

func TestLegacyVariantsCaseInsensitiveLookup(t *testing.T) {
	raw := json.RawMessage(`{"Forest Green":{"M":4}}`)
	lv, err := ParseLegacyVariants(raw)
	require.NoError(t, err)

	v, ok := lv.FindColor("  forest green ")
	assert.True(t, ok)
	assert.Equal(t, "Forest Green", v.Color)

	stock, ok := lv.Stock("FOREST GREEN", " m ")
	assert.True(t, ok)
	assert.Equal(t, 4, stock)

	_, ok = lv.Stock("Forest Green", "XL")
	assert.False(t, ok)
	_, ok = lv.Stock("Crimson", "M")
	assert.False(t, ok)
}

func TestLegacyVariantsMatrix(t *testing.T) {
	raw := json.RawMessage(`{"Red":{"S":1,"M":2}}`)
	lv, err := ParseLegacyVariants(raw)
	require.NoError(t, err)

	matrix := lv.Matrix()
	require.Contains(t, matrix, "Red")
	assert.Equal(t, map[string]int{"S": 1, "M": 2}, matrix["Red"])
}
